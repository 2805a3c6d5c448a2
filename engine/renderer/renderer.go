// Package renderer orchestrates the ray tracing frame: it owns the shader registry, both frame
// buffers, the ray tracing and post-processing pipelines and the scene upload, sequences them per
// frame and tracks frame timing.
package renderer

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-rtx/common"
	"github.com/Carmen-Shannon/oxy-rtx/engine/capabilities"
	"github.com/Carmen-Shannon/oxy-rtx/engine/config"
	"github.com/Carmen-Shannon/oxy-rtx/engine/framebuffer"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rtx/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-rtx/engine/profiler"
	"github.com/Carmen-Shannon/oxy-rtx/engine/scene"
	"github.com/Carmen-Shannon/oxy-rtx/engine/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	device gpu.Device
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time

	// Collected from builder options.
	width, height int
	shaderSource  fs.FS
	sceneSource   scene.Source
	compositor    pipeline.Compositor
	watchShaders  bool

	hdr     bool
	caps    capabilities.Capabilities
	shaders shader.Manager
	scene   scene.Manager
	rt      pipeline.RayTracingPipeline
	pp      pipeline.PostProcessingPipeline
	prof    *profiler.Profiler
	watcher shader.Watcher

	primary framebuffer.FrameBuffer
	history framebuffer.FrameBuffer

	reloadPending atomic.Bool
	initialized   bool
}

// Renderer is the ray tracing layer a host drives once per frame. All methods except
// RequestReload must be called from the goroutine that renders; resizes and reloads take effect
// between frames.
type Renderer interface {
	// Initialize probes the adapter, builds the shader programs, creates both frame buffers at the
	// render scaled window size and initializes the scene and pipelines. A failure releases
	// everything created so far and leaves the renderer not initialized. Calling Initialize on an
	// initialized renderer is a no-op.
	//
	// Returns:
	//   - error: the first failing step, wrapped
	Initialize() error

	// Render produces one frame. It is a no-op when the renderer is not initialized or ray
	// tracing is disabled in the config. Errors and panics raised by any pass are logged and the
	// frame is skipped; they never reach the caller.
	//
	// Parameters:
	//   - view: the camera view matrix
	//   - projection: the camera projection matrix
	//   - deltaTime: elapsed time since the last frame in seconds
	Render(view, projection mgl32.Mat4, deltaTime float32)

	// OnWindowResize replaces both frame buffers with new ones at the render scaled size and
	// notifies the pipelines. Non-positive sizes, e.g. from a minimized window, are ignored.
	//
	// Parameters:
	//   - width: the new window width in pixels
	//   - height: the new window height in pixels
	OnWindowResize(width, height int)

	// Cleanup releases every resource. Each resource is released independently so one failure
	// does not leak the others. Calling Cleanup again is a no-op.
	//
	// Returns:
	//   - error: the joined release failures, nil if all resources were released
	Cleanup() error

	// IsInitialized reports whether Initialize has completed since the last Cleanup.
	IsInitialized() bool

	// DebugInfo returns a one-line summary of frame rate, ray tracing mode, samples and bounces.
	DebugInfo() string

	// ReloadShaders rebuilds every shader program now.
	//
	// Returns:
	//   - error: the shader manager's initialization error
	ReloadShaders() error

	// RequestReload schedules a shader reload before the next frame. It is safe to call from any
	// goroutine.
	RequestReload()

	// ToggleRayTracing flips ray tracing in the config and returns the new state.
	ToggleRayTracing() bool

	Config() *config.Config
	Capabilities() capabilities.Capabilities
	Shaders() shader.Manager
	Scene() scene.Manager
	RayTracing() pipeline.RayTracingPipeline
	PostProcessing() pipeline.PostProcessingPipeline
	Profiler() *profiler.Profiler

	// PrimaryBuffer returns the frame buffer the current frame is rendered into.
	PrimaryBuffer() framebuffer.FrameBuffer

	// HistoryBuffer returns the frame buffer holding the previous refined frame.
	HistoryBuffer() framebuffer.FrameBuffer
}

var _ Renderer = &renderer{}

// NewRenderer creates an uninitialized renderer. The HDR setting is read once here; the rest of
// the config is read every frame.
//
// Parameters:
//   - device: the device every pass is recorded on, owned by the caller
//   - cfg: the shared configuration, config.Default() when nil
//   - options: variadic list of RendererBuilderOption functions to configure the renderer
//
// Returns:
//   - Renderer: the renderer
func NewRenderer(device gpu.Device, cfg *config.Config, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		device:       device,
		cfg:          cfg,
		now:          time.Now,
		width:        1280,
		height:       720,
		watchShaders: true,
	}
	if r.cfg == nil {
		r.cfg = config.Default()
	}
	for _, option := range options {
		option(r)
	}
	r.logger = common.LoggerOrNop(r.logger)
	r.hdr = r.cfg.HDR

	shaderOptions := []shader.ManagerBuilderOption{shader.WithLogger(r.logger)}
	if r.shaderSource == nil && r.cfg.ShaderDir != "" {
		r.shaderSource = os.DirFS(r.cfg.ShaderDir)
	}
	if r.shaderSource != nil {
		shaderOptions = append(shaderOptions, shader.WithSource(r.shaderSource))
	}
	if !r.hdr {
		shaderOptions = append(shaderOptions, shader.WithDefine("color_format", "rgba8unorm"))
	}
	r.shaders = shader.NewManager(device, shaderOptions...)

	sceneOptions := []scene.ManagerBuilderOption{scene.WithLogger(r.logger)}
	if r.sceneSource != nil {
		sceneOptions = append(sceneOptions, scene.WithSource(r.sceneSource))
	}
	r.scene = scene.NewManager(device, sceneOptions...)

	r.rt = pipeline.NewRayTracingPipeline(device, r.shaders,
		pipeline.WithRayTracingLogger(r.logger),
		pipeline.WithRayTracingConfig(r.cfg),
		pipeline.WithScene(r.scene),
		pipeline.WithClock(r.now),
	)
	r.pp = pipeline.NewPostProcessingPipeline(device, r.shaders,
		pipeline.WithPostProcessingLogger(r.logger),
		pipeline.WithPostProcessingConfig(r.cfg),
		pipeline.WithCompositor(r.compositor),
	)
	r.prof = profiler.New(profiler.WithLogger(r.logger))
	return r
}

func (r *renderer) Initialize() (err error) {
	if r.initialized {
		return nil
	}
	r.logger.Info("initializing renderer", "width", r.width, "height", r.height, "hdr", r.hdr)

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("renderer initialization panicked: %v", rec)
		}
		if err != nil {
			r.logger.Error("renderer initialization failed", "err", err)
			r.teardown()
		}
	}()

	r.caps = capabilities.Probe(r.device.Info(), r.logger)
	if err := r.shaders.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize shaders: %w", err)
	}
	if err := r.createFrameBuffers(r.cfg.ScaledSize(r.width, r.height)); err != nil {
		return err
	}
	if err := r.scene.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize scene: %w", err)
	}
	if err := r.rt.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize ray tracing pipeline: %w", err)
	}
	if err := r.pp.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize post-processing pipeline: %w", err)
	}
	r.startWatcher()

	r.prof.Reset()
	r.initialized = true
	r.logger.Info("renderer initialized",
		"programs", r.shaders.Count(),
		"hardware_ray_tracing", r.caps.HardwareRayTracing(),
		"render_width", r.primary.Width(),
		"render_height", r.primary.Height(),
	)
	return nil
}

// startWatcher watches the shader override directory for edits. A watcher that cannot start only
// disables hot reload.
func (r *renderer) startWatcher() {
	if !r.watchShaders || r.cfg.ShaderDir == "" || r.watcher != nil {
		return
	}
	w, err := shader.NewWatcher(r.cfg.ShaderDir, r.logger)
	if err != nil {
		r.logger.Warn("shader hot reload disabled", "dir", r.cfg.ShaderDir, "err", err)
		return
	}
	r.watcher = w
}

// createFrameBuffers creates the primary and history buffers. Nothing is left allocated on failure.
func (r *renderer) createFrameBuffers(width, height int) error {
	primary := framebuffer.New(r.device, width, height, r.hdr,
		framebuffer.WithLogger(r.logger), framebuffer.WithLabel("primary"))
	if err := primary.Create(); err != nil {
		return fmt.Errorf("failed to create primary frame buffer: %w", err)
	}
	history := framebuffer.New(r.device, width, height, r.hdr,
		framebuffer.WithLogger(r.logger), framebuffer.WithLabel("history"))
	if err := history.Create(); err != nil {
		primary.Delete()
		return fmt.Errorf("failed to create history frame buffer: %w", err)
	}
	r.primary = primary
	r.history = history
	return nil
}

func (r *renderer) Render(view, projection mgl32.Mat4, deltaTime float32) {
	if !r.initialized || !r.cfg.EnableRayTracing {
		return
	}
	start := r.now()

	r.applyPendingReload()
	r.syncRenderScale()
	r.renderFrame(view, projection, deltaTime)

	r.prof.Record(r.now().Sub(start))
}

// renderFrame runs every pass of one frame. The primary buffer is unbound on every path,
// including a panic inside the ray tracing pass.
func (r *renderer) renderFrame(view, projection mgl32.Mat4, deltaTime float32) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("frame skipped after panic", "panic", rec)
		}
	}()

	if r.primary == nil || !r.primary.IsCreated() {
		r.logger.Debug("frame skipped, no frame buffer")
		return
	}
	if err := r.scene.Update(deltaTime); err != nil {
		r.logger.Error("scene update failed", "err", err)
	}

	func() {
		r.primary.Bind()
		defer r.primary.Unbind()
		r.primary.Clear()
		r.rt.Render(view, projection, r.primary, deltaTime)
	}()

	r.pp.Process(r.primary, r.history, deltaTime)

	if err := r.device.Flush(); err != nil {
		r.logger.Error("frame skipped", "err", err)
	}
}

// applyPendingReload rebuilds the shaders when a reload was requested or a watched source changed.
func (r *renderer) applyPendingReload() {
	requested := r.reloadPending.Swap(false)
	if r.watcher != nil && r.watcher.TakePending() {
		requested = true
	}
	if !requested {
		return
	}
	if err := r.ReloadShaders(); err != nil {
		r.logger.Error("shader reload failed", "err", err)
	}
}

// syncRenderScale recreates the frame buffers when the configured render scale changed.
func (r *renderer) syncRenderScale() {
	if r.primary == nil {
		return
	}
	width, height := r.cfg.ScaledSize(r.width, r.height)
	if width != r.primary.Width() || height != r.primary.Height() {
		r.resize(width, height)
	}
}

func (r *renderer) OnWindowResize(width, height int) {
	if width <= 0 || height <= 0 {
		r.logger.Debug("ignoring empty window size", "width", width, "height", height)
		return
	}
	r.width, r.height = width, height
	if !r.initialized {
		return
	}
	r.resize(r.cfg.ScaledSize(width, height))
}

// resize deletes both frame buffers and creates new ones at width x height.
func (r *renderer) resize(width, height int) {
	r.primary.Delete()
	r.history.Delete()
	if err := r.createFrameBuffers(width, height); err != nil {
		// Frames are skipped until a later resize succeeds.
		r.logger.Error("failed to recreate frame buffers", "width", width, "height", height, "err", err)
	}
	r.rt.OnResize(width, height)
	r.pp.OnResize(width, height)
	r.logger.Info("renderer resized", "window_width", r.width, "window_height", r.height, "width", width, "height", height)
}

func (r *renderer) Cleanup() error {
	if !r.initialized {
		return nil
	}
	r.logger.Info("cleaning up renderer")
	err := r.teardown()
	if err != nil {
		r.logger.Error("renderer cleanup incomplete", "err", err)
	}
	return err
}

// teardown releases every component independently and returns the joined failures.
func (r *renderer) teardown() error {
	var errs []error
	release := func(name string, f func() error) {
		defer func() {
			if rec := recover(); rec != nil {
				errs = append(errs, fmt.Errorf("%s: panic: %v", name, rec))
			}
		}()
		if err := f(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	release("shader watcher", func() error {
		if r.watcher == nil {
			return nil
		}
		err := r.watcher.Close()
		r.watcher = nil
		return err
	})
	release("post-processing pipeline", noError(r.pp.Cleanup))
	release("ray tracing pipeline", noError(r.rt.Cleanup))
	release("primary frame buffer", func() error {
		if r.primary != nil {
			r.primary.Delete()
		}
		return nil
	})
	release("history frame buffer", func() error {
		if r.history != nil {
			r.history.Delete()
		}
		return nil
	})
	release("scene", noError(r.scene.Cleanup))
	release("shaders", noError(r.shaders.Cleanup))

	r.initialized = false
	return errors.Join(errs...)
}

func noError(f func()) func() error {
	return func() error {
		f()
		return nil
	}
}

func (r *renderer) IsInitialized() bool {
	return r.initialized
}

func (r *renderer) DebugInfo() string {
	if !r.initialized {
		return "RTX Renderer: Not initialized"
	}
	return fmt.Sprintf("RTX Renderer: %.1f FPS | RTX: %s | Samples: %d | Bounces: %d",
		r.prof.FPS(), r.caps.Mode(), r.cfg.SamplesPerPixel, r.cfg.MaxRayBounces)
}

func (r *renderer) ReloadShaders() error {
	return r.shaders.Reload()
}

func (r *renderer) RequestReload() {
	r.reloadPending.Store(true)
}

func (r *renderer) ToggleRayTracing() bool {
	enabled := r.cfg.ToggleRayTracing()
	r.logger.Info("ray tracing toggled", "enabled", enabled)
	return enabled
}

func (r *renderer) Config() *config.Config                          { return r.cfg }
func (r *renderer) Capabilities() capabilities.Capabilities         { return r.caps }
func (r *renderer) Shaders() shader.Manager                         { return r.shaders }
func (r *renderer) Scene() scene.Manager                            { return r.scene }
func (r *renderer) RayTracing() pipeline.RayTracingPipeline         { return r.rt }
func (r *renderer) PostProcessing() pipeline.PostProcessingPipeline { return r.pp }
func (r *renderer) Profiler() *profiler.Profiler                    { return r.prof }
func (r *renderer) PrimaryBuffer() framebuffer.FrameBuffer          { return r.primary }
func (r *renderer) HistoryBuffer() framebuffer.FrameBuffer          { return r.history }
