package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Carmen-Shannon/oxy-rtx/common"
	"github.com/Carmen-Shannon/oxy-rtx/engine/config"
	"github.com/Carmen-Shannon/oxy-rtx/engine/framebuffer"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rtx/engine/scene"
	"github.com/Carmen-Shannon/oxy-rtx/engine/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// SceneBinding is the storage buffer binding point of the scene buffer.
const SceneBinding = 0

// Image units written by the ray tracing pass.
const (
	colorImageUnit = iota
	normalImageUnit
	materialImageUnit
	motionImageUnit
)

// SceneBuffer provides the packed scene the ray tracing program reads.
type SceneBuffer interface {
	// Buffer returns the scene storage buffer, 0 if none is available.
	Buffer() gpu.Buffer
}

// rayTracingPipeline is the implementation of the RayTracingPipeline interface.
type rayTracingPipeline struct {
	device  gpu.Device
	shaders shader.Manager
	logger  *slog.Logger
	cfg     *config.Config
	scene   SceneBuffer
	now     func() time.Time

	start       time.Time
	emptyScene  gpu.Buffer
	frame       uint32
	initialized bool
}

// RayTracingPipeline dispatches the ray tracing compute program into a frame buffer's color,
// normal, material and motion attachments.
type RayTracingPipeline interface {
	// Initialize prepares the pipeline. Calling it on an initialized pipeline is a no-op.
	//
	// Returns:
	//   - error: an error if the fallback scene buffer could not be created
	Initialize() error

	// Render runs the ray tracing pass. It is a no-op when the pipeline is not initialized. When
	// the ray tracing program is absent a warning is logged and target is left untouched. The
	// frame counter advances on every call made while initialized.
	//
	// Parameters:
	//   - view: the camera view matrix
	//   - projection: the camera projection matrix
	//   - target: the frame buffer receiving the G-buffer
	//   - deltaTime: elapsed time since the last frame in seconds
	Render(view, projection mgl32.Mat4, target framebuffer.FrameBuffer, deltaTime float32)

	// OnResize is notified of a new render size. The pipeline owns no size dependent resources.
	OnResize(width, height int)

	// FrameCounter returns the number of Render calls since creation. It is not reset by resizes.
	FrameCounter() uint32

	// Cleanup releases the pipeline's resources. It is a no-op when not initialized.
	Cleanup()

	// IsInitialized reports whether Initialize has completed since the last Cleanup.
	IsInitialized() bool
}

var _ RayTracingPipeline = &rayTracingPipeline{}

// NewRayTracingPipeline creates an uninitialized ray tracing pipeline.
//
// Parameters:
//   - device: the device passes are recorded on
//   - shaders: the registry the ray tracing program is looked up in
//   - options: variadic list of RayTracingBuilderOption functions to configure the pipeline
//
// Returns:
//   - RayTracingPipeline: the pipeline
func NewRayTracingPipeline(device gpu.Device, shaders shader.Manager, options ...RayTracingBuilderOption) RayTracingPipeline {
	rt := &rayTracingPipeline{
		device:  device,
		shaders: shaders,
		now:     time.Now,
	}
	for _, option := range options {
		option(rt)
	}
	rt.logger = common.LoggerOrNop(rt.logger)
	if rt.cfg == nil {
		rt.cfg = config.Default()
	}
	return rt
}

func (rt *rayTracingPipeline) Initialize() error {
	if rt.initialized {
		return nil
	}

	// Bound whenever the scene source has no buffer, so the program's scene binding is never empty.
	buf, err := rt.device.CreateBuffer(gpu.BufferStorage, scene.MinBufferSize, "empty scene")
	if err != nil {
		return fmt.Errorf("failed to create empty scene buffer: %w", err)
	}
	rt.device.WriteBuffer(buf, 0, scene.Pack(scene.Snapshot{SkyIntensity: 1}))
	rt.emptyScene = buf
	rt.start = rt.now()
	rt.initialized = true
	rt.logger.Info("ray tracing pipeline initialized")
	return nil
}

func (rt *rayTracingPipeline) Render(view, projection mgl32.Mat4, target framebuffer.FrameBuffer, deltaTime float32) {
	if !rt.initialized {
		return
	}
	rt.frame++

	p, ok := rt.shaders.Program(shader.RayTracing)
	if !ok {
		rt.logger.Warn("ray tracing program not available, skipping pass")
		return
	}
	if target == nil || !target.IsCreated() {
		rt.logger.Warn("ray tracing target is not created, skipping pass")
		return
	}
	width, height := target.Width(), target.Height()

	p.Bind()
	defer p.Unbind()

	p.SetUniform("view_matrix", view)
	p.SetUniform("projection_matrix", projection)
	p.SetUniform("time", rt.elapsedSeconds())
	p.SetUniform("frame", rt.frame)
	p.SetUniform("tick_delta", deltaTime)
	p.SetUniform("screen_width", width)
	p.SetUniform("screen_height", height)
	p.SetUniform("max_bounces", rt.cfg.MaxRayBounces)
	p.SetUniform("samples_per_pixel", rt.cfg.SamplesPerPixel)
	rt.setLighting(p)

	hdr := target.HDR()
	p.BindImage("img_output", target.ColorTexture(), colorImageUnit, gpu.AccessWriteOnly, framebuffer.Color.Format(hdr))
	p.BindImage("img_normal", target.NormalTexture(), normalImageUnit, gpu.AccessWriteOnly, framebuffer.Normal.Format(hdr))
	p.BindImage("img_material", target.MaterialTexture(), materialImageUnit, gpu.AccessWriteOnly, framebuffer.Material.Format(hdr))
	p.BindImage("img_motion", target.MotionTexture(), motionImageUnit, gpu.AccessWriteOnly, framebuffer.Motion.Format(hdr))
	p.BindStorageBuffer(rt.sceneBuffer(), SceneBinding)

	x, y := DispatchSize(width, height)
	p.DispatchCompute(x, y, 1)
	p.MemoryBarrier(gpu.BarrierImageAccess | gpu.BarrierTextureFetch)
}

// setLighting uploads the lighting settings. A disabled effect is sent with zero strength.
func (rt *rayTracingPipeline) setLighting(p shader.Program) {
	cfg := rt.cfg
	p.SetUniform("max_distance", cfg.RayTracingDistance)
	p.SetUniform("gi_strength", strength(cfg.GlobalIllumination.Enabled, cfg.GlobalIllumination.Strength))
	p.SetUniform("gi_samples", cfg.GlobalIllumination.Samples)
	p.SetUniform("reflection_strength", strength(cfg.Reflections.Enabled, cfg.Reflections.Strength))
	p.SetUniform("reflection_quality", cfg.Reflections.Quality)
	p.SetUniform("ao_strength", strength(cfg.AmbientOcclusion.Enabled, cfg.AmbientOcclusion.Strength))
	p.SetUniform("ao_radius", cfg.AmbientOcclusion.Radius)
	p.SetUniform("shadow_strength", strength(cfg.Shadows.Enabled, cfg.Shadows.Strength))
	p.SetUniform("shadow_samples", cfg.Shadows.Samples)
}

func strength(enabled bool, s float32) float32 {
	if !enabled {
		return 0
	}
	return s
}

// elapsedSeconds returns the time since Initialize, wrapped every 1000 seconds to keep float
// precision in the shader.
func (rt *rayTracingPipeline) elapsedSeconds() float32 {
	ms := rt.now().Sub(rt.start).Milliseconds() % 1_000_000
	return float32(ms) / 1000
}

func (rt *rayTracingPipeline) sceneBuffer() gpu.Buffer {
	if rt.scene != nil {
		if buf := rt.scene.Buffer(); buf != 0 {
			return buf
		}
	}
	return rt.emptyScene
}

func (rt *rayTracingPipeline) OnResize(width, height int) {
	rt.logger.Debug("ray tracing pipeline resized", "width", width, "height", height)
}

func (rt *rayTracingPipeline) FrameCounter() uint32 {
	return rt.frame
}

func (rt *rayTracingPipeline) Cleanup() {
	if !rt.initialized {
		return
	}
	rt.device.ReleaseBuffer(rt.emptyScene)
	rt.emptyScene = 0
	rt.initialized = false
	rt.logger.Info("ray tracing pipeline cleaned up")
}

func (rt *rayTracingPipeline) IsInitialized() bool {
	return rt.initialized
}
