package pipeline

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-rtx/common"
	"github.com/Carmen-Shannon/oxy-rtx/engine/config"
	"github.com/Carmen-Shannon/oxy-rtx/engine/framebuffer"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rtx/engine/shader"
)

// Fixed post-processing parameters.
const (
	DefaultTemporalBlendFactor = 0.9

	DenoiseFilterStrength   = 1.0
	DenoiseTemporalStrength = 0.8

	ToneExposure   = 1.0
	ToneGamma      = 2.2
	ToneContrast   = 1.0
	ToneSaturation = 1.0

	UpscaleFactor    = 2.0
	UpscaleSharpness = 0.5
)

// outputImageUnit is the image unit every in-place pass writes the color attachment through.
const outputImageUnit = 0

// postProcessingPipeline is the implementation of the PostProcessingPipeline interface.
type postProcessingPipeline struct {
	device     gpu.Device
	shaders    shader.Manager
	logger     *slog.Logger
	cfg        *config.Config
	compositor Compositor

	blendFactor float32
	frameCount  uint32
	initialized bool
}

// PostProcessingPipeline refines the ray traced color in place: temporal accumulation against a
// history buffer, denoising, optional upscaling and tone mapping. It owns the temporal state.
type PostProcessingPipeline interface {
	// Initialize prepares the pipeline. Calling it on an initialized pipeline is a no-op.
	//
	// Returns:
	//   - error: always nil, kept for symmetry with the other lifecycle methods
	Initialize() error

	// Process runs the post-processing chain on current: temporal accumulation, denoising,
	// a history copy, upscaling when EnableTemporalUpsampling is set, then tone mapping. The frame
	// count advances on every call made while initialized, even when current is not created.
	// Temporal accumulation is skipped on the first frame after a reset since history holds no
	// valid frame yet. Denoising runs every frame. An absent program skips its pass.
	//
	// Upscaling runs before tone mapping, not after it: the compute pass rewrites the color
	// attachment in place, while tone mapping draws to the compositor's target and leaves no
	// texture behind to upscale.
	//
	// Parameters:
	//   - current: the frame buffer written by the ray tracing pass, refined in place
	//   - history: the frame buffer holding the previous refined frame
	//   - deltaTime: elapsed time since the last frame in seconds
	Process(current, history framebuffer.FrameBuffer, deltaTime float32)

	// SetTemporalBlendFactor sets the weight of the history frame, clamped to [0, 1].
	SetTemporalBlendFactor(factor float32)

	// TemporalBlendFactor returns the weight of the history frame.
	TemporalBlendFactor() float32

	// TemporalFrameCount returns the number of Process calls since the last reset.
	TemporalFrameCount() uint32

	// ResetTemporalAccumulation discards the history, e.g. after a camera cut.
	ResetTemporalAccumulation()

	// OnResize discards the history, which is spatially invalid at the new size.
	OnResize(width, height int)

	// Cleanup releases the pipeline's resources. It is a no-op when not initialized.
	Cleanup()

	// IsInitialized reports whether Initialize has completed since the last Cleanup.
	IsInitialized() bool
}

var _ PostProcessingPipeline = &postProcessingPipeline{}

// NewPostProcessingPipeline creates an uninitialized post-processing pipeline.
//
// Parameters:
//   - device: the device passes are recorded on
//   - shaders: the registry programs are looked up in
//   - options: variadic list of PostProcessingBuilderOption functions to configure the pipeline
//
// Returns:
//   - PostProcessingPipeline: the pipeline
func NewPostProcessingPipeline(device gpu.Device, shaders shader.Manager, options ...PostProcessingBuilderOption) PostProcessingPipeline {
	pp := &postProcessingPipeline{
		device:      device,
		shaders:     shaders,
		blendFactor: DefaultTemporalBlendFactor,
	}
	for _, option := range options {
		option(pp)
	}
	pp.logger = common.LoggerOrNop(pp.logger)
	if pp.cfg == nil {
		pp.cfg = config.Default()
	}
	return pp
}

func (pp *postProcessingPipeline) Initialize() error {
	if pp.initialized {
		return nil
	}
	pp.frameCount = 0
	pp.initialized = true
	pp.logger.Info("post-processing pipeline initialized")
	return nil
}

func (pp *postProcessingPipeline) Process(current, history framebuffer.FrameBuffer, deltaTime float32) {
	if !pp.initialized {
		return
	}
	pp.frameCount++
	if current == nil || !current.IsCreated() {
		pp.logger.Warn("post-processing target is not created, skipping chain")
		return
	}

	if pp.frameCount > 1 {
		pp.temporalAccumulation(current, history, deltaTime)
	}
	pp.denoise(current, deltaTime)
	pp.storeHistory(current, history)
	if pp.cfg.EnableTemporalUpsampling {
		pp.upscale(current)
	}
	pp.toneMap(current)
}

func (pp *postProcessingPipeline) temporalAccumulation(current, history framebuffer.FrameBuffer, deltaTime float32) {
	if !compatible(current, history) {
		pp.logger.Debug("history buffer unusable, skipping temporal accumulation")
		return
	}
	p, ok := pp.program(shader.TemporalAccumulation)
	if !ok {
		return
	}
	p.Bind()
	defer p.Unbind()

	p.SetUniform("blend_factor", pp.blendFactor)
	p.SetUniform("frame_count", pp.frameCount)
	p.SetUniform("tick_delta", deltaTime)
	p.BindTexture("current_frame", current.ColorTexture(), 0)
	p.BindTexture("previous_frame", history.ColorTexture(), 1)
	p.BindTexture("motion_vectors", current.MotionTexture(), 2)
	pp.writeColor(p, current)
	pp.logger.Debug("temporal accumulation pass completed", "frame", pp.frameCount)
}

func (pp *postProcessingPipeline) denoise(current framebuffer.FrameBuffer, deltaTime float32) {
	p, ok := pp.program(shader.Denoising)
	if !ok {
		return
	}
	p.Bind()
	defer p.Unbind()

	p.SetUniform("filter_strength", float32(DenoiseFilterStrength))
	p.SetUniform("temporal_strength", float32(DenoiseTemporalStrength))
	p.SetUniform("frame_count", pp.frameCount)
	p.SetUniform("tick_delta", deltaTime)
	p.BindTexture("color_texture", current.ColorTexture(), 0)
	p.BindTexture("normal_texture", current.NormalTexture(), 1)
	p.BindTexture("material_texture", current.MaterialTexture(), 2)
	p.BindTexture("depth_texture", current.DepthTexture(), 3)
	pp.writeColor(p, current)
	pp.logger.Debug("denoising pass completed", "frame", pp.frameCount)
}

func (pp *postProcessingPipeline) upscale(current framebuffer.FrameBuffer) {
	p, ok := pp.program(shader.Upscaling)
	if !ok {
		return
	}
	p.Bind()
	defer p.Unbind()

	p.SetUniform("upscale_factor", float32(UpscaleFactor))
	p.SetUniform("sharpness", float32(UpscaleSharpness))
	p.SetUniform("frame_count", pp.frameCount)
	p.BindTexture("low_res_texture", current.ColorTexture(), 0)
	p.BindTexture("motion_vectors", current.MotionTexture(), 1)
	pp.writeColor(p, current)
	pp.logger.Debug("upscaling pass completed", "frame", pp.frameCount)
}

func (pp *postProcessingPipeline) toneMap(current framebuffer.FrameBuffer) {
	p, ok := pp.program(shader.ToneMapping)
	if !ok {
		return
	}
	p.Bind()
	defer p.Unbind()

	p.SetUniform("exposure", float32(ToneExposure))
	p.SetUniform("gamma", float32(ToneGamma))
	p.SetUniform("contrast", float32(ToneContrast))
	p.SetUniform("saturation", float32(ToneSaturation))
	p.BindTexture("hdr_texture", current.ColorTexture(), 0)

	if pp.compositor == nil {
		pp.logger.Debug("no compositor, tone mapped image not drawn")
		return
	}
	pp.compositor.Composite(p, current)
}

// writeColor binds the color attachment as the output image, dispatches p over current and orders
// the writes before the next pass samples them.
func (pp *postProcessingPipeline) writeColor(p shader.Program, current framebuffer.FrameBuffer) {
	p.BindImage("img_output", current.ColorTexture(), outputImageUnit, gpu.AccessWriteOnly, framebuffer.Color.Format(current.HDR()))
	x, y := DispatchSize(current.Width(), current.Height())
	p.DispatchCompute(x, y, 1)
	p.MemoryBarrier(gpu.BarrierImageAccess | gpu.BarrierTextureFetch)
}

// storeHistory copies the refined color into history so the next frame can blend against it.
func (pp *postProcessingPipeline) storeHistory(current, history framebuffer.FrameBuffer) {
	if !compatible(current, history) {
		return
	}
	if err := pp.device.CopyTexture(current.ColorTexture(), history.ColorTexture()); err != nil {
		pp.logger.Warn("failed to store temporal history", "err", err)
	}
}

func (pp *postProcessingPipeline) program(id shader.ProgramID) (shader.Program, bool) {
	p, ok := pp.shaders.Program(id)
	if !ok {
		pp.logger.Warn("shader program not available, skipping pass", "program", id.String())
	}
	return p, ok
}

// compatible reports whether history can stand in for the previous frame of current.
func compatible(current, history framebuffer.FrameBuffer) bool {
	return history != nil && history.IsCreated() &&
		history.Width() == current.Width() && history.Height() == current.Height() &&
		history.HDR() == current.HDR()
}

func (pp *postProcessingPipeline) SetTemporalBlendFactor(factor float32) {
	pp.blendFactor = common.Clamp(factor, 0, 1)
}

func (pp *postProcessingPipeline) TemporalBlendFactor() float32 {
	return pp.blendFactor
}

func (pp *postProcessingPipeline) TemporalFrameCount() uint32 {
	return pp.frameCount
}

func (pp *postProcessingPipeline) ResetTemporalAccumulation() {
	pp.frameCount = 0
	pp.logger.Debug("temporal accumulation reset")
}

func (pp *postProcessingPipeline) OnResize(width, height int) {
	pp.frameCount = 0
	pp.logger.Debug("post-processing pipeline resized", "width", width, "height", height)
}

func (pp *postProcessingPipeline) Cleanup() {
	if !pp.initialized {
		return
	}
	pp.frameCount = 0
	pp.initialized = false
	pp.logger.Info("post-processing pipeline cleaned up")
}

func (pp *postProcessingPipeline) IsInitialized() bool {
	return pp.initialized
}
