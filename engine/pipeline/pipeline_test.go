package pipeline

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-rtx/engine/config"
	"github.com/Carmen-Shannon/oxy-rtx/engine/framebuffer"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-rtx/engine/shader"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	device  *gputest.Device
	shaders shader.Manager
	current framebuffer.FrameBuffer
	history framebuffer.FrameBuffer
}

// newFixture builds an initialized shader manager and two created frame buffers. fail, when set,
// rejects every stage whose source contains the given marker.
func newFixture(t *testing.T, width, height int, fail string) *fixture {
	t.Helper()
	d := gputest.NewDevice()
	if fail != "" {
		d.FailCompile = func(_ gpu.StageKind, source string) error {
			if strings.Contains(source, fail) {
				return errors.New("rejected")
			}
			return nil
		}
	}
	shaders := shader.NewManager(d)
	require.NoError(t, shaders.Initialize())

	current := framebuffer.New(d, width, height, true, framebuffer.WithLabel("current"))
	require.NoError(t, current.Create())
	history := framebuffer.New(d, width, height, true, framebuffer.WithLabel("history"))
	require.NoError(t, history.Create())
	return &fixture{device: d, shaders: shaders, current: current, history: history}
}

func (f *fixture) handle(t *testing.T, id shader.ProgramID) gpu.Program {
	t.Helper()
	p, ok := f.shaders.Program(id)
	require.True(t, ok, id.String())
	return p.Handle()
}

type sceneStub gpu.Buffer

func (s sceneStub) Buffer() gpu.Buffer { return gpu.Buffer(s) }

type recordingCompositor struct {
	calls   int
	program shader.Program
}

func (c *recordingCompositor) Composite(tone shader.Program, _ framebuffer.FrameBuffer) {
	c.calls++
	c.program = tone
}

func TestDispatchSize(t *testing.T) {
	tests := []struct {
		width, height int
		x, y          uint32
	}{
		{1920, 1080, 120, 68},
		{16, 16, 1, 1},
		{17, 1, 2, 1},
		{1, 1, 1, 1},
		{0, 10, 0, 1},
	}
	for _, tt := range tests {
		x, y := DispatchSize(tt.width, tt.height)
		assert.Equal(t, tt.x, x, "%dx%d", tt.width, tt.height)
		assert.Equal(t, tt.y, y, "%dx%d", tt.width, tt.height)
	}
}

func TestRayTracing_RenderBeforeInitializeIsNoop(t *testing.T) {
	f := newFixture(t, 64, 64, "")
	rt := NewRayTracingPipeline(f.device, f.shaders)

	rt.Render(mgl32.Ident4(), mgl32.Ident4(), f.current, 0.016)
	assert.Zero(t, rt.FrameCounter())
	assert.Empty(t, f.device.Dispatches)
}

func TestRayTracing_RenderDispatchesFullHD(t *testing.T) {
	f := newFixture(t, 1920, 1080, "")
	cfg := config.Default()
	cfg.SetMaxRayBounces(5)
	rt := NewRayTracingPipeline(f.device, f.shaders, WithRayTracingConfig(cfg))
	require.NoError(t, rt.Initialize())

	rt.Render(mgl32.Ident4(), mgl32.Ident4(), f.current, 0.016)

	h := f.handle(t, shader.RayTracing)
	dispatches := f.device.DispatchesOf(h)
	require.Len(t, dispatches, 1)
	assert.Equal(t, gputest.Dispatch{Program: h, X: 120, Y: 68, Z: 1}, dispatches[0])
	assert.Equal(t, uint32(1), rt.FrameCounter())

	frame, _ := f.device.UniformUint(h, "frame")
	assert.Equal(t, uint32(1), frame)
	width, _ := f.device.UniformUint(h, "screen_width")
	assert.Equal(t, uint32(1920), width)
	bounces, _ := f.device.UniformUint(h, "max_bounces")
	assert.Equal(t, uint32(5), bounces)

	want := []struct {
		unit   int
		tex    gpu.Texture
		format gpu.TextureFormat
	}{
		{0, f.current.ColorTexture(), gpu.FormatRGBA16F},
		{1, f.current.NormalTexture(), gpu.FormatRGB16F},
		{2, f.current.MaterialTexture(), gpu.FormatRGBA8},
		{3, f.current.MotionTexture(), gpu.FormatRG16F},
	}
	for _, w := range want {
		img := f.device.ImageUnits[w.unit]
		assert.Equal(t, w.tex, img.Texture, "unit %d", w.unit)
		assert.Equal(t, gpu.AccessWriteOnly, img.Access, "unit %d", w.unit)
		assert.Equal(t, w.format, img.Format, "unit %d", w.unit)
		assert.Equal(t, 1, f.device.Writes(w.tex), "unit %d", w.unit)
	}

	require.NotEmpty(t, f.device.Barriers)
	last := f.device.Barriers[len(f.device.Barriers)-1]
	assert.Equal(t, gpu.BarrierImageAccess|gpu.BarrierTextureFetch, last)
	assert.Zero(t, f.device.ActiveProgram, "program is unbound after the pass")
}

func TestRayTracing_LightingUniforms(t *testing.T) {
	f := newFixture(t, 32, 32, "")
	cfg := config.Default()
	cfg.RayTracingDistance = 64
	cfg.AmbientOcclusion.Enabled = false
	cfg.Shadows.Samples = 2
	rt := NewRayTracingPipeline(f.device, f.shaders, WithRayTracingConfig(cfg))
	require.NoError(t, rt.Initialize())
	rt.Render(mgl32.Ident4(), mgl32.Ident4(), f.current, 0.016)

	h := f.handle(t, shader.RayTracing)
	distance, _ := f.device.UniformFloat(h, "max_distance")
	assert.Equal(t, float32(64), distance)
	gi, _ := f.device.UniformFloat(h, "gi_strength")
	assert.Equal(t, float32(1), gi)
	ao, ok := f.device.UniformFloat(h, "ao_strength")
	require.True(t, ok)
	assert.Zero(t, ao, "a disabled effect has zero strength")
	radius, _ := f.device.UniformFloat(h, "ao_radius")
	assert.Equal(t, float32(2), radius)
	shadows, _ := f.device.UniformUint(h, "shadow_samples")
	assert.Equal(t, uint32(2), shadows)
	quality, _ := f.device.UniformUint(h, "reflection_quality")
	assert.Equal(t, uint32(1), quality)
}

func TestRayTracing_SceneBinding(t *testing.T) {
	f := newFixture(t, 32, 32, "")
	rt := NewRayTracingPipeline(f.device, f.shaders)
	require.NoError(t, rt.Initialize())
	rt.Render(mgl32.Ident4(), mgl32.Ident4(), f.current, 0.016)
	empty := f.device.BufferBindings[gpu.BufferStorage][SceneBinding]
	assert.NotZero(t, empty, "an empty scene is bound without a scene source")

	buf, err := f.device.CreateBuffer(gpu.BufferStorage, 64, "scene")
	require.NoError(t, err)
	rt = NewRayTracingPipeline(f.device, f.shaders, WithScene(sceneStub(buf)))
	require.NoError(t, rt.Initialize())
	rt.Render(mgl32.Ident4(), mgl32.Ident4(), f.current, 0.016)
	assert.Equal(t, buf, f.device.BufferBindings[gpu.BufferStorage][SceneBinding])
}

func TestRayTracing_TimeUniform(t *testing.T) {
	f := newFixture(t, 16, 16, "")
	start := time.Unix(100, 0)
	now := start
	rt := NewRayTracingPipeline(f.device, f.shaders, WithClock(func() time.Time { return now }))
	require.NoError(t, rt.Initialize())

	now = start.Add(1500 * time.Millisecond)
	rt.Render(mgl32.Ident4(), mgl32.Ident4(), f.current, 0.016)
	elapsed, ok := f.device.UniformFloat(f.handle(t, shader.RayTracing), "time")
	require.True(t, ok)
	assert.InDelta(t, 1.5, elapsed, 1e-6)

	now = start.Add(1_000_250 * time.Millisecond)
	rt.Render(mgl32.Ident4(), mgl32.Ident4(), f.current, 0.016)
	elapsed, _ = f.device.UniformFloat(f.handle(t, shader.RayTracing), "time")
	assert.InDelta(t, 0.25, elapsed, 1e-6, "time wraps every 1000 seconds")
}

func TestRayTracing_MissingProgramLeavesTargetUntouched(t *testing.T) {
	f := newFixture(t, 64, 64, "RayParams")
	require.False(t, f.shaders.Has(shader.RayTracing))
	rt := NewRayTracingPipeline(f.device, f.shaders)
	require.NoError(t, rt.Initialize())

	assert.NotPanics(t, func() {
		rt.Render(mgl32.Ident4(), mgl32.Ident4(), f.current, 0.016)
	})
	assert.Equal(t, uint32(1), rt.FrameCounter())
	assert.Empty(t, f.device.Dispatches)
	for _, a := range framebuffer.Attachments {
		assert.Zero(t, f.device.Writes(f.current.Texture(a)), a.String())
	}
}

func TestRayTracing_ResizeKeepsFrameCounter(t *testing.T) {
	f := newFixture(t, 16, 16, "")
	rt := NewRayTracingPipeline(f.device, f.shaders)
	require.NoError(t, rt.Initialize())
	rt.Render(mgl32.Ident4(), mgl32.Ident4(), f.current, 0.016)
	rt.OnResize(800, 600)
	rt.Render(mgl32.Ident4(), mgl32.Ident4(), f.current, 0.016)
	assert.Equal(t, uint32(2), rt.FrameCounter())
}

func TestRayTracing_CleanupIsIdempotent(t *testing.T) {
	f := newFixture(t, 16, 16, "")
	rt := NewRayTracingPipeline(f.device, f.shaders)
	require.NoError(t, rt.Initialize())
	require.NoError(t, rt.Initialize())
	_, _, _, buffers, _ := f.device.Live()
	assert.Equal(t, 1, buffers)

	rt.Cleanup()
	rt.Cleanup()
	assert.False(t, rt.IsInitialized())
	assert.Equal(t, 1, f.device.Released["buffer"])
	assert.Zero(t, f.device.DoubleReleases)
}

func TestPostProcessing_TemporalSkippedAfterReset(t *testing.T) {
	f := newFixture(t, 64, 64, "")
	pp := NewPostProcessingPipeline(f.device, f.shaders)
	require.NoError(t, pp.Initialize())
	temporal := f.handle(t, shader.TemporalAccumulation)

	pp.Process(f.current, f.history, 0.016)
	assert.Empty(t, f.device.DispatchesOf(temporal), "no history on the first frame")
	pp.Process(f.current, f.history, 0.016)
	assert.Len(t, f.device.DispatchesOf(temporal), 1)
	frameCount, _ := f.device.UniformUint(temporal, "frame_count")
	assert.Equal(t, uint32(2), frameCount)

	pp.OnResize(128, 128)
	assert.Zero(t, pp.TemporalFrameCount())
	pp.Process(f.current, f.history, 0.016)
	assert.Len(t, f.device.DispatchesOf(temporal), 1)
	pp.Process(f.current, f.history, 0.016)
	assert.Len(t, f.device.DispatchesOf(temporal), 2)

	pp.ResetTemporalAccumulation()
	pp.Process(f.current, f.history, 0.016)
	assert.Len(t, f.device.DispatchesOf(temporal), 2)
	pp.Process(f.current, f.history, 0.016)
	assert.Len(t, f.device.DispatchesOf(temporal), 3)
}

func TestPostProcessing_TemporalBindings(t *testing.T) {
	f := newFixture(t, 1920, 1080, "")
	pp := NewPostProcessingPipeline(f.device, f.shaders, WithTemporalBlendFactor(0.75))
	require.NoError(t, pp.Initialize())
	pp.Process(f.current, f.history, 0.016)
	pp.Process(f.current, f.history, 0.016)

	temporal := f.handle(t, shader.TemporalAccumulation)
	dispatches := f.device.DispatchesOf(temporal)
	require.Len(t, dispatches, 1)
	assert.Equal(t, uint32(120), dispatches[0].X)
	assert.Equal(t, uint32(68), dispatches[0].Y)

	blend, _ := f.device.UniformFloat(temporal, "blend_factor")
	assert.Equal(t, float32(0.75), blend)
	unit, _ := f.device.UniformUint(temporal, "previous_frame")
	assert.Equal(t, uint32(1), unit)
}

func TestPostProcessing_DenoiseAndHistoryEveryFrame(t *testing.T) {
	f := newFixture(t, 64, 64, "")
	pp := NewPostProcessingPipeline(f.device, f.shaders)
	require.NoError(t, pp.Initialize())

	for range 3 {
		pp.Process(f.current, f.history, 0.016)
	}
	denoise := f.handle(t, shader.Denoising)
	assert.Len(t, f.device.DispatchesOf(denoise), 3)
	strength, _ := f.device.UniformFloat(denoise, "temporal_strength")
	assert.Equal(t, float32(DenoiseTemporalStrength), strength)
	assert.Equal(t, 3, f.device.Writes(f.history.ColorTexture()), "history receives one copy per frame")
	assert.Equal(t, uint32(3), pp.TemporalFrameCount())
}

func TestPostProcessing_FrameCountAdvancesWithoutTarget(t *testing.T) {
	f := newFixture(t, 16, 16, "")
	pp := NewPostProcessingPipeline(f.device, f.shaders)
	require.NoError(t, pp.Initialize())

	pp.Process(framebuffer.New(f.device, 16, 16, true), f.history, 0.016)
	assert.Equal(t, uint32(1), pp.TemporalFrameCount())
	assert.Empty(t, f.device.Dispatches)

	pp.Process(f.current, f.history, 0.016)
	assert.Len(t, f.device.DispatchesOf(f.handle(t, shader.TemporalAccumulation)), 1)
}

func TestPostProcessing_UpscalingFollowsConfig(t *testing.T) {
	f := newFixture(t, 64, 64, "")
	upscale := f.handle(t, shader.Upscaling)
	cfg := config.Default()
	pp := NewPostProcessingPipeline(f.device, f.shaders, WithPostProcessingConfig(cfg))
	require.NoError(t, pp.Initialize())

	pp.Process(f.current, f.history, 0.016)
	assert.Empty(t, f.device.DispatchesOf(upscale), "upscaling is disabled by default")

	cfg.EnableTemporalUpsampling = true
	pp.Process(f.current, f.history, 0.016)
	require.Len(t, f.device.DispatchesOf(upscale), 1)
	factor, _ := f.device.UniformFloat(upscale, "upscale_factor")
	assert.Equal(t, float32(UpscaleFactor), factor)

	last := f.device.Dispatches[len(f.device.Dispatches)-1]
	assert.Equal(t, upscale, last.Program, "upscaling is the last compute pass before tone mapping")
	assert.Len(t, f.device.DispatchesOf(f.handle(t, shader.Denoising)), 2)
}

func TestPostProcessing_ToneMapUsesCompositor(t *testing.T) {
	f := newFixture(t, 64, 64, "")
	c := &recordingCompositor{}
	pp := NewPostProcessingPipeline(f.device, f.shaders, WithCompositor(c))
	require.NoError(t, pp.Initialize())
	pp.Process(f.current, f.history, 0.016)

	require.Equal(t, 1, c.calls)
	assert.Equal(t, f.handle(t, shader.ToneMapping), c.program.Handle())
	gamma, _ := f.device.UniformFloat(c.program.Handle(), "gamma")
	assert.Equal(t, float32(ToneGamma), gamma)
	assert.Zero(t, f.device.ActiveProgram)
}

func TestBackBufferCompositor(t *testing.T) {
	f := newFixture(t, 64, 64, "")
	pp := NewPostProcessingPipeline(f.device, f.shaders, WithCompositor(NewBackBufferCompositor(f.device)))
	require.NoError(t, pp.Initialize())
	pp.Process(f.current, f.history, 0.016)

	require.Len(t, f.device.Draws, 1)
	assert.Equal(t, gpu.DefaultTarget, f.device.Draws[0].Target)
	assert.Equal(t, f.handle(t, shader.ToneMapping), f.device.Draws[0].Program)
}

func TestPostProcessing_MissingProgramsAreSkipped(t *testing.T) {
	f := newFixture(t, 64, 64, "TemporalParams")
	pp := NewPostProcessingPipeline(f.device, f.shaders)
	require.NoError(t, pp.Initialize())

	assert.NotPanics(t, func() {
		pp.Process(f.current, f.history, 0.016)
		pp.Process(f.current, f.history, 0.016)
	})
	assert.Len(t, f.device.DispatchesOf(f.handle(t, shader.Denoising)), 2)
}

func TestPostProcessing_HistorySizeMismatchSkipsTemporal(t *testing.T) {
	f := newFixture(t, 64, 64, "")
	small := framebuffer.New(f.device, 32, 32, true)
	require.NoError(t, small.Create())
	pp := NewPostProcessingPipeline(f.device, f.shaders)
	require.NoError(t, pp.Initialize())

	pp.Process(f.current, small, 0.016)
	pp.Process(f.current, small, 0.016)
	assert.Empty(t, f.device.DispatchesOf(f.handle(t, shader.TemporalAccumulation)))
	assert.Zero(t, f.device.Writes(small.ColorTexture()))
}

func TestPostProcessing_BlendFactorClamp(t *testing.T) {
	f := newFixture(t, 16, 16, "")
	pp := NewPostProcessingPipeline(f.device, f.shaders)
	assert.Equal(t, float32(DefaultTemporalBlendFactor), pp.TemporalBlendFactor())
	pp.SetTemporalBlendFactor(1.5)
	assert.Equal(t, float32(1), pp.TemporalBlendFactor())
	pp.SetTemporalBlendFactor(-1)
	assert.Equal(t, float32(0), pp.TemporalBlendFactor())
}

func TestPostProcessing_NotInitializedIsNoop(t *testing.T) {
	f := newFixture(t, 16, 16, "")
	pp := NewPostProcessingPipeline(f.device, f.shaders)
	pp.Process(f.current, f.history, 0.016)
	assert.Zero(t, pp.TemporalFrameCount())
	assert.Empty(t, f.device.Dispatches)

	require.NoError(t, pp.Initialize())
	pp.Cleanup()
	pp.Cleanup()
	assert.False(t, pp.IsInitialized())
}
