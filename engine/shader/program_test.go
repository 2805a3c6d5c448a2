package shader

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const computeSource = `
struct Params {
    strength: f32,
    frame: u32,
}
@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var color_texture: texture_2d<f32>;
@group(0) @binding(2) var img_output: texture_storage_2d<rgba16float, write>;

@compute @workgroup_size(16, 16, 1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {}
`

const vertexSource = `
@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}
`

const fragmentSource = `
@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0);
}
`

func linkedCompute(t *testing.T, d *gputest.Device) Program {
	t.Helper()
	p := NewProgram(d, "test")
	require.NoError(t, p.AttachStage(gpu.StageCompute, computeSource))
	require.NoError(t, p.Link())
	return p
}

func TestProgram_LinkReleasesStages(t *testing.T) {
	d := gputest.NewDevice()
	p := linkedCompute(t, d)

	assert.True(t, p.IsLinked())
	assert.True(t, p.IsCompute())
	assert.NotZero(t, p.Handle())

	stages, programs, _, _, _ := d.Live()
	assert.Equal(t, 0, stages)
	assert.Equal(t, 1, programs)
}

func TestProgram_GraphicsProgram(t *testing.T) {
	d := gputest.NewDevice()
	p := NewProgram(d, "graphics")
	require.NoError(t, p.AttachStage(gpu.StageVertex, vertexSource))
	require.NoError(t, p.AttachStage(gpu.StageFragment, fragmentSource))
	require.NoError(t, p.Link())

	assert.True(t, p.IsLinked())
	assert.False(t, p.IsCompute())

	p.Bind()
	p.DispatchCompute(1, 1, 1)
	assert.Empty(t, d.Dispatches)
}

func TestProgram_CompileError(t *testing.T) {
	d := gputest.NewDevice()
	d.FailCompile = func(kind gpu.StageKind, source string) error {
		return errors.New("error: expected ';'")
	}

	p := NewProgram(d, "broken")
	err := p.AttachStage(gpu.StageCompute, computeSource)

	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "broken", cerr.Program)
	assert.Equal(t, gpu.StageCompute, cerr.Stage)
	assert.Contains(t, cerr.Log, "expected ';'")
	assert.False(t, p.IsLinked())
}

func TestProgram_LinkErrors(t *testing.T) {
	t.Run("no stages", func(t *testing.T) {
		p := NewProgram(gputest.NewDevice(), "empty")
		var lerr *LinkError
		require.ErrorAs(t, p.Link(), &lerr)
		assert.Equal(t, "empty", lerr.Program)
	})

	t.Run("invalid combination", func(t *testing.T) {
		d := gputest.NewDevice()
		p := NewProgram(d, "vertex only")
		require.NoError(t, p.AttachStage(gpu.StageVertex, vertexSource))

		var lerr *LinkError
		require.ErrorAs(t, p.Link(), &lerr)
		assert.False(t, p.IsLinked())

		stages, programs, _, _, _ := d.Live()
		assert.Equal(t, 0, stages)
		assert.Equal(t, 0, programs)
	})

	t.Run("linker failure", func(t *testing.T) {
		d := gputest.NewDevice()
		d.FailLink = func([]gpu.StageKind) error { return errors.New("mismatched interface") }
		p := NewProgram(d, "mismatch")
		require.NoError(t, p.AttachStage(gpu.StageCompute, computeSource))

		var lerr *LinkError
		require.ErrorAs(t, p.Link(), &lerr)
		assert.Equal(t, "mismatched interface", lerr.Log)
	})
}

func TestProgram_BindUnlinkedIsRefused(t *testing.T) {
	d := gputest.NewDevice()
	p := NewProgram(d, "unlinked")

	p.Bind()
	assert.Empty(t, d.ProgramUses)

	p.DispatchCompute(1, 1, 1)
	assert.Empty(t, d.Dispatches)
}

func TestProgram_SetUniform(t *testing.T) {
	d := gputest.NewDevice()
	p := linkedCompute(t, d)

	p.SetUniform("strength", 0.75)
	p.SetUniform("frame", uint32(12))
	p.SetUniform("does_not_exist", 1.0)

	strength, ok := d.UniformFloat(p.Handle(), "strength")
	require.True(t, ok)
	assert.InDelta(t, 0.75, strength, 1e-6)

	frame, ok := d.UniformUint(p.Handle(), "frame")
	require.True(t, ok)
	assert.Equal(t, uint32(12), frame)
}

func TestProgram_BindResources(t *testing.T) {
	d := gputest.NewDevice()
	p := linkedCompute(t, d)

	color, err := d.CreateTexture(gpu.TextureDescriptor{Width: 8, Height: 8, Format: gpu.FormatRGBA16F})
	require.NoError(t, err)
	out, err := d.CreateTexture(gpu.TextureDescriptor{Width: 8, Height: 8, Format: gpu.FormatRGBA16F})
	require.NoError(t, err)

	p.Bind()
	p.BindTexture("color_texture", color, 2)
	p.BindImage("img_output", out, 1, gpu.AccessWriteOnly, gpu.FormatRGBA16F)

	assert.Equal(t, color, d.TextureUnits[2])
	assert.Equal(t, gputest.ImageBinding{Texture: out, Access: gpu.AccessWriteOnly, Format: gpu.FormatRGBA16F}, d.ImageUnits[1])

	unit, ok := d.UniformUint(p.Handle(), "color_texture")
	require.True(t, ok)
	assert.Equal(t, uint32(2), unit)
	unit, ok = d.UniformUint(p.Handle(), "img_output")
	require.True(t, ok)
	assert.Equal(t, uint32(1), unit)

	p.DispatchCompute(4, 2, 1)
	p.MemoryBarrier(gpu.BarrierImageAccess)
	assert.Equal(t, []gputest.Dispatch{{Program: p.Handle(), X: 4, Y: 2, Z: 1}}, d.Dispatches)
	assert.Equal(t, []gpu.Barrier{gpu.BarrierImageAccess}, d.Barriers)
	assert.Equal(t, 1, d.Writes(out))
	assert.Equal(t, 0, d.Writes(color))
}

func TestProgram_ActiveUniforms(t *testing.T) {
	p := linkedCompute(t, gputest.NewDevice())

	names := make([]string, 0)
	for _, u := range p.ActiveUniforms() {
		names = append(names, u.Name)
	}
	assert.ElementsMatch(t, []string{"strength", "frame", "color_texture", "img_output"}, names)

	assert.Nil(t, NewProgram(gputest.NewDevice(), "unlinked").ActiveUniforms())
}

func TestProgram_DeleteIsIdempotent(t *testing.T) {
	d := gputest.NewDevice()
	p := linkedCompute(t, d)

	p.Delete()
	p.Delete()

	assert.False(t, p.IsLinked())
	assert.Equal(t, 1, d.Released["program"])
	assert.Equal(t, 0, d.DoubleReleases)

	require.Error(t, p.AttachStage(gpu.StageCompute, computeSource))
}
