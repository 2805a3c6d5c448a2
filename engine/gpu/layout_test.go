package gpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu/wgsl"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const layoutCompute = `
struct Params {
    blend_factor: f32,
    frame_count: u32,
}
@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var current_frame: texture_2d<f32>;
@group(0) @binding(2) var img_output: texture_storage_2d<rgba16float, write>;
@group(0) @binding(3) var<storage, read> scene: array<vec4f>;

@compute @workgroup_size(16, 16, 1)
fn main(@builtin(global_invocation_id) id: vec3u) {}
`

const layoutVertex = `
@group(0) @binding(0) var<uniform> exposure: f32;
@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4f { return vec4f(0.0); }
`

const layoutFragment = `
@group(0) @binding(0) var<uniform> exposure: f32;
@group(0) @binding(1) var hdr_texture: texture_2d<f32>;
@fragment
fn fs_main(@builtin(position) p: vec4f) -> @location(0) vec4f { return vec4f(exposure); }
`

func TestNewProgramLayoutCompute(t *testing.T) {
	l, err := NewProgramLayout(LinkStage{Kind: StageCompute, Module: wgsl.Reflect(layoutCompute)})
	require.NoError(t, err)

	assert.True(t, l.Compute)
	assert.Equal(t, [3]uint32{16, 16, 1}, l.WorkgroupSize)
	assert.Equal(t, "main", l.EntryPoints[StageCompute])

	names := make([]string, 0)
	for _, u := range l.Uniforms() {
		names = append(names, u.Name)
	}
	assert.Equal(t, []string{"blend_factor", "frame_count", "current_frame", "img_output", "scene"}, names)

	scene, ok := l.Lookup("scene")
	require.True(t, ok)
	assert.True(t, scene.Resource)
	sceneBinding, _ := l.BindingByName("scene")
	assert.Equal(t, 3, sceneBinding.Unit, "storage buffers default to their declared binding point")

	_, ok = l.Lookup("missing")
	assert.False(t, ok)
}

func TestProgramLayoutSet(t *testing.T) {
	l, err := NewProgramLayout(LinkStage{Kind: StageCompute, Module: wgsl.Reflect(layoutCompute)})
	require.NoError(t, err)

	params, _ := l.BindingByName("params")
	require.Len(t, params.Data, 16)
	params.Dirty = false

	frame, _ := l.Lookup("frame_count")
	data, err := EncodeUniform(frame.Type, 7)
	require.NoError(t, err)
	assert.True(t, l.Set(frame.Location, data))
	assert.True(t, params.Dirty)
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(params.Data[4:8]))

	tex, _ := l.Lookup("current_frame")
	assert.True(t, l.Set(tex.Location, EncodeUnit(2)))
	b, _ := l.BindingByName("current_frame")
	assert.Equal(t, 2, b.Unit)

	assert.False(t, l.Set(99, data))
	assert.False(t, l.Set(tex.Location, []byte{1}))
}

func TestNewProgramLayoutGraphicsMergesStages(t *testing.T) {
	l, err := NewProgramLayout(
		LinkStage{Kind: StageVertex, Module: wgsl.Reflect(layoutVertex)},
		LinkStage{Kind: StageFragment, Module: wgsl.Reflect(layoutFragment)},
	)
	require.NoError(t, err)

	assert.False(t, l.Compute)
	assert.Equal(t, []int{0}, l.FragmentOutputs)
	require.Len(t, l.Bindings, 2)
	assert.True(t, l.Bindings[0].Stages.Has(StageVertex))
	assert.True(t, l.Bindings[0].Stages.Has(StageFragment))
	assert.False(t, l.Bindings[1].Stages.Has(StageVertex))
}

func TestNewProgramLayoutErrors(t *testing.T) {
	vertex := LinkStage{Kind: StageVertex, Module: wgsl.Reflect(layoutVertex)}
	compute := LinkStage{Kind: StageCompute, Module: wgsl.Reflect(layoutCompute)}

	_, err := NewProgramLayout(vertex)
	assert.ErrorContains(t, err, "invalid stage combination")

	_, err = NewProgramLayout(vertex, compute)
	assert.ErrorContains(t, err, "invalid stage combination")

	_, err = NewProgramLayout(compute, compute)
	assert.ErrorContains(t, err, "more than once")

	_, err = NewProgramLayout(LinkStage{Kind: StageCompute, Module: wgsl.Reflect(layoutVertex)})
	assert.ErrorContains(t, err, "no @compute entry point")

	conflicting := `
@group(0) @binding(0) var<uniform> gamma: f32;
@fragment
fn fs_main() -> @location(0) vec4f { return vec4f(gamma); }
`
	_, err = NewProgramLayout(vertex, LinkStage{Kind: StageFragment, Module: wgsl.Reflect(conflicting)})
	assert.ErrorContains(t, err, "conflicting declarations")
}

func TestEncodeUniform(t *testing.T) {
	data, err := EncodeUniform("f32", 0.5)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(data)))

	data, err = EncodeUniform("mat4x4<f32>", mgl32.Ident4())
	require.NoError(t, err)
	require.Len(t, data, 64)
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(data[60:])))

	data, err = EncodeUniform("mat3x3f", mgl32.Ident3())
	require.NoError(t, err)
	assert.Len(t, data, 48)

	data, err = EncodeUniform("i32", -2)
	require.NoError(t, err)
	assert.Equal(t, int32(-2), int32(binary.LittleEndian.Uint32(data)))

	data, err = EncodeUniform("u32", true)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data))

	_, err = EncodeUniform("u32", -1)
	assert.Error(t, err)

	_, err = EncodeUniform("vec3f", mgl32.Vec4{})
	assert.ErrorContains(t, err, "cannot encode mgl32.Vec4 as vec3f")
}
