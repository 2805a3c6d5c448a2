package shader

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu/wgsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bundledLayout pre-processes and links the bundled sources of id.
func bundledLayout(t *testing.T, id ProgramID, defines map[string]string) *gpu.ProgramLayout {
	t.Helper()
	pp := NewPreProcessor(DefaultSource(), defines)

	var stages []gpu.LinkStage
	for _, kind := range id.Stages() {
		data, err := fs.ReadFile(DefaultSource(), id.SourcePath(kind))
		require.NoError(t, err)
		src, err := pp.Process(string(data))
		require.NoError(t, err)
		stages = append(stages, gpu.LinkStage{Kind: kind, Module: wgsl.Reflect(src)})
	}
	layout, err := gpu.NewProgramLayout(stages...)
	require.NoError(t, err)
	return layout
}

func TestBundle_ProgramsExposeTheirInterface(t *testing.T) {
	want := map[ProgramID][]string{
		RayTracing: {
			"view_matrix", "projection_matrix", "time", "frame", "tick_delta",
			"screen_width", "screen_height", "max_bounces", "samples_per_pixel",
			"max_distance", "gi_strength", "gi_samples", "reflection_strength", "reflection_quality",
			"ao_strength", "ao_radius", "shadow_strength", "shadow_samples",
			"img_output", "img_normal", "img_material", "img_motion", "scene",
		},
		GBuffer:              {"clear_color", "default_roughness", "default_metallic"},
		Lighting:             {"light_direction", "ambient", "light_color", "color_texture", "normal_texture", "material_texture"},
		TemporalAccumulation: {"blend_factor", "frame_count", "tick_delta", "current_frame", "previous_frame", "motion_vectors", "img_output"},
		Denoising: {
			"filter_strength", "temporal_strength", "frame_count", "tick_delta",
			"color_texture", "normal_texture", "material_texture", "depth_texture", "img_output",
		},
		ToneMapping: {"exposure", "gamma", "contrast", "saturation", "hdr_texture"},
		Upscaling:   {"upscale_factor", "sharpness", "frame_count", "low_res_texture", "motion_vectors", "img_output"},
	}

	for _, id := range ProgramIDs() {
		t.Run(id.String(), func(t *testing.T) {
			layout := bundledLayout(t, id, DefaultDefines)
			assert.Equal(t, id.Kind() == KindCompute, layout.Compute)
			if layout.Compute {
				assert.Equal(t, [3]uint32{16, 16, 1}, layout.WorkgroupSize)
			}
			for _, name := range want[id] {
				_, ok := layout.Lookup(name)
				assert.Truef(t, ok, "%s missing from %s", name, id)
			}
		})
	}
}

func TestBundle_RayTracingImageFormats(t *testing.T) {
	formats := map[string]string{
		"img_output":   "rgba16float",
		"img_normal":   "rgba16float",
		"img_material": "rgba8unorm",
		"img_motion":   "rg32float",
	}
	layout := bundledLayout(t, RayTracing, DefaultDefines)
	for name, format := range formats {
		b, ok := layout.BindingByName(name)
		require.True(t, ok)
		assert.Equal(t, wgsl.ResourceStorageTexture, b.Kind)
		assert.Equal(t, format, b.TexelFormat, name)
		assert.Equal(t, "write", b.Access, name)
	}

	scene, ok := layout.BindingByName("scene")
	require.True(t, ok)
	assert.Equal(t, wgsl.ResourceReadOnlyStorageBuffer, scene.Kind)
	assert.Equal(t, 0, scene.Unit, "scene reads storage binding point 0")

	ldr := bundledLayout(t, RayTracing, map[string]string{"color_format": "rgba8unorm"})
	out, _ := ldr.BindingByName("img_output")
	assert.Equal(t, "rgba8unorm", out.TexelFormat)
}

func TestBundle_DenoiseReadsDepthTexture(t *testing.T) {
	layout := bundledLayout(t, Denoising, DefaultDefines)
	b, ok := layout.BindingByName("depth_texture")
	require.True(t, ok)
	assert.Equal(t, wgsl.ResourceDepthTexture, b.Kind)
}

func TestBundle_GBufferWritesFourAttachments(t *testing.T) {
	layout := bundledLayout(t, GBuffer, DefaultDefines)
	assert.Equal(t, []int{0, 1, 2, 3}, layout.FragmentOutputs)
}

func TestBundle_FallbacksExist(t *testing.T) {
	for _, kind := range []gpu.StageKind{gpu.StageVertex, gpu.StageFragment, gpu.StageCompute} {
		_, err := fs.Stat(DefaultSource(), fallbackPath(kind))
		assert.NoError(t, err, kind.String())
	}
}

func TestLayeredFS(t *testing.T) {
	top := fstest.MapFS{"a.wgsl": {Data: []byte("top")}}
	bottom := fstest.MapFS{"a.wgsl": {Data: []byte("bottom")}, "b.wgsl": {Data: []byte("bottom b")}}
	l := layeredFS{nil, top, bottom}

	data, err := fs.ReadFile(l, "a.wgsl")
	require.NoError(t, err)
	assert.Equal(t, "top", string(data))

	data, err = fs.ReadFile(l, "b.wgsl")
	require.NoError(t, err)
	assert.Equal(t, "bottom b", string(data))

	_, err = fs.ReadFile(l, "c.wgsl")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
