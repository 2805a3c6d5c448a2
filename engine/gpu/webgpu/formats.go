package webgpu

import (
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// physicalFormats maps logical formats to the stored wgpu format. RGB16F has no three channel
// wgpu equivalent and RG16F is not storage capable, so both are widened.
var physicalFormats = map[gpu.TextureFormat]wgpu.TextureFormat{
	gpu.FormatRGBA8:    wgpu.TextureFormatRGBA8Unorm,
	gpu.FormatRGBA16F:  wgpu.TextureFormatRGBA16Float,
	gpu.FormatRGB16F:   wgpu.TextureFormatRGBA16Float,
	gpu.FormatRG16F:    wgpu.TextureFormatRG32Float,
	gpu.FormatDepth32F: wgpu.TextureFormatDepth32Float,
}

// texelFormatNames maps stored wgpu formats to the WGSL texel format a storage binding must declare.
var texelFormatNames = map[wgpu.TextureFormat]string{
	wgpu.TextureFormatRGBA8Unorm:   "rgba8unorm",
	wgpu.TextureFormatRGBA16Float:  "rgba16float",
	wgpu.TextureFormatRG32Float:    "rg32float",
	wgpu.TextureFormatRGBA32Float:  "rgba32float",
	wgpu.TextureFormatR32Float:     "r32float",
	wgpu.TextureFormatBGRA8Unorm:   "bgra8unorm",
	wgpu.TextureFormatRGBA8Snorm:   "rgba8snorm",
	wgpu.TextureFormatRGBA16Uint:   "rgba16uint",
	wgpu.TextureFormatRGBA32Uint:   "rgba32uint",
	wgpu.TextureFormatR32Uint:      "r32uint",
	wgpu.TextureFormatRG32Uint:     "rg32uint",
	wgpu.TextureFormatDepth32Float: "depth32float",
}

// wgslTexelFormatMap maps WGSL texel format strings to their corresponding wgpu texture formats.
// These are the formats valid for storage textures per the WGSL specification.
var wgslTexelFormatMap = map[string]wgpu.TextureFormat{
	"rgba8unorm":  wgpu.TextureFormatRGBA8Unorm,
	"rgba8snorm":  wgpu.TextureFormatRGBA8Snorm,
	"rgba8uint":   wgpu.TextureFormatRGBA8Uint,
	"rgba8sint":   wgpu.TextureFormatRGBA8Sint,
	"rgba16uint":  wgpu.TextureFormatRGBA16Uint,
	"rgba16sint":  wgpu.TextureFormatRGBA16Sint,
	"rgba16float": wgpu.TextureFormatRGBA16Float,
	"r32uint":     wgpu.TextureFormatR32Uint,
	"r32sint":     wgpu.TextureFormatR32Sint,
	"r32float":    wgpu.TextureFormatR32Float,
	"rg32uint":    wgpu.TextureFormatRG32Uint,
	"rg32sint":    wgpu.TextureFormatRG32Sint,
	"rg32float":   wgpu.TextureFormatRG32Float,
	"rgba32uint":  wgpu.TextureFormatRGBA32Uint,
	"rgba32sint":  wgpu.TextureFormatRGBA32Sint,
	"rgba32float": wgpu.TextureFormatRGBA32Float,
	"bgra8unorm":  wgpu.TextureFormatBGRA8Unorm,
}

// wgslViewDimensionMap maps WGSL texture dimension suffixes to wgpu view dimensions
var wgslViewDimensionMap = map[string]wgpu.TextureViewDimension{
	"1d":         wgpu.TextureViewDimension1D,
	"2d":         wgpu.TextureViewDimension2D,
	"2d_array":   wgpu.TextureViewDimension2DArray,
	"3d":         wgpu.TextureViewDimension3D,
	"cube":       wgpu.TextureViewDimensionCube,
	"cube_array": wgpu.TextureViewDimensionCubeArray,
}

// wgslSampleTypeMap maps WGSL sampled component types to wgpu sample types. Float textures are
// declared unfilterable so 32-bit float attachments can be bound without the filterable feature.
var wgslSampleTypeMap = map[string]wgpu.TextureSampleType{
	"f32":   wgpu.TextureSampleTypeUnfilterableFloat,
	"i32":   wgpu.TextureSampleTypeSint,
	"u32":   wgpu.TextureSampleTypeUint,
	"depth": wgpu.TextureSampleTypeDepth,
}

// wgslStorageAccessMap maps WGSL access mode keywords to their wgpu storage texture access
var wgslStorageAccessMap = map[string]wgpu.StorageTextureAccess{
	"write":      wgpu.StorageTextureAccessWriteOnly,
	"read":       wgpu.StorageTextureAccessReadOnly,
	"read_write": wgpu.StorageTextureAccessReadWrite,
}

// stageVisibility maps device stage kinds to wgpu shader stage flags.
var stageVisibility = map[gpu.StageKind]wgpu.ShaderStage{
	gpu.StageVertex:   wgpu.ShaderStageVertex,
	gpu.StageFragment: wgpu.ShaderStageFragment,
	gpu.StageCompute:  wgpu.ShaderStageCompute,
}
