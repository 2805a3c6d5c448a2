package gpu

import "fmt"

// Handle types identify device objects. The zero value of every handle means "none".
type (
	// Stage is a compiled, not yet linked, shader stage.
	Stage uint32

	// Program is a linked graphics or compute program.
	Program uint32

	// Texture is a 2D texture usable as a sampled texture, a storage image and a render attachment.
	Texture uint32

	// RenderTarget is a set of color attachments plus an optional depth attachment.
	RenderTarget uint32

	// Buffer is a GPU buffer bound to uniform or storage binding points.
	Buffer uint32
)

// DefaultTarget is the back buffer. Binding it restores presentation output.
const DefaultTarget RenderTarget = 0

// StageKind identifies the pipeline stage a shader source is compiled for.
type StageKind int

const (
	StageVertex StageKind = iota
	StageFragment
	StageCompute
)

// String returns the conventional short name of the stage kind.
func (k StageKind) String() string {
	switch k {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	default:
		return fmt.Sprintf("StageKind(%d)", int(k))
	}
}

// TextureFormat is the logical pixel format requested by callers. Devices may store a wider
// physical format when the logical one is not directly supported for storage access.
type TextureFormat int

const (
	FormatUndefined TextureFormat = iota
	FormatRGBA8
	FormatRGBA16F
	FormatRGB16F
	FormatRG16F
	FormatDepth32F
)

// String returns the conventional name of the format.
func (f TextureFormat) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatRGBA16F:
		return "RGBA16F"
	case FormatRGB16F:
		return "RGB16F"
	case FormatRG16F:
		return "RG16F"
	case FormatDepth32F:
		return "DEPTH32F"
	default:
		return "UNDEFINED"
	}
}

// IsDepth reports whether the format holds depth values.
func (f TextureFormat) IsDepth() bool {
	return f == FormatDepth32F
}

// ImageAccess is the access mode of an image binding.
type ImageAccess int

const (
	AccessReadOnly ImageAccess = iota
	AccessWriteOnly
	AccessReadWrite
)

// String returns the access mode name.
func (a ImageAccess) String() string {
	switch a {
	case AccessReadOnly:
		return "read"
	case AccessWriteOnly:
		return "write"
	case AccessReadWrite:
		return "read_write"
	default:
		return fmt.Sprintf("ImageAccess(%d)", int(a))
	}
}

// Barrier selects the memory hazards a MemoryBarrier call resolves.
type Barrier uint32

const (
	// BarrierImageAccess orders storage image writes before later image loads and stores.
	BarrierImageAccess Barrier = 1 << iota

	// BarrierTextureFetch orders storage image writes before later sampled texture reads.
	BarrierTextureFetch

	// BarrierStorageBuffer orders storage buffer writes before later buffer reads.
	BarrierStorageBuffer

	// BarrierUniform orders buffer writes before later uniform reads.
	BarrierUniform

	// BarrierAll covers every hazard.
	BarrierAll = BarrierImageAccess | BarrierTextureFetch | BarrierStorageBuffer | BarrierUniform
)

// BufferKind selects the binding namespace of a buffer.
type BufferKind int

const (
	BufferUniform BufferKind = iota
	BufferStorage
)

// String returns the buffer kind name.
func (k BufferKind) String() string {
	if k == BufferStorage {
		return "storage"
	}
	return "uniform"
}

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	Label  string
	Width  int
	Height int
	Format TextureFormat
}

// AdapterInfo identifies the physical device backing a Device.
type AdapterInfo struct {
	// Vendor is the vendor name reported by the driver.
	Vendor string

	// Renderer is the adapter (GPU model) name.
	Renderer string

	// Version is the driver or API version description.
	Version string

	// Backend is the native graphics API (Vulkan, Metal, D3D12, ...).
	Backend string

	// Extensions lists the optional features the adapter exposes.
	Extensions []string
}

// UniformInfo describes one active uniform of a linked program. Resource variables (textures,
// images, samplers, buffers) are uniforms too: their value is the unit or binding point they read from.
type UniformInfo struct {
	// Name is the uniform name as written in the shader.
	Name string

	// Type is the shader type of the uniform.
	Type string

	// Location is the program-local location used with SetUniform.
	Location int

	// Size is the byte size of the value for plain data uniforms, 4 for resource uniforms.
	Size uint64

	// Resource is set when the uniform selects a unit or binding point.
	Resource bool
}
