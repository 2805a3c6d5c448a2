package wgsl

// Stage identifies a WGSL entry point stage.
type Stage int

const (
	// StageVertex marks a @vertex entry point.
	StageVertex Stage = iota

	// StageFragment marks a @fragment entry point.
	StageFragment

	// StageCompute marks a @compute entry point.
	StageCompute
)

// String returns the WGSL attribute name of the stage.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	default:
		return "unknown"
	}
}

// ResourceKind classifies a module-scope resource variable by how it is bound.
type ResourceKind int

const (
	ResourceUnknown ResourceKind = iota
	ResourceUniformBuffer
	ResourceStorageBuffer
	ResourceReadOnlyStorageBuffer
	ResourceTexture
	ResourceDepthTexture
	ResourceStorageTexture
	ResourceSampler
	ResourceComparisonSampler
)

// String returns a short human readable name for the resource kind.
func (k ResourceKind) String() string {
	switch k {
	case ResourceUniformBuffer:
		return "uniform"
	case ResourceStorageBuffer:
		return "storage"
	case ResourceReadOnlyStorageBuffer:
		return "storage_read"
	case ResourceTexture:
		return "texture"
	case ResourceDepthTexture:
		return "depth_texture"
	case ResourceStorageTexture:
		return "storage_texture"
	case ResourceSampler:
		return "sampler"
	case ResourceComparisonSampler:
		return "sampler_comparison"
	default:
		return "unknown"
	}
}

// IsBuffer reports whether the resource is backed by a buffer.
func (k ResourceKind) IsBuffer() bool {
	return k == ResourceUniformBuffer || k == ResourceStorageBuffer || k == ResourceReadOnlyStorageBuffer
}

// IsTexture reports whether the resource is a sampled or depth texture read through a texture unit.
func (k ResourceKind) IsTexture() bool {
	return k == ResourceTexture || k == ResourceDepthTexture
}

// Field is one member of a host-shareable struct with its resolved byte layout.
type Field struct {
	// Name is the WGSL member name.
	Name string

	// Type is the WGSL type string as written in the source.
	Type string

	// Offset is the byte offset of the member from the start of the struct.
	Offset uint64

	// Size is the byte size of the member.
	Size uint64
}

// Binding describes one @group(N) @binding(M) variable declaration.
type Binding struct {
	Group   uint32
	Binding uint32

	// Name is the variable name.
	Name string

	// AddressSpace is the var<...> qualifier, empty for handle types.
	AddressSpace string

	// Type is the declared WGSL type string.
	Type string

	// Kind classifies how the variable is bound.
	Kind ResourceKind

	// ViewDimension is the texture dimension suffix ("2d", "2d_array", "cube", ...).
	ViewDimension string

	// SampleType is the sampled component type ("f32", "i32", "u32") or "depth".
	SampleType string

	// Multisampled is set for texture_multisampled_2d and texture_depth_multisampled_2d.
	Multisampled bool

	// TexelFormat is the storage texture texel format (e.g. "rgba16float").
	TexelFormat string

	// Access is the storage texture access mode ("write", "read", "read_write").
	Access string

	// Size is the resolved byte size of a buffer binding. For runtime-sized arrays this is the
	// fixed prefix, or one element stride when the array is the only member.
	Size uint64

	// Fields lists the struct members of a buffer binding, or a single member named after the
	// variable when the buffer holds a bare scalar, vector or matrix.
	Fields []Field
}

// Module is the reflected interface of a single WGSL source.
type Module struct {
	// Bindings holds every resource variable sorted by group then binding.
	Bindings []Binding

	// EntryPoints maps each stage present in the source to its entry point function name.
	EntryPoints map[Stage]string

	// WorkgroupSize is the @workgroup_size of the compute entry point, [1, 1, 1] when absent.
	WorkgroupSize [3]uint32

	// FragmentOutputs lists the @location indices written by the fragment entry point.
	FragmentOutputs []int
}

// typeLayout holds the byte size and alignment for a WGSL type per the WGSL specification.
type typeLayout struct {
	size  uint64
	align uint64
}

// parsedField represents a single field extracted from a WGSL struct during parsing
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

// parsedStruct represents a WGSL struct block extracted during parsing
type parsedStruct struct {
	name   string
	fields []parsedField
}
