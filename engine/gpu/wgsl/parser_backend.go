package wgsl

import (
	"strconv"
	"strings"
)

// wgslPrimitiveLayoutMap maps WGSL primitive, vector, matrix, and atomic type names
// to their byte size and alignment per the WGSL specification.
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
var wgslPrimitiveLayoutMap = map[string]typeLayout{
	// Scalars
	"f32":  {4, 4},
	"i32":  {4, 4},
	"u32":  {4, 4},
	"f16":  {2, 2},
	"bool": {4, 4},

	// Vectors – f32
	"vec2<f32>": {8, 8},
	"vec2f":     {8, 8},
	"vec3<f32>": {12, 16},
	"vec3f":     {12, 16},
	"vec4<f32>": {16, 16},
	"vec4f":     {16, 16},

	// Vectors – i32
	"vec2<i32>": {8, 8},
	"vec2i":     {8, 8},
	"vec3<i32>": {12, 16},
	"vec3i":     {12, 16},
	"vec4<i32>": {16, 16},
	"vec4i":     {16, 16},

	// Vectors – u32
	"vec2<u32>": {8, 8},
	"vec2u":     {8, 8},
	"vec3<u32>": {12, 16},
	"vec3u":     {12, 16},
	"vec4<u32>": {16, 16},
	"vec4u":     {16, 16},

	// Matrices – matCxR<f32>: C columns of vecR<f32>, stride = roundUp(align(vecR), size(vecR))
	"mat2x2<f32>": {16, 8},
	"mat2x2f":     {16, 8},
	"mat3x3<f32>": {48, 16},
	"mat3x3f":     {48, 16},
	"mat4x4<f32>": {64, 16},
	"mat4x4f":     {64, 16},

	// Atomic types
	"atomic<u32>": {4, 4},
	"atomic<i32>": {4, 4},
}

// PrimitiveSize returns the byte size of a WGSL scalar, vector or matrix type.
//
// Parameters:
//   - typeName: the WGSL type name, e.g. "f32", "vec3f", "mat4x4<f32>"
//
// Returns:
//   - uint64: the size in bytes
//   - bool: false if the type is not a known primitive
func PrimitiveSize(typeName string) (uint64, bool) {
	layout, ok := wgslPrimitiveLayoutMap[typeName]
	return layout.size, ok
}

// roundUpAlign rounds value up to the next multiple of alignment.
// Alignment must be a power of two.
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// resolveTypeLayout resolves a WGSL type name to its size and alignment using primitives
// and previously-computed struct layouts. Handles fixed-size arrays (array<T, N>) and
// runtime-sized arrays, which resolve to one element stride.
//
// Parameters:
//   - typeName: the WGSL type name to resolve, e.g. "f32", "Params", "array<Sphere, 8>"
//   - knownTypes: a map of already-resolved type names to their layouts
//
// Returns:
//   - typeLayout: the resolved layout
//   - bool: true if the type could be resolved
func resolveTypeLayout(typeName string, knownTypes map[string]typeLayout) (typeLayout, bool) {
	if layout, ok := wgslPrimitiveLayoutMap[typeName]; ok {
		return layout, true
	}
	if layout, ok := knownTypes[typeName]; ok {
		return layout, true
	}

	inner, ok := strings.CutPrefix(typeName, "array<")
	if !ok || !strings.HasSuffix(inner, ">") {
		return typeLayout{}, false
	}
	inner = inner[:len(inner)-1]
	parts := strings.SplitN(inner, ",", 2)

	elemLayout, ok := resolveTypeLayout(strings.TrimSpace(parts[0]), knownTypes)
	if !ok {
		return typeLayout{}, false
	}
	stride := roundUpAlign(elemLayout.align, elemLayout.size)

	if len(parts) == 2 {
		count, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			return typeLayout{}, false
		}
		return typeLayout{count * stride, elemLayout.align}, true
	}

	return typeLayout{stride, elemLayout.align}, true
}

// isRuntimeArray reports whether typeName is a runtime-sized array<T>.
func isRuntimeArray(typeName string) bool {
	return strings.HasPrefix(typeName, "array<") && !strings.Contains(typeName, ",")
}

// computeStructLayout computes the byte size and alignment of a single WGSL struct using
// WGSL struct layout rules: each field is placed at the next aligned offset, and the total
// size is rounded up to the struct's alignment (max alignment of all fields).
//
// A trailing runtime-sized array contributes nothing beyond its aligned start offset, unless it
// is the only member, in which case one element stride is used. Builtin fields are skipped.
//
// Parameters:
//   - ps: the parsed struct whose layout to compute
//   - knownTypes: a map of already-resolved type names to their layouts
//
// Returns:
//   - typeLayout: the computed layout
//   - bool: true if all fields could be resolved
func computeStructLayout(ps parsedStruct, knownTypes map[string]typeLayout) (typeLayout, bool) {
	offset := uint64(0)
	maxAlign := uint64(1)

	for _, field := range ps.fields {
		if field.isBuiltin {
			continue
		}

		fieldLayout, ok := resolveTypeLayout(field.typeName, knownTypes)
		if !ok {
			return typeLayout{}, false
		}
		if fieldLayout.align > maxAlign {
			maxAlign = fieldLayout.align
		}

		offset = roundUpAlign(fieldLayout.align, offset)
		if isRuntimeArray(field.typeName) {
			if offset == 0 {
				return fieldLayout, true
			}
			return typeLayout{roundUpAlign(maxAlign, offset), maxAlign}, true
		}
		offset += fieldLayout.size
	}

	return typeLayout{roundUpAlign(maxAlign, offset), maxAlign}, true
}

// computeStructSizes computes the byte size and alignment of all parsed WGSL structs.
// It resolves dependencies between structs iteratively, handling cases where one struct
// contains fields typed as another struct.
//
// Parameters:
//   - structs: all parsed struct blocks from the WGSL source
//
// Returns:
//   - map[string]typeLayout: a map from struct name to computed layout
func computeStructSizes(structs []parsedStruct) map[string]typeLayout {
	resolved := make(map[string]typeLayout, len(structs))
	remaining := make([]parsedStruct, len(structs))
	copy(remaining, structs)

	for {
		progress := false
		next := remaining[:0]

		for _, ps := range remaining {
			if layout, ok := computeStructLayout(ps, resolved); ok {
				resolved[ps.name] = layout
				progress = true
			} else {
				next = append(next, ps)
			}
		}

		remaining = next
		if !progress || len(remaining) == 0 {
			break
		}
	}

	return resolved
}

// structFieldLayouts resolves the byte offset and size of each member of a struct. Members whose
// type cannot be resolved end the list, since every later offset would be unknown.
//
// Parameters:
//   - ps: the parsed struct
//   - knownTypes: a map of already-resolved type names to their layouts
//
// Returns:
//   - []Field: the members in declaration order
func structFieldLayouts(ps parsedStruct, knownTypes map[string]typeLayout) []Field {
	fields := make([]Field, 0, len(ps.fields))
	offset := uint64(0)
	for _, f := range ps.fields {
		if f.isBuiltin {
			continue
		}
		layout, ok := resolveTypeLayout(f.typeName, knownTypes)
		if !ok {
			break
		}
		offset = roundUpAlign(layout.align, offset)
		fields = append(fields, Field{Name: f.name, Type: f.typeName, Offset: offset, Size: layout.size})
		offset += layout.size
	}
	return fields
}

// classifyResource fills in the kind and texture details of a binding from its address space and type.
//
// Parameters:
//   - b: the binding to classify, with AddressSpace and Type already set
func classifyResource(b *Binding) {
	if b.AddressSpace != "" {
		switch {
		case b.AddressSpace == "uniform":
			b.Kind = ResourceUniformBuffer
		case strings.HasPrefix(b.AddressSpace, "storage"):
			if strings.Contains(b.AddressSpace, "read_write") {
				b.Kind = ResourceStorageBuffer
			} else {
				b.Kind = ResourceReadOnlyStorageBuffer
			}
		}
		return
	}

	base, params := splitTypeParams(b.Type)
	switch {
	case base == "sampler":
		b.Kind = ResourceSampler
	case base == "sampler_comparison":
		b.Kind = ResourceComparisonSampler
	case strings.HasPrefix(base, "texture_storage_"):
		b.Kind = ResourceStorageTexture
		b.ViewDimension = strings.TrimPrefix(base, "texture_storage_")
		format, access, _ := strings.Cut(params, ",")
		b.TexelFormat = strings.TrimSpace(format)
		b.Access = strings.TrimSpace(access)
	case strings.HasPrefix(base, "texture_depth_"):
		b.Kind = ResourceDepthTexture
		b.SampleType = "depth"
		dim := strings.TrimPrefix(base, "texture_depth_")
		if rest, ok := strings.CutPrefix(dim, "multisampled_"); ok {
			b.Multisampled = true
			dim = rest
		}
		b.ViewDimension = dim
	case strings.HasPrefix(base, "texture_"):
		b.Kind = ResourceTexture
		b.SampleType = params
		dim := strings.TrimPrefix(base, "texture_")
		if rest, ok := strings.CutPrefix(dim, "multisampled_"); ok {
			b.Multisampled = true
			dim = rest
		}
		b.ViewDimension = dim
	}
}

// splitTypeParams splits a WGSL parameterized type into its base name and parameter string.
// For "texture_2d<f32>" returns ("texture_2d", "f32").
// For "texture_depth_2d" (no params) returns ("texture_depth_2d", "").
func splitTypeParams(typeName string) (base string, params string) {
	before, after, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	return before, strings.TrimSpace(strings.TrimSuffix(after, ">"))
}

// stripComments removes both single-line (//) and block (/* */) comments from WGSL source.
// Block comments may be nested per the WGSL specification.
func stripComments(source string) string {
	return stripLineComments(stripBlockComments(source))
}

// stripLineComments removes single-line // comments from WGSL source
func stripLineComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	for line := range strings.SplitSeq(source, "\n") {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// stripBlockComments removes block comments (/* ... */) from WGSL source,
// handling nested block comments per the WGSL specification
func stripBlockComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	i := 0
	for i < len(source) {
		if i+1 < len(source) {
			if source[i] == '/' && source[i+1] == '*' {
				depth++
				i += 2
				continue
			}
			if source[i] == '*' && source[i+1] == '/' {
				if depth > 0 {
					depth--
				}
				i += 2
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
		i++
	}
	return sb.String()
}

// splitAtTopLevelCommas splits a string at commas that are not nested inside angle brackets.
// This correctly handles WGSL types like array<Sphere, 8> where the comma is part of
// the type syntax rather than a field separator.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
