package gpu

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu/wgsl"
)

// StageMask is a set of stage kinds that reference a binding.
type StageMask uint8

// Has reports whether k is in the mask.
func (m StageMask) Has(k StageKind) bool {
	return m&(1<<k) != 0
}

// LinkStage pairs a stage kind with the reflected module compiled for it.
type LinkStage struct {
	Kind   StageKind
	Module wgsl.Module
}

// LayoutBinding is one resource variable of a linked program together with its CPU side state.
type LayoutBinding struct {
	wgsl.Binding

	// Stages is the set of stages that declare the binding.
	Stages StageMask

	// Unit is the texture unit, image unit or buffer binding point the variable reads from.
	// Uniform buffers owned by the program do not use it.
	Unit int

	// Data is the staged contents of a program owned uniform buffer, nil for other kinds.
	Data []byte

	// Dirty is set when Data changed since the last upload.
	Dirty bool
}

// uniformSlot maps a location to the binding it writes and, for block members, the byte range.
type uniformSlot struct {
	binding int
	offset  uint64
	size    uint64
}

// ProgramLayout is the merged reflection of a linked program's stages plus the state a GL style
// program carries: uniform values staged into per-binding blocks and the unit every resource
// variable is associated with. Locations index a flat table of block members and resource variables.
type ProgramLayout struct {
	// Compute is set for compute programs.
	Compute bool

	// WorkgroupSize is the compute work-group size, [1, 1, 1] for graphics programs.
	WorkgroupSize [3]uint32

	// EntryPoints maps each linked stage to its entry point name.
	EntryPoints map[StageKind]string

	// FragmentOutputs lists the color locations written by the fragment stage.
	FragmentOutputs []int

	// Bindings holds every resource variable sorted by group then binding.
	Bindings []*LayoutBinding

	uniforms []UniformInfo
	slots    []uniformSlot
	byName   map[string]int
}

// stageOf maps a device stage kind to the WGSL entry point stage.
func stageOf(k StageKind) wgsl.Stage {
	switch k {
	case StageVertex:
		return wgsl.StageVertex
	case StageFragment:
		return wgsl.StageFragment
	default:
		return wgsl.StageCompute
	}
}

// NewProgramLayout validates a stage combination and merges the stages' reflected interfaces.
//
// Parameters:
//   - stages: the stages to link, each with its reflected module
//
// Returns:
//   - *ProgramLayout: the merged layout with every uniform at its default value
//   - error: a link diagnostic for invalid stage combinations, missing entry points or
//     conflicting declarations of the same binding
func NewProgramLayout(stages ...LinkStage) (*ProgramLayout, error) {
	seen := make(map[StageKind]wgsl.Module, len(stages))
	for _, s := range stages {
		if _, dup := seen[s.Kind]; dup {
			return nil, fmt.Errorf("%s stage attached more than once", s.Kind)
		}
		seen[s.Kind] = s.Module
	}

	_, hasVertex := seen[StageVertex]
	_, hasFragment := seen[StageFragment]
	_, hasCompute := seen[StageCompute]
	switch {
	case hasCompute && len(seen) == 1:
	case hasVertex && hasFragment && len(seen) == 2:
	default:
		return nil, fmt.Errorf("invalid stage combination: need vertex and fragment, or compute alone")
	}

	l := &ProgramLayout{
		Compute:       hasCompute,
		WorkgroupSize: [3]uint32{1, 1, 1},
		EntryPoints:   make(map[StageKind]string, len(seen)),
		byName:        make(map[string]int),
	}

	merged := make(map[[2]uint32]*LayoutBinding)
	for _, s := range stages {
		entry, ok := s.Module.EntryPoint(stageOf(s.Kind))
		if !ok {
			return nil, fmt.Errorf("%s stage has no @%s entry point", s.Kind, stageOf(s.Kind))
		}
		l.EntryPoints[s.Kind] = entry
		if s.Kind == StageCompute {
			l.WorkgroupSize = s.Module.WorkgroupSize
		}
		if s.Kind == StageFragment {
			l.FragmentOutputs = s.Module.FragmentOutputs
		}

		for _, b := range s.Module.Bindings {
			key := [2]uint32{b.Group, b.Binding}
			if existing, ok := merged[key]; ok {
				if existing.Name != b.Name || existing.Type != b.Type {
					return nil, fmt.Errorf("conflicting declarations at @group(%d) @binding(%d): %s: %s vs %s: %s",
						b.Group, b.Binding, existing.Name, existing.Type, b.Name, b.Type)
				}
				existing.Stages |= 1 << s.Kind
				continue
			}
			merged[key] = &LayoutBinding{Binding: b, Stages: 1 << s.Kind}
		}
	}

	for _, b := range merged {
		l.Bindings = append(l.Bindings, b)
	}
	sort.Slice(l.Bindings, func(i, j int) bool {
		if l.Bindings[i].Group != l.Bindings[j].Group {
			return l.Bindings[i].Group < l.Bindings[j].Group
		}
		return l.Bindings[i].Binding.Binding < l.Bindings[j].Binding.Binding
	})

	for i, b := range l.Bindings {
		if b.Kind == wgsl.ResourceUniformBuffer {
			b.Data = make([]byte, blockSize(b.Size))
			b.Dirty = true
			for _, f := range b.Fields {
				l.addSlot(f.Name, f.Type, uniformSlot{binding: i, offset: f.Offset, size: f.Size}, false)
			}
			continue
		}
		if b.Kind.IsBuffer() {
			b.Unit = int(b.Binding.Binding)
		}
		l.addSlot(b.Name, b.Type, uniformSlot{binding: i, size: 4}, true)
	}

	return l, nil
}

// blockSize rounds a uniform block up to 16 bytes, the minimum uniform binding granularity.
func blockSize(size uint64) uint64 {
	if size == 0 {
		return 16
	}
	return (size + 15) &^ 15
}

// addSlot registers a named location. The first declaration of a name wins.
func (l *ProgramLayout) addSlot(name, typeName string, slot uniformSlot, resource bool) {
	if _, exists := l.byName[name]; exists {
		return
	}
	loc := len(l.slots)
	l.slots = append(l.slots, slot)
	l.byName[name] = loc
	l.uniforms = append(l.uniforms, UniformInfo{
		Name:     name,
		Type:     typeName,
		Location: loc,
		Size:     slot.size,
		Resource: resource,
	})
}

// Lookup resolves a uniform by name.
//
// Parameters:
//   - name: the uniform or resource variable name
//
// Returns:
//   - UniformInfo: the uniform's description
//   - bool: false if no such uniform exists
func (l *ProgramLayout) Lookup(name string) (UniformInfo, bool) {
	loc, ok := l.byName[name]
	if !ok {
		return UniformInfo{}, false
	}
	return l.uniforms[loc], true
}

// Uniforms returns every active uniform ordered by location.
func (l *ProgramLayout) Uniforms() []UniformInfo {
	out := make([]UniformInfo, len(l.uniforms))
	copy(out, l.uniforms)
	return out
}

// Set stores data for the uniform at location. Resource uniforms decode a little-endian int32 unit,
// block members copy at most their own size into the staged block.
//
// Parameters:
//   - location: the uniform location
//   - data: the encoded value
//
// Returns:
//   - bool: false if the location is out of range or the data is too short for a resource uniform
func (l *ProgramLayout) Set(location int, data []byte) bool {
	if location < 0 || location >= len(l.slots) {
		return false
	}
	slot := l.slots[location]
	b := l.Bindings[slot.binding]

	if l.uniforms[location].Resource {
		if len(data) < 4 {
			return false
		}
		b.Unit = int(int32(binary.LittleEndian.Uint32(data)))
		return true
	}

	n := min(uint64(len(data)), slot.size)
	copy(b.Data[slot.offset:slot.offset+n], data[:n])
	b.Dirty = true
	return true
}

// BindingByName returns the resource variable with the given name.
func (l *ProgramLayout) BindingByName(name string) (*LayoutBinding, bool) {
	for _, b := range l.Bindings {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}
