package shader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
)

// ProgramID identifies one of the fixed set of programs the Manager loads.
type ProgramID int

const (
	// RayTracing is the path tracing compute program writing the G-buffer.
	RayTracing ProgramID = iota

	// GBuffer is the graphics program that fills the G-buffer attachments.
	GBuffer

	// Lighting is the deferred lighting graphics program.
	Lighting

	// TemporalAccumulation blends the current frame with the history frame.
	TemporalAccumulation

	// Denoising filters the ray traced color guided by the G-buffer.
	Denoising

	// ToneMapping maps the HDR color to display range.
	ToneMapping

	// Upscaling reconstructs full resolution color from a scaled render.
	Upscaling

	programCount
)

// ProgramKind is the stage combination of a program.
type ProgramKind int

const (
	// KindGraphics programs link a vertex and a fragment stage.
	KindGraphics ProgramKind = iota

	// KindCompute programs link a single compute stage.
	KindCompute
)

var programNames = [programCount]string{
	RayTracing:           "ray_tracing",
	GBuffer:              "g_buffer",
	Lighting:             "lighting",
	TemporalAccumulation: "temporal_accumulation",
	Denoising:            "denoising",
	ToneMapping:          "tone_mapping",
	Upscaling:            "upscaling",
}

var programKinds = [programCount]ProgramKind{
	RayTracing:           KindCompute,
	GBuffer:              KindGraphics,
	Lighting:             KindGraphics,
	TemporalAccumulation: KindCompute,
	Denoising:            KindCompute,
	ToneMapping:          KindGraphics,
	Upscaling:            KindCompute,
}

// stageExtensions maps a stage kind to the file suffix of its source.
var stageExtensions = map[gpu.StageKind]string{
	gpu.StageVertex:   ".vert.wgsl",
	gpu.StageFragment: ".frag.wgsl",
	gpu.StageCompute:  ".comp.wgsl",
}

// ProgramIDs returns every program identity in load order.
func ProgramIDs() []ProgramID {
	ids := make([]ProgramID, 0, programCount)
	for id := ProgramID(0); id < programCount; id++ {
		ids = append(ids, id)
	}
	return ids
}

// Valid reports whether id names a known program.
func (id ProgramID) Valid() bool {
	return id >= 0 && id < programCount
}

// String returns the logical program name, which is also the base name of its source files.
func (id ProgramID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("ProgramID(%d)", int(id))
	}
	return programNames[id]
}

// Kind returns the stage combination of the program.
func (id ProgramID) Kind() ProgramKind {
	if !id.Valid() {
		return KindGraphics
	}
	return programKinds[id]
}

// Stages returns the stage kinds the program is built from, in attach order.
func (id ProgramID) Stages() []gpu.StageKind {
	if id.Kind() == KindCompute {
		return []gpu.StageKind{gpu.StageCompute}
	}
	return []gpu.StageKind{gpu.StageVertex, gpu.StageFragment}
}

// SourcePath returns the path of the program's source for one stage, relative to the shader root.
func (id ProgramID) SourcePath(kind gpu.StageKind) string {
	return id.String() + stageExtensions[kind]
}

// fallbackPath returns the path of the built-in fallback source for a stage kind.
func fallbackPath(kind gpu.StageKind) string {
	return "fallback/fallback" + stageExtensions[kind]
}
