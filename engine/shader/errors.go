package shader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
)

// CompileError reports a shader stage the GPU compiler rejected.
type CompileError struct {
	// Program is the name of the program the stage was attached to.
	Program string

	// Stage is the kind of the rejected stage.
	Stage gpu.StageKind

	// Log is the compiler diagnostic.
	Log string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("failed to compile %s stage of program %s: %s", e.Stage, e.Program, e.Log)
}

// LinkError reports a program whose stages could not be linked.
type LinkError struct {
	// Program is the name of the program.
	Program string

	// Log is the linker diagnostic.
	Log string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("failed to link program %s: %s", e.Program, e.Log)
}
