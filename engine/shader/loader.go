package shader

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu/wgsl"
)

// loadedProgram is the pre-processed source set of one program, ready to compile.
type loadedProgram struct {
	id ProgramID

	// sources maps each stage of the program to its expanded source.
	sources map[gpu.StageKind]string

	// fallbacks lists the stages whose source was missing and replaced by the built-in fallback.
	fallbacks []gpu.StageKind

	err error
}

// reflectStage maps a device stage kind to the WGSL entry point stage.
func reflectStage(kind gpu.StageKind) wgsl.Stage {
	switch kind {
	case gpu.StageVertex:
		return wgsl.StageVertex
	case gpu.StageFragment:
		return wgsl.StageFragment
	default:
		return wgsl.StageCompute
	}
}

// loadSources reads, pre-processes and checks the sources of every program on a set of workers
// started for this load. GPU compilation is left to the caller, which owns the device.
//
// Returns:
//   - [programCount]loadedProgram: the load result of each program, indexed by ProgramID
func (m *manager) loadSources() [programCount]loadedProgram {
	var results [programCount]loadedProgram

	// Closing tasks ends every worker once the queue drains, so no goroutine outlives the load.
	tasks := make(chan worker.Task, programCount)
	var wg sync.WaitGroup
	for _, id := range ProgramIDs() {
		wg.Add(1)
		tasks <- worker.Task{
			ID: int(id),
			Do: func() (any, error) {
				defer wg.Done()
				results[id] = m.loadProgram(id)
				return nil, results[id].err
			},
		}
	}
	close(tasks)

	for i := range m.workers {
		worker.NewWorker(i, tasks, make(chan int, 1), 0, nil).Start()
	}
	wg.Wait()
	return results
}

// loadProgram loads every stage of one program.
func (m *manager) loadProgram(id ProgramID) loadedProgram {
	lp := loadedProgram{id: id, sources: make(map[gpu.StageKind]string, 2)}
	for _, kind := range id.Stages() {
		path := id.SourcePath(kind)
		data, err := fs.ReadFile(m.source, path)
		if errors.Is(err, fs.ErrNotExist) {
			path = fallbackPath(kind)
			data, err = fs.ReadFile(m.fallback, path)
			lp.fallbacks = append(lp.fallbacks, kind)
		}
		if err != nil {
			lp.err = fmt.Errorf("failed to read %s: %w", path, err)
			return lp
		}

		src, err := m.pp.Process(string(data))
		if err != nil {
			lp.err = fmt.Errorf("failed to pre-process %s: %w", path, err)
			return lp
		}
		if !wgsl.Reflect(src).HasStage(reflectStage(kind)) {
			lp.err = fmt.Errorf("%s has no @%s entry point", path, reflectStage(kind))
			return lp
		}
		lp.sources[kind] = src
	}
	return lp
}
