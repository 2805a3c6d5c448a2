package shader

import (
	"errors"
	"io/fs"
	"log/slog"
	"runtime"

	"github.com/Carmen-Shannon/oxy-rtx/common"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
)

// DefaultDefines are the pre-processor defines used when none are configured.
var DefaultDefines = map[string]string{
	"color_format": "rgba16float",
}

// manager is the implementation of the Manager interface.
type manager struct {
	device  gpu.Device
	logger  *slog.Logger
	workers int

	// override is an optional source layered over the embedded bundle.
	override       fs.FS
	bundledSources bool
	defines        map[string]string

	// source resolves program sources, includes resolve against the override and the bundle.
	source   fs.FS
	fallback fs.FS
	pp       PreProcessor

	programs    [programCount]Program
	initialized bool
}

// ErrNoPrograms is returned by Initialize when no program could be built.
var ErrNoPrograms = errors.New("no shader program could be built")

// Manager owns the fixed registry of shader programs addressed by ProgramID. Programs are
// loaded on Initialize; a program that fails to build leaves its slot empty and every caller
// treats an empty slot as "skip this pass".
type Manager interface {
	// Initialize loads and builds every program. Sources missing from every source layer are
	// replaced by the built-in fallback of their stage kind. Build failures are isolated per
	// program and logged. Calling Initialize on an initialized manager is a no-op.
	//
	// Returns:
	//   - error: ErrNoPrograms if not a single program could be built
	Initialize() error

	// Program returns the program registered for id.
	//
	// Parameters:
	//   - id: the program identity
	//
	// Returns:
	//   - Program: the linked program
	//   - bool: false if the program is absent
	Program(id ProgramID) (Program, bool)

	// UseProgram binds the program registered for id and leaves it bound; the caller releases it
	// with Program.Unbind. An absent program is logged and skipped.
	//
	// Returns:
	//   - bool: true if a program was bound
	UseProgram(id ProgramID) bool

	// DispatchCompute binds the program registered for id, dispatches it, issues an image
	// access barrier and unbinds it again. An absent program is logged and skipped.
	DispatchCompute(id ProgramID, x, y, z uint32)

	// Reload deletes every program and initializes again.
	//
	// Returns:
	//   - error: the result of the new Initialize
	Reload() error

	// Cleanup deletes every program and clears the registry. It is a no-op when not initialized.
	Cleanup()

	// Count returns the number of registered programs.
	Count() int

	// Has reports whether a program is registered for id.
	Has(id ProgramID) bool

	// IsInitialized reports whether Initialize has completed since the last Cleanup.
	IsInitialized() bool
}

var _ Manager = &manager{}

// NewManager creates a Manager for device. No programs are built until Initialize.
//
// Parameters:
//   - device: the device programs are compiled on
//   - options: variadic list of ManagerBuilderOption functions to configure the manager
//
// Returns:
//   - Manager: the uninitialized manager
func NewManager(device gpu.Device, options ...ManagerBuilderOption) Manager {
	m := &manager{
		device:         device,
		workers:        min(runtime.NumCPU(), int(programCount)),
		bundledSources: true,
		defines:        make(map[string]string, len(DefaultDefines)),
	}
	for k, v := range DefaultDefines {
		m.defines[k] = v
	}
	for _, option := range options {
		option(m)
	}
	m.logger = common.LoggerOrNop(m.logger)

	m.fallback = DefaultSource()
	m.source = layeredFS{m.override, m.fallback}
	m.pp = NewPreProcessor(m.source, m.defines)
	if !m.bundledSources {
		m.source = layeredFS{m.override}
	}
	return m
}

func (m *manager) Initialize() error {
	if m.initialized {
		return nil
	}

	m.logger.Info("initializing shader manager")
	for _, lp := range m.loadSources() {
		name := lp.id.String()
		if lp.err != nil {
			m.logger.Error("failed to load shader program", "program", name, "err", lp.err)
			continue
		}
		for _, kind := range lp.fallbacks {
			m.logger.Warn("shader source missing, using fallback", "program", name, "stage", kind.String(), "path", lp.id.SourcePath(kind))
		}

		p, err := buildProgram(m.device, name, lp.sources, lp.id.Stages(), WithProgramLogger(m.logger))
		if err != nil {
			m.logger.Error("failed to build shader program", "program", name, "err", err)
			continue
		}
		m.programs[lp.id] = p
	}

	count := m.Count()
	if count == 0 {
		return ErrNoPrograms
	}
	m.initialized = true
	m.logger.Info("shader manager initialized", "programs", count)
	return nil
}

func (m *manager) Program(id ProgramID) (Program, bool) {
	if !id.Valid() || m.programs[id] == nil {
		return nil, false
	}
	return m.programs[id], true
}

func (m *manager) UseProgram(id ProgramID) bool {
	p, ok := m.Program(id)
	if !ok {
		m.logger.Warn("shader program not found", "program", id.String())
		return false
	}
	p.Bind()
	return true
}

func (m *manager) DispatchCompute(id ProgramID, x, y, z uint32) {
	p, ok := m.Program(id)
	if !ok {
		m.logger.Warn("shader program not found", "program", id.String())
		return
	}
	p.Bind()
	defer p.Unbind()
	p.DispatchCompute(x, y, z)
	p.MemoryBarrier(gpu.BarrierImageAccess)
}

func (m *manager) Reload() error {
	m.logger.Info("reloading shaders")
	m.Cleanup()
	return m.Initialize()
}

func (m *manager) Cleanup() {
	if !m.initialized {
		return
	}
	m.deleteAll()
	m.initialized = false
	m.logger.Info("shader manager cleaned up")
}

// deleteAll deletes every registered program.
func (m *manager) deleteAll() {
	for i, p := range m.programs {
		if p != nil {
			p.Delete()
			m.programs[i] = nil
		}
	}
}

func (m *manager) Count() int {
	n := 0
	for _, p := range m.programs {
		if p != nil {
			n++
		}
	}
	return n
}

func (m *manager) Has(id ProgramID) bool {
	_, ok := m.Program(id)
	return ok
}

func (m *manager) IsInitialized() bool {
	return m.initialized
}
