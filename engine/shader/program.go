package shader

import (
	"log/slog"
	"slices"

	"github.com/Carmen-Shannon/oxy-rtx/common"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
)

// uniformEntry is a cached uniform lookup. ok is false for names the program does not declare.
type uniformEntry struct {
	info gpu.UniformInfo
	ok   bool
}

// program is the implementation of the Program interface.
type program struct {
	device gpu.Device
	logger *slog.Logger
	name   string

	stages  []gpu.Stage
	kinds   []gpu.StageKind
	handle  gpu.Program
	linked  bool
	compute bool
	deleted bool

	uniforms map[string]uniformEntry
}

// Program owns one linked GPU program, graphics or compute. A Program is built in two phases:
// NewProgram returns an inert value, stages are attached with AttachStage and the program becomes
// usable once Link succeeds. An unlinked program is never bound.
type Program interface {
	// Name returns the program's logical name, used in diagnostics.
	Name() string

	// AttachStage compiles source for one stage and keeps it for linking.
	//
	// Parameters:
	//   - kind: the stage the source is compiled for
	//   - source: the shader source text
	//
	// Returns:
	//   - error: a *CompileError carrying the compiler log if the source was rejected
	AttachStage(kind gpu.StageKind, source string) error

	// Link links the attached stages. Vertex plus fragment, or compute alone, are the valid
	// combinations. The intermediate stages are released whether or not linking succeeds.
	//
	// Returns:
	//   - error: a *LinkError carrying the linker log if linking failed
	Link() error

	// Bind makes the program active. Binding an unlinked program is refused and logged.
	Bind()

	// Unbind clears the active program.
	Unbind()

	// SetUniform sets a uniform by name. The location is looked up once and cached. Unknown names
	// are logged at debug level and ignored, since optional uniforms are common.
	//
	// Parameters:
	//   - name: the uniform name
	//   - value: a float32, float64, int, int32, uint32, bool, mgl32 vector or matrix, or []float32
	SetUniform(name string, value any)

	// BindTexture binds tex to a texture unit and points the named sampled texture at that unit.
	//
	// Parameters:
	//   - name: the texture variable name
	//   - tex: the texture to sample
	//   - unit: the texture unit
	BindTexture(name string, tex gpu.Texture, unit int)

	// BindImage binds tex to an image unit and points the named storage image at that unit.
	//
	// Parameters:
	//   - name: the storage image variable name
	//   - tex: the texture to access
	//   - unit: the image unit
	//   - access: read, write or read-write access
	//   - format: the format the image is accessed as
	BindImage(name string, tex gpu.Texture, unit int, access gpu.ImageAccess, format gpu.TextureFormat)

	// BindStorageBuffer binds buf to a storage buffer binding point.
	BindStorageBuffer(buf gpu.Buffer, binding int)

	// BindUniformBuffer binds buf to a uniform buffer binding point.
	BindUniformBuffer(buf gpu.Buffer, binding int)

	// DispatchCompute dispatches the program over a grid of work-groups. It is a logged no-op for
	// graphics programs and unlinked programs.
	DispatchCompute(x, y, z uint32)

	// MemoryBarrier issues a memory barrier for the selected hazards.
	MemoryBarrier(b gpu.Barrier)

	// ActiveUniforms lists every active uniform of the linked program.
	//
	// Returns:
	//   - []gpu.UniformInfo: the uniforms ordered by location, nil if the program is not linked
	ActiveUniforms() []gpu.UniformInfo

	// LogActiveUniforms writes every active uniform to the debug log.
	LogActiveUniforms()

	// IsLinked reports whether Link succeeded and the program has not been deleted.
	IsLinked() bool

	// IsCompute reports whether the linked program is a compute program.
	IsCompute() bool

	// Handle returns the GPU program handle, 0 if the program is not linked.
	Handle() gpu.Program

	// Delete releases the GPU program and any attached stages. Calling it again is a no-op.
	Delete()
}

var _ Program = &program{}

// NewProgram creates an empty program. No GPU objects are created until stages are attached.
//
// Parameters:
//   - device: the device the program is compiled on
//   - name: the logical program name used in diagnostics
//   - options: variadic list of ProgramBuilderOption functions to configure the program
//
// Returns:
//   - Program: the inert program
func NewProgram(device gpu.Device, name string, options ...ProgramBuilderOption) Program {
	p := &program{
		device:   device,
		name:     name,
		uniforms: make(map[string]uniformEntry),
	}
	for _, option := range options {
		option(p)
	}
	p.logger = common.LoggerOrNop(p.logger)
	return p
}

func (p *program) Name() string {
	return p.name
}

func (p *program) AttachStage(kind gpu.StageKind, source string) error {
	if p.linked {
		return &CompileError{Program: p.name, Stage: kind, Log: "program is already linked"}
	}
	if p.deleted {
		return &CompileError{Program: p.name, Stage: kind, Log: "program was deleted"}
	}

	stage, err := p.device.CompileStage(kind, source)
	if err != nil {
		cerr := &CompileError{Program: p.name, Stage: kind, Log: err.Error()}
		p.logger.Error("shader compilation failed", "program", p.name, "stage", kind.String(), "err", err)
		return cerr
	}
	p.stages = append(p.stages, stage)
	p.kinds = append(p.kinds, kind)
	return nil
}

func (p *program) Link() error {
	if p.linked {
		return nil
	}
	if p.deleted {
		return &LinkError{Program: p.name, Log: "program was deleted"}
	}
	if len(p.stages) == 0 {
		return &LinkError{Program: p.name, Log: "no stages attached"}
	}

	handle, err := p.device.LinkProgram(p.stages...)
	compute := slices.Contains(p.kinds, gpu.StageCompute)
	p.releaseStages()
	if err != nil {
		p.logger.Error("shader program link failed", "program", p.name, "err", err)
		return &LinkError{Program: p.name, Log: err.Error()}
	}

	p.handle = handle
	p.linked = true
	p.compute = compute
	clear(p.uniforms)
	return nil
}

// releaseStages frees the intermediate compiled stages.
func (p *program) releaseStages() {
	for _, s := range p.stages {
		p.device.ReleaseStage(s)
	}
	p.stages = nil
	p.kinds = nil
}

func (p *program) Bind() {
	if !p.linked {
		p.logger.Warn("refusing to bind unlinked shader program", "program", p.name)
		return
	}
	p.device.UseProgram(p.handle)
}

func (p *program) Unbind() {
	p.device.UseProgram(0)
}

// lookup resolves and caches a uniform by name.
func (p *program) lookup(name string) (gpu.UniformInfo, bool) {
	if e, ok := p.uniforms[name]; ok {
		return e.info, e.ok
	}
	info, ok := p.device.LookupUniform(p.handle, name)
	p.uniforms[name] = uniformEntry{info: info, ok: ok}
	return info, ok
}

func (p *program) SetUniform(name string, value any) {
	if !p.linked {
		p.logger.Debug("uniform set on unlinked program", "program", p.name, "uniform", name)
		return
	}
	info, ok := p.lookup(name)
	if !ok {
		p.logger.Debug("uniform not found", "program", p.name, "uniform", name)
		return
	}

	typeName := info.Type
	if info.Resource {
		typeName = "i32"
	}
	data, err := gpu.EncodeUniform(typeName, value)
	if err != nil {
		p.logger.Warn("invalid uniform value", "program", p.name, "uniform", name, "err", err)
		return
	}
	p.device.SetUniform(p.handle, info.Location, data)
}

func (p *program) BindTexture(name string, tex gpu.Texture, unit int) {
	p.device.BindTexture(unit, tex)
	p.SetUniform(name, unit)
}

func (p *program) BindImage(name string, tex gpu.Texture, unit int, access gpu.ImageAccess, format gpu.TextureFormat) {
	p.device.BindImage(unit, tex, access, format)
	p.SetUniform(name, unit)
}

func (p *program) BindStorageBuffer(buf gpu.Buffer, binding int) {
	p.device.BindBuffer(gpu.BufferStorage, binding, buf)
}

func (p *program) BindUniformBuffer(buf gpu.Buffer, binding int) {
	p.device.BindBuffer(gpu.BufferUniform, binding, buf)
}

func (p *program) DispatchCompute(x, y, z uint32) {
	if !p.linked || !p.compute {
		p.logger.Warn("compute dispatch on a program that is not a linked compute program", "program", p.name)
		return
	}
	p.device.DispatchCompute(x, y, z)
}

func (p *program) MemoryBarrier(b gpu.Barrier) {
	p.device.MemoryBarrier(b)
}

func (p *program) ActiveUniforms() []gpu.UniformInfo {
	if !p.linked {
		return nil
	}
	return p.device.ActiveUniforms(p.handle)
}

func (p *program) LogActiveUniforms() {
	uniforms := p.ActiveUniforms()
	p.logger.Debug("active uniforms", "program", p.name, "count", len(uniforms))
	for _, u := range uniforms {
		p.logger.Debug("uniform", "program", p.name, "name", u.Name, "type", u.Type, "location", u.Location)
	}
}

func (p *program) IsLinked() bool {
	return p.linked
}

func (p *program) IsCompute() bool {
	return p.linked && p.compute
}

func (p *program) Handle() gpu.Program {
	return p.handle
}

func (p *program) Delete() {
	if p.deleted {
		return
	}
	p.releaseStages()
	if p.handle != 0 {
		p.device.ReleaseProgram(p.handle)
	}
	p.handle = 0
	p.linked = false
	p.compute = false
	p.deleted = true
	clear(p.uniforms)
}

// buildProgram compiles and links a program from per-stage sources. The program is deleted when
// any step fails.
func buildProgram(device gpu.Device, name string, sources map[gpu.StageKind]string, order []gpu.StageKind, options ...ProgramBuilderOption) (Program, error) {
	p := NewProgram(device, name, options...)
	for _, kind := range order {
		if err := p.AttachStage(kind, sources[kind]); err != nil {
			p.Delete()
			return nil, err
		}
	}
	if err := p.Link(); err != nil {
		p.Delete()
		return nil, err
	}
	return p, nil
}
