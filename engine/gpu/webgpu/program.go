package webgpu

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu/wgsl"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
)

// shaderModule is a reference counted wgpu shader module. Stages and the programs linked from
// them share one module so a stage can be released as soon as linking succeeded.
type shaderModule struct {
	module *wgpu.ShaderModule
	refs   int
}

func (m *shaderModule) retain() *shaderModule {
	m.refs++
	return m
}

func (m *shaderModule) release() {
	m.refs--
	if m.refs == 0 && m.module != nil {
		m.module.Release()
		m.module = nil
	}
}

// stageObject is a compiled stage and its reflected interface.
type stageObject struct {
	kind    gpu.StageKind
	module  *shaderModule
	reflect wgsl.Module
}

// programObject is a linked program: its layout, pipeline objects and owned uniform buffers.
type programObject struct {
	label          string
	layout         *gpu.ProgramLayout
	modules        map[gpu.StageKind]*shaderModule
	groupLayouts   []*wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
	compute        *wgpu.ComputePipeline
	render         map[string]*wgpu.RenderPipeline
	uniformBuffers map[int]*wgpu.Buffer
}

func (p *programObject) release() {
	for _, rp := range p.render {
		rp.Release()
	}
	if p.compute != nil {
		p.compute.Release()
	}
	if p.pipelineLayout != nil {
		p.pipelineLayout.Release()
	}
	for _, gl := range p.groupLayouts {
		gl.Release()
	}
	for _, b := range p.uniformBuffers {
		b.Release()
	}
	for _, m := range p.modules {
		m.release()
	}
}

// validateSource runs the WGSL front end and IR validator over source and reports the first diagnostic.
func validateSource(source string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("shader validation panicked: %v", r)
		}
	}()

	ast, err := naga.Parse(source)
	if err != nil {
		return err
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return err
	}
	problems, err := naga.Validate(module)
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		return fmt.Errorf("validation failed: %w", &problems[0])
	}
	return nil
}

func (d *Device) CompileStage(kind gpu.StageKind, source string) (gpu.Stage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if strings.TrimSpace(source) == "" {
		return 0, errors.New("empty shader source")
	}
	if d.validate {
		if err := validateSource(source); err != nil {
			return 0, err
		}
	}

	reflected := wgsl.Reflect(source)
	if !reflected.HasStage(stageFor(kind)) {
		return 0, fmt.Errorf("source has no @%s entry point", stageFor(kind))
	}

	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: kind.String() + " shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: source,
		},
	})
	if err != nil {
		return 0, err
	}

	s := gpu.Stage(d.handle())
	d.stages[s] = &stageObject{
		kind:    kind,
		module:  (&shaderModule{module: module}).retain(),
		reflect: reflected,
	}
	return s, nil
}

func stageFor(kind gpu.StageKind) wgsl.Stage {
	switch kind {
	case gpu.StageVertex:
		return wgsl.StageVertex
	case gpu.StageFragment:
		return wgsl.StageFragment
	default:
		return wgsl.StageCompute
	}
}

func (d *Device) ReleaseStage(s gpu.Stage) {
	d.mu.Lock()
	defer d.mu.Unlock()

	obj, ok := d.stages[s]
	if !ok {
		return
	}
	delete(d.stages, s)
	obj.module.release()
}

func (d *Device) LinkProgram(stages ...gpu.Stage) (gpu.Program, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	linkStages := make([]gpu.LinkStage, 0, len(stages))
	objects := make([]*stageObject, 0, len(stages))
	for _, s := range stages {
		obj, ok := d.stages[s]
		if !ok {
			return 0, fmt.Errorf("stage %d is not a live compiled stage", s)
		}
		linkStages = append(linkStages, gpu.LinkStage{Kind: obj.kind, Module: obj.reflect})
		objects = append(objects, obj)
	}

	layout, err := gpu.NewProgramLayout(linkStages...)
	if err != nil {
		return 0, err
	}

	kinds := make([]string, 0, len(objects))
	for _, obj := range objects {
		kinds = append(kinds, obj.kind.String())
	}
	p := &programObject{
		label:          strings.Join(kinds, "+"),
		layout:         layout,
		modules:        make(map[gpu.StageKind]*shaderModule, len(objects)),
		render:         make(map[string]*wgpu.RenderPipeline),
		uniformBuffers: make(map[int]*wgpu.Buffer),
	}
	for _, obj := range objects {
		p.modules[obj.kind] = obj.module.retain()
	}

	if err := d.buildProgram(p); err != nil {
		p.release()
		return 0, err
	}

	h := gpu.Program(d.handle())
	d.programs[h] = p
	return h, nil
}

// buildProgram creates the bind group layouts, pipeline layout, uniform buffers and, for compute
// programs, the compute pipeline. Render pipelines depend on the target and are built at draw time.
func (d *Device) buildProgram(p *programObject) error {
	groups := make(map[uint32][]wgpu.BindGroupLayoutEntry)
	maxGroup := -1
	for _, b := range p.layout.Bindings {
		groups[b.Group] = append(groups[b.Group], layoutEntry(b))
		maxGroup = max(maxGroup, int(b.Group))
	}

	// Gaps in the group numbering still need a layout so group indices line up.
	p.groupLayouts = make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g := range p.groupLayouts {
		gl, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s group %d", p.label, g),
			Entries: groups[uint32(g)],
		})
		if err != nil {
			return fmt.Errorf("failed to create bind group layout for group %d: %w", g, err)
		}
		p.groupLayouts[g] = gl
	}

	pl, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.label,
		BindGroupLayouts: p.groupLayouts,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline layout: %w", err)
	}
	p.pipelineLayout = pl

	for i, b := range p.layout.Bindings {
		if b.Kind != wgsl.ResourceUniformBuffer {
			continue
		}
		buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: fmt.Sprintf("%s uniform %s", p.label, b.Name),
			Size:  uint64(len(b.Data)),
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("failed to create uniform buffer %s: %w", b.Name, err)
		}
		p.uniformBuffers[i] = buf
	}

	if !p.layout.Compute {
		return nil
	}
	cp, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.label + " Compute Pipeline",
		Layout: p.pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     p.modules[gpu.StageCompute].module,
			EntryPoint: p.layout.EntryPoints[gpu.StageCompute],
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create compute pipeline: %w", err)
	}
	p.compute = cp
	return nil
}

// layoutEntry converts a reflected binding into a bind group layout entry.
func layoutEntry(b *gpu.LayoutBinding) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding: b.Binding.Binding,
	}
	for kind, flag := range stageVisibility {
		if b.Stages.Has(kind) {
			entry.Visibility |= flag
		}
	}

	switch b.Kind {
	case wgsl.ResourceUniformBuffer:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case wgsl.ResourceStorageBuffer:
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
	case wgsl.ResourceReadOnlyStorageBuffer:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
	case wgsl.ResourceSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeNonFiltering
	case wgsl.ResourceComparisonSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
	case wgsl.ResourceTexture, wgsl.ResourceDepthTexture:
		entry.Texture.SampleType = wgslSampleTypeMap[b.SampleType]
		if entry.Texture.SampleType == wgpu.TextureSampleTypeUndefined {
			entry.Texture.SampleType = wgpu.TextureSampleTypeUnfilterableFloat
		}
		entry.Texture.ViewDimension = viewDimension(b.ViewDimension)
		entry.Texture.Multisampled = b.Multisampled
	case wgsl.ResourceStorageTexture:
		entry.StorageTexture.Access = wgslStorageAccessMap[b.Access]
		entry.StorageTexture.Format = wgslTexelFormatMap[b.TexelFormat]
		entry.StorageTexture.ViewDimension = viewDimension(b.ViewDimension)
	}
	return entry
}

func viewDimension(dim string) wgpu.TextureViewDimension {
	if v, ok := wgslViewDimensionMap[dim]; ok {
		return v
	}
	return wgpu.TextureViewDimension2D
}

func (d *Device) ReleaseProgram(h gpu.Program) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.programs[h]
	if !ok {
		return
	}
	// Pending commands may still reference the pipeline objects.
	if d.usedSinceSubmit[h] {
		d.submit()
	}
	delete(d.programs, h)
	if d.activeProgram == h {
		d.activeProgram = 0
	}
	p.release()
}

func (d *Device) UseProgram(p gpu.Program) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.activeProgram = p
}

func (d *Device) LookupUniform(p gpu.Program, name string) (gpu.UniformInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	obj, ok := d.programs[p]
	if !ok {
		return gpu.UniformInfo{}, false
	}
	return obj.layout.Lookup(name)
}

func (d *Device) ActiveUniforms(p gpu.Program) []gpu.UniformInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	obj, ok := d.programs[p]
	if !ok {
		return nil
	}
	return obj.layout.Uniforms()
}

func (d *Device) SetUniform(p gpu.Program, location int, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	obj, ok := d.programs[p]
	if !ok {
		d.fail(fmt.Errorf("set uniform on unknown program %d", p))
		return
	}
	// Queue writes land before the whole pending submission, so a block already consumed by a
	// recorded command must be submitted before it changes.
	if d.usedSinceSubmit[p] {
		d.submit()
	}
	if !obj.layout.Set(location, data) {
		d.fail(fmt.Errorf("invalid uniform location %d for program %d", location, p))
	}
}

// uploadUniforms writes every dirty uniform block of p to its buffer.
func (d *Device) uploadUniforms(p *programObject) {
	for i, buf := range p.uniformBuffers {
		b := p.layout.Bindings[i]
		if !b.Dirty {
			continue
		}
		if err := d.queue.WriteBuffer(buf, 0, b.Data); err != nil {
			d.fail(fmt.Errorf("failed to upload uniform block %s: %w", b.Name, err))
			continue
		}
		b.Dirty = false
	}
}

// renderPipeline returns the render pipeline of p for the given attachment formats, creating it on first use.
func (d *Device) renderPipeline(p *programObject, colors []wgpu.TextureFormat, depth wgpu.TextureFormat) (*wgpu.RenderPipeline, error) {
	key := fmt.Sprint(colors, depth)
	if rp, ok := p.render[key]; ok {
		return rp, nil
	}

	targets := make([]wgpu.ColorTargetState, len(colors))
	for i, format := range colors {
		// Attachments the fragment stage does not write keep a zero write mask.
		targets[i] = wgpu.ColorTargetState{Format: format}
		if slices.Contains(p.layout.FragmentOutputs, i) {
			targets[i].WriteMask = wgpu.ColorWriteMaskAll
		}
	}

	desc := &wgpu.RenderPipelineDescriptor{
		Label:  p.label + " Render Pipeline",
		Layout: p.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     p.modules[gpu.StageVertex].module,
			EntryPoint: p.layout.EntryPoints[gpu.StageVertex],
		},
		Fragment: &wgpu.FragmentState{
			Module:     p.modules[gpu.StageFragment].module,
			EntryPoint: p.layout.EntryPoints[gpu.StageFragment],
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if depth != wgpu.TextureFormatUndefined {
		desc.DepthStencil = &wgpu.DepthStencilState{
			Format:            depth,
			DepthWriteEnabled: false,
			DepthCompare:      wgpu.CompareFunctionAlways,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	rp, err := d.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create render pipeline: %w", err)
	}
	p.render[key] = rp
	return rp, nil
}
