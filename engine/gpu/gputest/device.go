// Package gputest provides an in-memory gpu.Device that records every call, for tests that
// exercise the renderer without a GPU.
package gputest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu/wgsl"
)

// Dispatch records one compute dispatch.
type Dispatch struct {
	Program gpu.Program
	X, Y, Z uint32
}

// Draw records one fullscreen draw.
type Draw struct {
	Program gpu.Program
	Target  gpu.RenderTarget
}

// ImageBinding records the state of one image unit.
type ImageBinding struct {
	Texture gpu.Texture
	Access  gpu.ImageAccess
	Format  gpu.TextureFormat
}

type stageRecord struct {
	kind   gpu.StageKind
	module wgsl.Module
}

type textureRecord struct {
	desc   gpu.TextureDescriptor
	writes int
}

type targetRecord struct {
	colors []gpu.Texture
	depth  gpu.Texture
}

// Device is a recording gpu.Device. Exported fields may be set before use to inject failures,
// and read afterwards to assert on the recorded calls.
type Device struct {
	mu sync.Mutex

	// Adapter is returned by Info.
	Adapter gpu.AdapterInfo

	// FailCompile, when set, is consulted by CompileStage; a non-nil result fails the compile.
	FailCompile func(kind gpu.StageKind, source string) error

	// FailLink, when set, is consulted by LinkProgram; a non-nil result fails the link.
	FailLink func(kinds []gpu.StageKind) error

	// FailRenderTarget, when set, fails every CreateRenderTarget call with this error.
	FailRenderTarget error

	// FlushErr is returned by the next Flush call and then cleared.
	FlushErr error

	// TextureUnits and ImageUnits hold the current unit bindings.
	TextureUnits map[int]gpu.Texture
	ImageUnits   map[int]ImageBinding

	// BufferBindings holds the current buffer binding points per kind.
	BufferBindings map[gpu.BufferKind]map[int]gpu.Buffer

	// ActiveProgram and ActiveTarget are the currently bound program and render target.
	ActiveProgram gpu.Program
	ActiveTarget  gpu.RenderTarget

	// TargetBinds counts BindRenderTarget calls per target, including DefaultTarget.
	TargetBinds map[gpu.RenderTarget]int

	// ProgramUses records every UseProgram argument in order.
	ProgramUses []gpu.Program

	Dispatches []Dispatch
	Draws      []Draw
	Barriers   []gpu.Barrier
	Viewports  [][4]int
	Clears     int
	Flushes    int

	// Released counts release calls that freed a live object, per object kind.
	Released map[string]int

	// DoubleReleases counts release calls on handles that were already freed.
	DoubleReleases int

	// DeviceReleased is set once Release has been called.
	DeviceReleased bool

	next     uint32
	stages   map[gpu.Stage]stageRecord
	programs map[gpu.Program]*gpu.ProgramLayout
	textures map[gpu.Texture]*textureRecord
	buffers  map[gpu.Buffer][]byte
	targets  map[gpu.RenderTarget]targetRecord
	freed    map[uint32]bool
}

var _ gpu.Device = &Device{}

// NewDevice creates an empty recording device with a generic adapter identity.
//
// Returns:
//   - *Device: the recording device
func NewDevice() *Device {
	return &Device{
		Adapter: gpu.AdapterInfo{
			Vendor:   "Test Vendor",
			Renderer: "Test Renderer",
			Version:  "1.0",
			Backend:  "null",
		},
		TextureUnits:   make(map[int]gpu.Texture),
		ImageUnits:     make(map[int]ImageBinding),
		BufferBindings: make(map[gpu.BufferKind]map[int]gpu.Buffer),
		TargetBinds:    make(map[gpu.RenderTarget]int),
		Released:       make(map[string]int),
		stages:         make(map[gpu.Stage]stageRecord),
		programs:       make(map[gpu.Program]*gpu.ProgramLayout),
		textures:       make(map[gpu.Texture]*textureRecord),
		buffers:        make(map[gpu.Buffer][]byte),
		targets:        make(map[gpu.RenderTarget]targetRecord),
		freed:          make(map[uint32]bool),
	}
}

func (d *Device) handle() uint32 {
	d.next++
	return d.next
}

func (d *Device) release(kind string, h uint32, live bool) {
	if h == 0 {
		return
	}
	if live {
		d.Released[kind]++
		d.freed[h] = true
		return
	}
	if d.freed[h] {
		d.DoubleReleases++
	}
}

func (d *Device) Info() gpu.AdapterInfo {
	return d.Adapter
}

func (d *Device) CompileStage(kind gpu.StageKind, source string) (gpu.Stage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.FailCompile != nil {
		if err := d.FailCompile(kind, source); err != nil {
			return 0, err
		}
	}
	s := gpu.Stage(d.handle())
	d.stages[s] = stageRecord{kind: kind, module: wgsl.Reflect(source)}
	return s, nil
}

func (d *Device) ReleaseStage(s gpu.Stage) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, live := d.stages[s]
	delete(d.stages, s)
	d.release("stage", uint32(s), live)
}

func (d *Device) LinkProgram(stages ...gpu.Stage) (gpu.Program, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	linkStages := make([]gpu.LinkStage, 0, len(stages))
	kinds := make([]gpu.StageKind, 0, len(stages))
	for _, s := range stages {
		rec, ok := d.stages[s]
		if !ok {
			return 0, fmt.Errorf("stage %d is not a live compiled stage", s)
		}
		linkStages = append(linkStages, gpu.LinkStage{Kind: rec.kind, Module: rec.module})
		kinds = append(kinds, rec.kind)
	}
	if d.FailLink != nil {
		if err := d.FailLink(kinds); err != nil {
			return 0, err
		}
	}

	layout, err := gpu.NewProgramLayout(linkStages...)
	if err != nil {
		return 0, err
	}
	p := gpu.Program(d.handle())
	d.programs[p] = layout
	return p, nil
}

func (d *Device) ReleaseProgram(p gpu.Program) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, live := d.programs[p]
	delete(d.programs, p)
	if d.ActiveProgram == p {
		d.ActiveProgram = 0
	}
	d.release("program", uint32(p), live)
}

func (d *Device) UseProgram(p gpu.Program) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ActiveProgram = p
	d.ProgramUses = append(d.ProgramUses, p)
}

func (d *Device) LookupUniform(p gpu.Program, name string) (gpu.UniformInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	layout, ok := d.programs[p]
	if !ok {
		return gpu.UniformInfo{}, false
	}
	return layout.Lookup(name)
}

func (d *Device) ActiveUniforms(p gpu.Program) []gpu.UniformInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	layout, ok := d.programs[p]
	if !ok {
		return nil
	}
	return layout.Uniforms()
}

func (d *Device) SetUniform(p gpu.Program, location int, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if layout, ok := d.programs[p]; ok {
		layout.Set(location, data)
	}
}

func (d *Device) CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if desc.Width <= 0 || desc.Height <= 0 {
		return 0, fmt.Errorf("invalid texture size %dx%d", desc.Width, desc.Height)
	}
	t := gpu.Texture(d.handle())
	d.textures[t] = &textureRecord{desc: desc}
	return t, nil
}

func (d *Device) ReleaseTexture(t gpu.Texture) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, live := d.textures[t]
	delete(d.textures, t)
	d.release("texture", uint32(t), live)
}

func (d *Device) BindTexture(unit int, t gpu.Texture) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.TextureUnits[unit] = t
}

func (d *Device) BindImage(unit int, t gpu.Texture, access gpu.ImageAccess, format gpu.TextureFormat) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ImageUnits[unit] = ImageBinding{Texture: t, Access: access, Format: format}
}

func (d *Device) CopyTexture(src, dst gpu.Texture) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.textures[src]
	if !ok {
		return fmt.Errorf("copy source %d is not a live texture", src)
	}
	t, ok := d.textures[dst]
	if !ok {
		return fmt.Errorf("copy destination %d is not a live texture", dst)
	}
	if s.desc.Width != t.desc.Width || s.desc.Height != t.desc.Height || s.desc.Format != t.desc.Format {
		return errors.New("copy between textures of different size or format")
	}
	t.writes++
	return nil
}

func (d *Device) CreateBuffer(kind gpu.BufferKind, size uint64, label string) (gpu.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if size == 0 {
		return 0, fmt.Errorf("buffer %q has zero size", label)
	}
	b := gpu.Buffer(d.handle())
	d.buffers[b] = make([]byte, size)
	return b, nil
}

func (d *Device) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if contents, ok := d.buffers[buf]; ok && offset+uint64(len(data)) <= uint64(len(contents)) {
		copy(contents[offset:], data)
	}
}

func (d *Device) ReleaseBuffer(buf gpu.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, live := d.buffers[buf]
	delete(d.buffers, buf)
	d.release("buffer", uint32(buf), live)
}

func (d *Device) BindBuffer(kind gpu.BufferKind, binding int, buf gpu.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.BufferBindings[kind] == nil {
		d.BufferBindings[kind] = make(map[int]gpu.Buffer)
	}
	d.BufferBindings[kind][binding] = buf
}

func (d *Device) CreateRenderTarget(colors []gpu.Texture, depth gpu.Texture) (gpu.RenderTarget, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.FailRenderTarget != nil {
		return 0, d.FailRenderTarget
	}
	for _, c := range colors {
		if _, ok := d.textures[c]; !ok {
			return 0, fmt.Errorf("color attachment %d is not a live texture", c)
		}
	}
	rt := gpu.RenderTarget(d.handle())
	d.targets[rt] = targetRecord{colors: append([]gpu.Texture(nil), colors...), depth: depth}
	return rt, nil
}

func (d *Device) ReleaseRenderTarget(rt gpu.RenderTarget) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, live := d.targets[rt]
	delete(d.targets, rt)
	d.release("render_target", uint32(rt), live)
}

func (d *Device) BindRenderTarget(rt gpu.RenderTarget) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ActiveTarget = rt
	d.TargetBinds[rt]++
}

func (d *Device) Viewport(x, y, width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Viewports = append(d.Viewports, [4]int{x, y, width, height})
}

func (d *Device) Clear(color [4]float32, depth float32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Clears++
	if rec, ok := d.targets[d.ActiveTarget]; ok {
		for _, c := range rec.colors {
			d.markWritten(c)
		}
		d.markWritten(rec.depth)
	}
}

func (d *Device) DispatchCompute(x, y, z uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Dispatches = append(d.Dispatches, Dispatch{Program: d.ActiveProgram, X: x, Y: y, Z: z})
	layout, ok := d.programs[d.ActiveProgram]
	if !ok {
		return
	}
	for _, b := range layout.Bindings {
		if b.Kind != wgsl.ResourceStorageTexture || b.Access == "read" {
			continue
		}
		if img, bound := d.ImageUnits[b.Unit]; bound {
			d.markWritten(img.Texture)
		}
	}
}

func (d *Device) DrawFullscreen() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Draws = append(d.Draws, Draw{Program: d.ActiveProgram, Target: d.ActiveTarget})
	if rec, ok := d.targets[d.ActiveTarget]; ok {
		for _, c := range rec.colors {
			d.markWritten(c)
		}
	}
}

func (d *Device) MemoryBarrier(b gpu.Barrier) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Barriers = append(d.Barriers, b)
}

func (d *Device) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Flushes++
	err := d.FlushErr
	d.FlushErr = nil
	return err
}

func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.DeviceReleased = true
}

func (d *Device) markWritten(t gpu.Texture) {
	if rec, ok := d.textures[t]; ok {
		rec.writes++
	}
}

// Writes returns how many dispatches, draws, clears and copies have written t.
func (d *Device) Writes(t gpu.Texture) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if rec, ok := d.textures[t]; ok {
		return rec.writes
	}
	return 0
}

// TextureDesc returns the descriptor a live texture was created with.
func (d *Device) TextureDesc(t gpu.Texture) (gpu.TextureDescriptor, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.textures[t]
	if !ok {
		return gpu.TextureDescriptor{}, false
	}
	return rec.desc, true
}

// Live returns the number of live objects of each kind.
func (d *Device) Live() (stages, programs, textures, buffers, targets int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.stages), len(d.programs), len(d.textures), len(d.buffers), len(d.targets)
}

// IsLiveTexture reports whether t has been created and not released.
func (d *Device) IsLiveTexture(t gpu.Texture) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.textures[t]
	return ok
}

// Uniform returns the staged bytes of a plain data uniform, or the encoded unit of a resource uniform.
func (d *Device) Uniform(p gpu.Program, name string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	layout, ok := d.programs[p]
	if !ok {
		return nil, false
	}
	info, ok := layout.Lookup(name)
	if !ok {
		return nil, false
	}
	if info.Resource {
		b, _ := layout.BindingByName(name)
		return gpu.EncodeUnit(b.Unit), true
	}
	for _, b := range layout.Bindings {
		for _, f := range b.Fields {
			if f.Name == name && b.Data != nil {
				return append([]byte(nil), b.Data[f.Offset:f.Offset+f.Size]...), true
			}
		}
	}
	return nil, false
}

// UniformUint decodes a 4 byte uniform as uint32.
func (d *Device) UniformUint(p gpu.Program, name string) (uint32, bool) {
	data, ok := d.Uniform(p, name)
	if !ok || len(data) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(data), true
}

// UniformFloat decodes a 4 byte uniform as float32.
func (d *Device) UniformFloat(p gpu.Program, name string) (float32, bool) {
	bits, ok := d.UniformUint(p, name)
	if !ok {
		return 0, false
	}
	return math.Float32frombits(bits), true
}

// DispatchesOf returns the dispatches issued with program p.
func (d *Device) DispatchesOf(p gpu.Program) []Dispatch {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Dispatch
	for _, dp := range d.Dispatches {
		if dp.Program == p {
			out = append(out, dp)
		}
	}
	return out
}
