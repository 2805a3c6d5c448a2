package webgpu

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// targetObject is a set of attachments. Attachments are owned by the caller.
type targetObject struct {
	colors []gpu.Texture
	depth  gpu.Texture
}

// attachments is a render target resolved to views for one pass.
type attachments struct {
	colors        []*wgpu.TextureView
	formats       []wgpu.TextureFormat
	depth         *wgpu.TextureView
	depthFormat   wgpu.TextureFormat
	width, height uint32
	written       []*textureObject
}

func (d *Device) CreateRenderTarget(colors []gpu.Texture, depth gpu.Texture) (gpu.RenderTarget, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(colors) == 0 && depth == 0 {
		return 0, errors.New("incomplete render target: no attachments")
	}

	width, height := -1, -1
	checkSize := func(obj *textureObject) error {
		if width < 0 {
			width, height = obj.desc.Width, obj.desc.Height
			return nil
		}
		if obj.desc.Width != width || obj.desc.Height != height {
			return fmt.Errorf("incomplete render target: attachment %q is %dx%d, expected %dx%d",
				obj.desc.Label, obj.desc.Width, obj.desc.Height, width, height)
		}
		return nil
	}

	for i, c := range colors {
		obj, ok := d.textures[c]
		if !ok {
			return 0, fmt.Errorf("incomplete render target: color attachment %d is not a live texture", i)
		}
		if obj.desc.Format.IsDepth() {
			return 0, fmt.Errorf("incomplete render target: color attachment %d has depth format", i)
		}
		if err := checkSize(obj); err != nil {
			return 0, err
		}
	}
	if depth != 0 {
		obj, ok := d.textures[depth]
		if !ok {
			return 0, errors.New("incomplete render target: depth attachment is not a live texture")
		}
		if !obj.desc.Format.IsDepth() {
			return 0, fmt.Errorf("incomplete render target: depth attachment has color format %s", obj.desc.Format)
		}
		if err := checkSize(obj); err != nil {
			return 0, err
		}
	}

	h := gpu.RenderTarget(d.handle())
	d.targets[h] = &targetObject{colors: append([]gpu.Texture(nil), colors...), depth: depth}
	return h, nil
}

func (d *Device) ReleaseRenderTarget(rt gpu.RenderTarget) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.targets, rt)
	if d.activeTarget == rt {
		d.activeTarget = gpu.DefaultTarget
	}
}

func (d *Device) BindRenderTarget(rt gpu.RenderTarget) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.activeTarget = rt
}

func (d *Device) Viewport(x, y, width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.viewport = [4]int{x, y, width, height}
}

// resolveTarget looks up the views of rt. The default target acquires the surface image.
func (d *Device) resolveTarget(rt gpu.RenderTarget) (*attachments, error) {
	if rt == gpu.DefaultTarget {
		view, err := d.acquireFrame()
		if err != nil {
			return nil, err
		}
		return &attachments{
			colors:  []*wgpu.TextureView{view},
			formats: []wgpu.TextureFormat{d.surfaceFormat},
			width:   d.surfaceWidth,
			height:  d.surfaceHeight,
		}, nil
	}

	target, ok := d.targets[rt]
	if !ok {
		return nil, fmt.Errorf("render target %d is not live", rt)
	}
	a := &attachments{}
	for _, c := range target.colors {
		obj, ok := d.textures[c]
		if !ok {
			return nil, fmt.Errorf("render target %d references released texture %d", rt, c)
		}
		a.colors = append(a.colors, obj.view)
		a.formats = append(a.formats, obj.format)
		a.written = append(a.written, obj)
		a.width, a.height = uint32(obj.desc.Width), uint32(obj.desc.Height)
	}
	if target.depth != 0 {
		obj, ok := d.textures[target.depth]
		if !ok {
			return nil, fmt.Errorf("render target %d references released texture %d", rt, target.depth)
		}
		a.depth = obj.view
		a.depthFormat = obj.format
		a.written = append(a.written, obj)
		a.width, a.height = uint32(obj.desc.Width), uint32(obj.desc.Height)
	}
	return a, nil
}

// passDescriptor builds a render pass over a. clear selects LoadOpClear with the given values.
func (a *attachments) passDescriptor(clear bool, color [4]float32, depth float32) *wgpu.RenderPassDescriptor {
	loadOp := wgpu.LoadOpLoad
	if clear {
		loadOp = wgpu.LoadOpClear
	}

	desc := &wgpu.RenderPassDescriptor{}
	for _, view := range a.colors {
		desc.ColorAttachments = append(desc.ColorAttachments, wgpu.RenderPassColorAttachment{
			View:    view,
			LoadOp:  loadOp,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: float64(color[0]), G: float64(color[1]), B: float64(color[2]), A: float64(color[3]),
			},
		})
	}
	if a.depth != nil {
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            a.depth,
			DepthLoadOp:     loadOp,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: depth,
		}
	}
	return desc
}

func (d *Device) Clear(color [4]float32, depth float32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, err := d.resolveTarget(d.activeTarget)
	if err != nil {
		d.fail(fmt.Errorf("clear: %w", err))
		return
	}
	enc, err := d.commandEncoder()
	if err != nil {
		d.fail(err)
		return
	}
	pass := enc.BeginRenderPass(a.passDescriptor(true, color, depth))
	pass.End()
	pass.Release()
}

func (d *Device) DrawFullscreen() {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.programs[d.activeProgram]
	if !ok || p.layout.Compute {
		d.fail(fmt.Errorf("draw with program %d which is not a live graphics program", d.activeProgram))
		return
	}
	a, err := d.resolveTarget(d.activeTarget)
	if err != nil {
		d.fail(fmt.Errorf("draw: %w", err))
		return
	}
	rp, err := d.renderPipeline(p, a.formats, a.depthFormat)
	if err != nil {
		d.fail(err)
		return
	}

	d.uploadUniforms(p)
	enc, err := d.commandEncoder()
	if err != nil {
		d.fail(err)
		return
	}
	groups, err := d.bindGroups(p, a.written)
	if err != nil {
		d.fail(fmt.Errorf("draw: %w", err))
		return
	}

	x, y, w, h := clampViewport(d.viewport, a.width, a.height)
	pass := enc.BeginRenderPass(a.passDescriptor(false, [4]float32{}, 1))
	pass.SetPipeline(rp)
	for i, g := range groups {
		pass.SetBindGroup(uint32(i), g, nil)
	}
	pass.SetViewport(x, y, w, h, 0, 1)
	pass.Draw(3, 1, 0, 0)
	pass.End()
	pass.Release()

	d.usedSinceSubmit[d.activeProgram] = true
}

// clampViewport fits the requested viewport into the target. An empty request covers the whole target.
func clampViewport(vp [4]int, width, height uint32) (x, y, w, h float32) {
	if vp[2] <= 0 || vp[3] <= 0 {
		return 0, 0, float32(width), float32(height)
	}
	x = float32(min(max(vp[0], 0), int(width)))
	y = float32(min(max(vp[1], 0), int(height)))
	w = min(float32(vp[2]), float32(width)-x)
	h = min(float32(vp[3]), float32(height)-y)
	return x, y, w, h
}
