package webgpu

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu/wgsl"
	"github.com/cogentcore/webgpu/wgpu"
)

func (d *Device) DispatchCompute(x, y, z uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.programs[d.activeProgram]
	if !ok || p.compute == nil {
		d.fail(fmt.Errorf("dispatch with program %d which is not a live compute program", d.activeProgram))
		return
	}
	if x == 0 || y == 0 || z == 0 {
		return
	}

	d.uploadUniforms(p)
	enc, err := d.commandEncoder()
	if err != nil {
		d.fail(err)
		return
	}
	groups, err := d.bindGroups(p, d.imageWrites(p))
	if err != nil {
		d.fail(fmt.Errorf("dispatch: %w", err))
		return
	}

	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(p.compute)
	for i, g := range groups {
		pass.SetBindGroup(uint32(i), g, nil)
	}
	pass.DispatchWorkgroups(x, y, z)
	pass.End()
	pass.Release()

	d.usedSinceSubmit[d.activeProgram] = true
}

// imageWrites returns the textures p writes through storage image units.
func (d *Device) imageWrites(p *programObject) []*textureObject {
	var written []*textureObject
	for _, b := range p.layout.Bindings {
		if b.Kind != wgsl.ResourceStorageTexture || b.Access == "read" {
			continue
		}
		img, ok := d.imageUnits[b.Unit]
		if !ok {
			continue
		}
		if obj, live := d.textures[img.texture]; live {
			written = append(written, obj)
		}
	}
	return written
}

// bindGroups resolves every resource variable of p against the current unit state and creates one
// bind group per group index. Sampled textures that are also written by the pass are read from a
// snapshot. The groups are released after the next submission.
func (d *Device) bindGroups(p *programObject, written []*textureObject) ([]*wgpu.BindGroup, error) {
	entries := make([][]wgpu.BindGroupEntry, len(p.groupLayouts))
	for i, b := range p.layout.Bindings {
		entry, err := d.bindEntry(p, i, b, written)
		if err != nil {
			return nil, err
		}
		entries[b.Group] = append(entries[b.Group], entry)
	}

	groups := make([]*wgpu.BindGroup, len(p.groupLayouts))
	for g, layout := range p.groupLayouts {
		group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   fmt.Sprintf("%s group %d", p.label, g),
			Layout:  layout,
			Entries: entries[g],
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bind group %d: %w", g, err)
		}
		d.pendingGroups = append(d.pendingGroups, group)
		groups[g] = group
	}
	return groups, nil
}

// bindEntry resolves one resource variable.
func (d *Device) bindEntry(p *programObject, index int, b *gpu.LayoutBinding, written []*textureObject) (wgpu.BindGroupEntry, error) {
	entry := wgpu.BindGroupEntry{Binding: b.Binding.Binding}

	switch b.Kind {
	case wgsl.ResourceUniformBuffer:
		entry.Buffer = p.uniformBuffers[index]
		entry.Size = wgpu.WholeSize

	case wgsl.ResourceStorageBuffer, wgsl.ResourceReadOnlyStorageBuffer:
		h, ok := d.bufferBindings[gpu.BufferStorage][b.Unit]
		obj, live := d.buffers[h]
		if !ok || !live {
			return entry, fmt.Errorf("no storage buffer bound at binding %d for %s", b.Unit, b.Name)
		}
		entry.Buffer = obj.buffer
		entry.Size = wgpu.WholeSize

	case wgsl.ResourceTexture, wgsl.ResourceDepthTexture:
		obj, ok := d.textures[d.textureUnits[b.Unit]]
		if !ok {
			return entry, fmt.Errorf("no texture bound to texture unit %d for %s", b.Unit, b.Name)
		}
		if (b.Kind == wgsl.ResourceDepthTexture) != obj.desc.Format.IsDepth() {
			return entry, fmt.Errorf("texture %q with format %s cannot back %s: %s", obj.desc.Label, obj.desc.Format, b.Name, b.Type)
		}
		entry.TextureView = obj.view
		if slices.Contains(written, obj) {
			view, err := d.snapshot(obj)
			if err != nil {
				return entry, err
			}
			entry.TextureView = view
		}

	case wgsl.ResourceStorageTexture:
		img, ok := d.imageUnits[b.Unit]
		obj, live := d.textures[img.texture]
		if !ok || !live {
			return entry, fmt.Errorf("no texture bound to image unit %d for %s", b.Unit, b.Name)
		}
		if texelFormatNames[obj.format] != b.TexelFormat {
			return entry, fmt.Errorf("image unit %d holds %s (stored as %s) but %s declares %s",
				b.Unit, obj.desc.Format, texelFormatNames[obj.format], b.Name, b.TexelFormat)
		}
		entry.TextureView = obj.view

	case wgsl.ResourceSampler, wgsl.ResourceComparisonSampler:
		s, err := d.samplerFor(b.Kind)
		if err != nil {
			return entry, err
		}
		entry.Sampler = s

	default:
		return entry, fmt.Errorf("unsupported resource %s: %s", b.Name, b.Type)
	}
	return entry, nil
}
