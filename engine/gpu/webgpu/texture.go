package webgpu

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// textureObject is a 2D texture with its default view. scratch holds a same sized copy used when
// a pass samples a texture it also writes.
type textureObject struct {
	desc    gpu.TextureDescriptor
	format  wgpu.TextureFormat
	texture *wgpu.Texture
	view    *wgpu.TextureView
	scratch *textureObject
}

func (t *textureObject) release() {
	if t.scratch != nil {
		t.scratch.release()
		t.scratch = nil
	}
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

func (t *textureObject) extent() *wgpu.Extent3D {
	return &wgpu.Extent3D{
		Width:              uint32(t.desc.Width),
		Height:             uint32(t.desc.Height),
		DepthOrArrayLayers: 1,
	}
}

// bufferObject is a device buffer of a fixed kind and size.
type bufferObject struct {
	kind   gpu.BufferKind
	size   uint64
	buffer *wgpu.Buffer
}

// newTexture allocates the wgpu texture and view for desc.
func (d *Device) newTexture(desc gpu.TextureDescriptor) (*textureObject, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("invalid texture size %dx%d", desc.Width, desc.Height)
	}
	format, ok := physicalFormats[desc.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported texture format %s", desc.Format)
	}

	usage := wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst | wgpu.TextureUsageRenderAttachment
	if !desc.Format.IsDepth() {
		usage |= wgpu.TextureUsageStorageBinding
	}

	obj := &textureObject{desc: desc, format: format}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Usage:         usage,
		Dimension:     wgpu.TextureDimension2D,
		Size:          *obj.extent(),
		Format:        format,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %q: %w", desc.Label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("failed to create view for texture %q: %w", desc.Label, err)
	}
	obj.texture = tex
	obj.view = view
	return obj, nil
}

func (d *Device) CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	obj, err := d.newTexture(desc)
	if err != nil {
		return 0, err
	}
	h := gpu.Texture(d.handle())
	d.textures[h] = obj
	return h, nil
}

func (d *Device) ReleaseTexture(t gpu.Texture) {
	d.mu.Lock()
	defer d.mu.Unlock()

	obj, ok := d.textures[t]
	if !ok {
		return
	}
	// Recorded passes may still reference the texture.
	d.submit()
	delete(d.textures, t)
	obj.release()

	for unit, bound := range d.textureUnits {
		if bound == t {
			delete(d.textureUnits, unit)
		}
	}
	for unit, img := range d.imageUnits {
		if img.texture == t {
			delete(d.imageUnits, unit)
		}
	}
}

func (d *Device) BindTexture(unit int, t gpu.Texture) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t == 0 {
		delete(d.textureUnits, unit)
		return
	}
	d.textureUnits[unit] = t
}

func (d *Device) BindImage(unit int, t gpu.Texture, access gpu.ImageAccess, format gpu.TextureFormat) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t == 0 {
		delete(d.imageUnits, unit)
		return
	}
	d.imageUnits[unit] = imageBinding{texture: t, access: access, format: format}
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
	if s.desc.Width != t.desc.Width || s.desc.Height != t.desc.Height || s.format != t.format {
		return errors.New("copy between textures of different size or format")
	}
	return d.copyTexture(s, t)
}

// copyTexture records a full copy of src into dst on the pending encoder.
func (d *Device) copyTexture(src, dst *textureObject) error {
	enc, err := d.commandEncoder()
	if err != nil {
		return err
	}
	enc.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{
			Texture: src.texture,
			Origin:  wgpu.Origin3D{},
			Aspect:  wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyTexture{
			Texture: dst.texture,
			Origin:  wgpu.Origin3D{},
			Aspect:  wgpu.TextureAspectAll,
		},
		src.extent(),
	)
	return nil
}

// snapshot copies t into its scratch texture and returns the scratch view, so a pass can sample
// the previous contents of a texture it also writes.
func (d *Device) snapshot(t *textureObject) (*wgpu.TextureView, error) {
	if t.scratch == nil || t.scratch.desc != t.desc {
		if t.scratch != nil {
			t.scratch.release()
		}
		desc := t.desc
		desc.Label += " snapshot"
		scratch, err := d.newTexture(desc)
		if err != nil {
			return nil, err
		}
		t.scratch = scratch
	}
	if err := d.copyTexture(t, t.scratch); err != nil {
		return nil, err
	}
	return t.scratch.view, nil
}

func (d *Device) CreateBuffer(kind gpu.BufferKind, size uint64, label string) (gpu.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if size == 0 {
		return 0, fmt.Errorf("buffer %q has zero size", label)
	}
	usage := wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
	if kind == gpu.BufferStorage {
		usage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	}
	// Buffer sizes must be a multiple of 4 for queue writes.
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  (size + 3) &^ 3,
		Usage: usage,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create buffer %q: %w", label, err)
	}
	h := gpu.Buffer(d.handle())
	d.buffers[h] = &bufferObject{kind: kind, size: size, buffer: buf}
	return h, nil
}

func (d *Device) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	obj, ok := d.buffers[buf]
	if !ok {
		d.fail(fmt.Errorf("write to unknown buffer %d", buf))
		return
	}
	if offset+uint64(len(data)) > obj.size {
		d.fail(fmt.Errorf("write of %d bytes at offset %d overflows buffer %d of size %d", len(data), offset, buf, obj.size))
		return
	}
	if len(data)%4 != 0 {
		padded := make([]byte, (len(data)+3)&^3)
		copy(padded, data)
		data = padded
	}
	// Recorded commands read the buffer at submission time.
	if d.encoder != nil {
		d.submit()
	}
	if err := d.queue.WriteBuffer(obj.buffer, offset, data); err != nil {
		d.fail(fmt.Errorf("failed to write buffer %d: %w", buf, err))
	}
}

func (d *Device) ReleaseBuffer(buf gpu.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	obj, ok := d.buffers[buf]
	if !ok {
		return
	}
	d.submit()
	delete(d.buffers, buf)
	obj.buffer.Release()
	for _, points := range d.bufferBindings {
		for binding, bound := range points {
			if bound == buf {
				delete(points, binding)
			}
		}
	}
}

func (d *Device) BindBuffer(kind gpu.BufferKind, binding int, buf gpu.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bufferBindings[kind] == nil {
		d.bufferBindings[kind] = make(map[int]gpu.Buffer)
	}
	if buf == 0 {
		delete(d.bufferBindings[kind], binding)
		return
	}
	d.bufferBindings[kind][binding] = buf
}
