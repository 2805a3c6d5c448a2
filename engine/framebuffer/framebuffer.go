// Package framebuffer implements the multi-attachment render target the ray tracing and
// post-processing passes read and write.
package framebuffer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-rtx/common"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
)

// ErrIncomplete reports a frame buffer whose attachments failed the completeness check.
var ErrIncomplete = errors.New("incomplete frame buffer")

// frameBuffer is the implementation of the FrameBuffer interface.
type frameBuffer struct {
	device     gpu.Device
	logger     *slog.Logger
	label      string
	width      int
	height     int
	hdr        bool
	clearColor [4]float32

	textures [attachmentCount]gpu.Texture
	target   gpu.RenderTarget
	created  bool
}

// FrameBuffer owns a render target with five attachments: color, normal, material, motion and
// depth. It is built in two phases: New returns an inert value and Create allocates the GPU
// objects. A frame buffer is never resized; callers delete it and create a new one.
type FrameBuffer interface {
	// Create allocates every attachment and the render target. When the target fails its
	// completeness check every attachment created so far is released before the error returns.
	// Calling Create on a created buffer is a no-op.
	//
	// Returns:
	//   - error: ErrIncomplete wrapping the device diagnostic, or an allocation error
	Create() error

	// Bind makes this buffer the render target and sets the viewport to its size.
	Bind()

	// Unbind restores the default target.
	Unbind()

	// Clear clears every attachment of the bound target to the clear color and far depth.
	Clear()

	BindColorTexture(unit int)
	BindNormalTexture(unit int)
	BindMaterialTexture(unit int)
	BindMotionTexture(unit int)
	BindDepthTexture(unit int)

	// BindAllTextures binds all five attachments to consecutive texture units in attachment
	// order: color at start, then normal, material, motion and depth.
	//
	// Parameters:
	//   - start: the first texture unit
	BindAllTextures(start int)

	// Texture returns the texture backing an attachment, 0 if the buffer is not created.
	Texture(a Attachment) gpu.Texture

	ColorTexture() gpu.Texture
	NormalTexture() gpu.Texture
	MaterialTexture() gpu.Texture
	MotionTexture() gpu.Texture
	DepthTexture() gpu.Texture

	// Target returns the render target handle, 0 if the buffer is not created.
	Target() gpu.RenderTarget

	Width() int
	Height() int
	HDR() bool
	IsCreated() bool

	// Delete releases every attachment and the render target. Calling it again is a no-op.
	Delete()
}

var _ FrameBuffer = &frameBuffer{}

// New creates an inert frame buffer description. No GPU objects exist until Create.
//
// Parameters:
//   - device: the device the attachments are allocated on
//   - width: the width in pixels
//   - height: the height in pixels
//   - hdr: true for a 16-bit float color attachment, false for 8-bit
//   - options: variadic list of FrameBufferBuilderOption functions to configure the buffer
//
// Returns:
//   - FrameBuffer: the uncreated frame buffer
func New(device gpu.Device, width, height int, hdr bool, options ...FrameBufferBuilderOption) FrameBuffer {
	fb := &frameBuffer{
		device: device,
		label:  "frame buffer",
		width:  width,
		height: height,
		hdr:    hdr,
	}
	for _, option := range options {
		option(fb)
	}
	fb.logger = common.LoggerOrNop(fb.logger)
	return fb
}

func (fb *frameBuffer) Create() error {
	if fb.created {
		return nil
	}
	if fb.width <= 0 || fb.height <= 0 {
		return fmt.Errorf("%s: invalid size %dx%d", fb.label, fb.width, fb.height)
	}

	for _, a := range Attachments {
		tex, err := fb.device.CreateTexture(gpu.TextureDescriptor{
			Label:  fb.label + " " + a.String(),
			Width:  fb.width,
			Height: fb.height,
			Format: a.Format(fb.hdr),
		})
		if err != nil {
			fb.releaseTextures()
			return fmt.Errorf("%s: failed to create %s attachment: %w", fb.label, a, err)
		}
		fb.textures[a] = tex
	}

	colors := []gpu.Texture{fb.textures[Color], fb.textures[Normal], fb.textures[Material], fb.textures[Motion]}
	target, err := fb.device.CreateRenderTarget(colors, fb.textures[Depth])
	if err != nil {
		fb.releaseTextures()
		return fmt.Errorf("%s: %w: %w", fb.label, ErrIncomplete, err)
	}
	fb.target = target
	fb.created = true

	fb.logger.Debug("frame buffer created", "label", fb.label, "width", fb.width, "height", fb.height, "hdr", fb.hdr)
	return nil
}

// releaseTextures releases every allocated attachment.
func (fb *frameBuffer) releaseTextures() {
	for i, tex := range fb.textures {
		if tex != 0 {
			fb.device.ReleaseTexture(tex)
			fb.textures[i] = 0
		}
	}
}

func (fb *frameBuffer) Bind() {
	if !fb.created {
		fb.logger.Warn("bind of frame buffer that is not created", "label", fb.label)
		return
	}
	fb.device.BindRenderTarget(fb.target)
	fb.device.Viewport(0, 0, fb.width, fb.height)
}

func (fb *frameBuffer) Unbind() {
	fb.device.BindRenderTarget(gpu.DefaultTarget)
}

func (fb *frameBuffer) Clear() {
	fb.device.Clear(fb.clearColor, 1.0)
}

func (fb *frameBuffer) bindTexture(a Attachment, unit int) {
	fb.device.BindTexture(unit, fb.textures[a])
}

func (fb *frameBuffer) BindColorTexture(unit int)    { fb.bindTexture(Color, unit) }
func (fb *frameBuffer) BindNormalTexture(unit int)   { fb.bindTexture(Normal, unit) }
func (fb *frameBuffer) BindMaterialTexture(unit int) { fb.bindTexture(Material, unit) }
func (fb *frameBuffer) BindMotionTexture(unit int)   { fb.bindTexture(Motion, unit) }
func (fb *frameBuffer) BindDepthTexture(unit int)    { fb.bindTexture(Depth, unit) }

func (fb *frameBuffer) BindAllTextures(start int) {
	for i, a := range Attachments {
		fb.bindTexture(a, start+i)
	}
}

func (fb *frameBuffer) Texture(a Attachment) gpu.Texture {
	if a < 0 || a >= attachmentCount {
		return 0
	}
	return fb.textures[a]
}

func (fb *frameBuffer) ColorTexture() gpu.Texture    { return fb.textures[Color] }
func (fb *frameBuffer) NormalTexture() gpu.Texture   { return fb.textures[Normal] }
func (fb *frameBuffer) MaterialTexture() gpu.Texture { return fb.textures[Material] }
func (fb *frameBuffer) MotionTexture() gpu.Texture   { return fb.textures[Motion] }
func (fb *frameBuffer) DepthTexture() gpu.Texture    { return fb.textures[Depth] }

func (fb *frameBuffer) Target() gpu.RenderTarget {
	return fb.target
}

func (fb *frameBuffer) Width() int {
	return fb.width
}

func (fb *frameBuffer) Height() int {
	return fb.height
}

func (fb *frameBuffer) HDR() bool {
	return fb.hdr
}

func (fb *frameBuffer) IsCreated() bool {
	return fb.created
}

func (fb *frameBuffer) Delete() {
	if fb.target != 0 {
		fb.device.ReleaseRenderTarget(fb.target)
		fb.target = 0
	}
	fb.releaseTextures()
	if fb.created {
		fb.logger.Debug("frame buffer deleted", "label", fb.label)
	}
	fb.created = false
}
