package pipeline

import (
	"github.com/Carmen-Shannon/oxy-rtx/engine/framebuffer"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rtx/engine/shader"
)

// Compositor presents the tone mapped image. It is called with the tone mapping program bound and
// its inputs set; it chooses the output target and issues the draw.
type Compositor interface {
	// Composite draws the tone mapped image.
	//
	// Parameters:
	//   - tone: the bound tone mapping program
	//   - source: the frame buffer whose color attachment is being tone mapped
	Composite(tone shader.Program, source framebuffer.FrameBuffer)
}

// backBufferCompositor draws the tone mapped image over the whole back buffer.
type backBufferCompositor struct {
	device gpu.Device
}

var _ Compositor = &backBufferCompositor{}

// NewBackBufferCompositor creates a Compositor that draws a fullscreen triangle into the default
// target.
//
// Parameters:
//   - device: the device to draw with
//
// Returns:
//   - Compositor: the compositor
func NewBackBufferCompositor(device gpu.Device) Compositor {
	return &backBufferCompositor{device: device}
}

func (c *backBufferCompositor) Composite(shader.Program, framebuffer.FrameBuffer) {
	c.device.BindRenderTarget(gpu.DefaultTarget)
	// An empty viewport covers the whole back buffer whatever its current size.
	c.device.Viewport(0, 0, 0, 0)
	c.device.DrawFullscreen()
}
