package framebuffer

import "log/slog"

type FrameBufferBuilderOption func(*frameBuffer)

// WithLogger sets the logger the frame buffer reports lifecycle events to.
//
// Parameters:
//   - logger: the structured logger to use
//
// Returns:
//   - FrameBufferBuilderOption: a function that sets the frame buffer's logger
func WithLogger(logger *slog.Logger) FrameBufferBuilderOption {
	return func(fb *frameBuffer) {
		fb.logger = logger
	}
}

// WithLabel sets the label used for the attachments' debug names and in diagnostics.
//
// Parameters:
//   - label: the frame buffer label
//
// Returns:
//   - FrameBufferBuilderOption: a function that sets the frame buffer's label
func WithLabel(label string) FrameBufferBuilderOption {
	return func(fb *frameBuffer) {
		fb.label = label
	}
}

// WithClearColor sets the color Clear writes to the color attachments.
//
// Parameters:
//   - r, g, b, a: the clear color components
//
// Returns:
//   - FrameBufferBuilderOption: a function that sets the clear color
func WithClearColor(r, g, b, a float32) FrameBufferBuilderOption {
	return func(fb *frameBuffer) {
		fb.clearColor = [4]float32{r, g, b, a}
	}
}
