package renderer

import (
	"io/fs"
	"log/slog"
	"time"

	"github.com/Carmen-Shannon/oxy-rtx/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-rtx/engine/scene"
)

// RendererBuilderOption is a functional option for configuring a Renderer.
type RendererBuilderOption func(*renderer)

// WithLogger sets the logger the renderer and every component it creates report to.
//
// Parameters:
//   - logger: the structured logger to use
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) RendererBuilderOption {
	return func(r *renderer) {
		r.logger = logger
	}
}

// WithWindowSize sets the initial window size the frame buffers are derived from. Defaults to
// 1280x720. Non-positive sizes are ignored.
//
// Parameters:
//   - width: the window width in pixels
//   - height: the window height in pixels
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithWindowSize(width, height int) RendererBuilderOption {
	return func(r *renderer) {
		if width > 0 && height > 0 {
			r.width, r.height = width, height
		}
	}
}

// WithShaderSource layers source over the bundled shader programs. It takes precedence over the
// config's shader directory, which is then only watched for changes.
//
// Parameters:
//   - source: the shader file system
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithShaderSource(source fs.FS) RendererBuilderOption {
	return func(r *renderer) {
		r.shaderSource = source
	}
}

// WithSceneSource replaces the built-in demo scene.
//
// Parameters:
//   - source: the scene feed polled every frame
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithSceneSource(source scene.Source) RendererBuilderOption {
	return func(r *renderer) {
		r.sceneSource = source
	}
}

// WithCompositor sets the collaborator that draws the tone mapped frame to the screen.
//
// Parameters:
//   - c: the compositor
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithCompositor(c pipeline.Compositor) RendererBuilderOption {
	return func(r *renderer) {
		r.compositor = c
	}
}

// WithShaderWatch enables or disables hot reload of the config's shader directory. Enabled by
// default.
func WithShaderWatch(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.watchShaders = enabled
	}
}

// WithClock replaces the wall clock used for frame timing and the ray tracing time uniform.
func WithClock(now func() time.Time) RendererBuilderOption {
	return func(r *renderer) {
		if now != nil {
			r.now = now
		}
	}
}
