package pipeline

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-rtx/common"
	"github.com/Carmen-Shannon/oxy-rtx/engine/config"
)

// PostProcessingBuilderOption is a functional option for configuring a PostProcessingPipeline.
type PostProcessingBuilderOption func(*postProcessingPipeline)

// WithPostProcessingLogger sets the logger the pipeline reports to.
//
// Parameters:
//   - logger: the structured logger to use
//
// Returns:
//   - PostProcessingBuilderOption: option function to apply
func WithPostProcessingLogger(logger *slog.Logger) PostProcessingBuilderOption {
	return func(pp *postProcessingPipeline) {
		pp.logger = logger
	}
}

// WithPostProcessingConfig sets the configuration the upscaling switch is read from every frame.
// Defaults to config.Default().
//
// Parameters:
//   - cfg: the shared renderer configuration
//
// Returns:
//   - PostProcessingBuilderOption: option function to apply
func WithPostProcessingConfig(cfg *config.Config) PostProcessingBuilderOption {
	return func(pp *postProcessingPipeline) {
		pp.cfg = cfg
	}
}

// WithCompositor sets the collaborator that draws the tone mapped image. Without one the tone
// mapping pass prepares its inputs and draws nothing.
//
// Parameters:
//   - c: the compositor
//
// Returns:
//   - PostProcessingBuilderOption: option function to apply
func WithCompositor(c Compositor) PostProcessingBuilderOption {
	return func(pp *postProcessingPipeline) {
		pp.compositor = c
	}
}

// WithTemporalBlendFactor sets the initial history weight, clamped to [0, 1].
func WithTemporalBlendFactor(factor float32) PostProcessingBuilderOption {
	return func(pp *postProcessingPipeline) {
		pp.blendFactor = common.Clamp(factor, 0, 1)
	}
}
