package pipeline

import (
	"log/slog"
	"time"

	"github.com/Carmen-Shannon/oxy-rtx/engine/config"
)

// RayTracingBuilderOption is a functional option for configuring a RayTracingPipeline.
type RayTracingBuilderOption func(*rayTracingPipeline)

// WithRayTracingLogger sets the logger the pipeline reports to.
//
// Parameters:
//   - logger: the structured logger to use
//
// Returns:
//   - RayTracingBuilderOption: option function to apply
func WithRayTracingLogger(logger *slog.Logger) RayTracingBuilderOption {
	return func(rt *rayTracingPipeline) {
		rt.logger = logger
	}
}

// WithRayTracingConfig sets the configuration the bounce and sample counts are read from every
// frame. Defaults to config.Default().
//
// Parameters:
//   - cfg: the shared renderer configuration
//
// Returns:
//   - RayTracingBuilderOption: option function to apply
func WithRayTracingConfig(cfg *config.Config) RayTracingBuilderOption {
	return func(rt *rayTracingPipeline) {
		rt.cfg = cfg
	}
}

// WithScene sets the scene the pass traces. Without one an empty scene is bound.
//
// Parameters:
//   - s: the scene buffer provider
//
// Returns:
//   - RayTracingBuilderOption: option function to apply
func WithScene(s SceneBuffer) RayTracingBuilderOption {
	return func(rt *rayTracingPipeline) {
		rt.scene = s
	}
}

// WithClock replaces time.Now as the source of the time uniform.
func WithClock(now func() time.Time) RayTracingBuilderOption {
	return func(rt *rayTracingPipeline) {
		rt.now = now
	}
}
