package profiler

import "log/slog"

// ProfilerBuilderOption is a functional option for configuring a Profiler.
type ProfilerBuilderOption func(*Profiler)

// WithLogger sets the logger reports are written to.
//
// Parameters:
//   - logger: the structured logger to use
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.logger = logger
	}
}

// WithReportInterval sets the number of frames between reports. 0 disables reporting.
//
// Parameters:
//   - frames: frames between reports
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithReportInterval(frames int) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.reportInterval = max(frames, 0)
	}
}
