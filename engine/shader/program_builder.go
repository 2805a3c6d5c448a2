package shader

import "log/slog"

type ProgramBuilderOption func(*program)

// WithProgramLogger sets the logger the program reports diagnostics to.
//
// Parameters:
//   - logger: the structured logger to use
//
// Returns:
//   - ProgramBuilderOption: a function that sets the program's logger
func WithProgramLogger(logger *slog.Logger) ProgramBuilderOption {
	return func(p *program) {
		p.logger = logger
	}
}
