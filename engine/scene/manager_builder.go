package scene

import "log/slog"

// ManagerBuilderOption is a functional option for configuring a Manager.
type ManagerBuilderOption func(*manager)

// WithLogger sets the logger the manager reports to.
//
// Parameters:
//   - logger: the structured logger to use
//
// Returns:
//   - ManagerBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) ManagerBuilderOption {
	return func(m *manager) {
		m.logger = logger
	}
}

// WithSource replaces the default demo scene.
//
// Parameters:
//   - source: the scene feed
//
// Returns:
//   - ManagerBuilderOption: option function to apply
func WithSource(source Source) ManagerBuilderOption {
	return func(m *manager) {
		m.source = source
	}
}
