package shader

import (
	"io/fs"
	"log/slog"
)

type ManagerBuilderOption func(*manager)

// WithLogger sets the logger the manager and its programs report to.
//
// Parameters:
//   - logger: the structured logger to use
//
// Returns:
//   - ManagerBuilderOption: a function that sets the manager's logger
func WithLogger(logger *slog.Logger) ManagerBuilderOption {
	return func(m *manager) {
		m.logger = logger
	}
}

// WithSource layers source over the embedded shader bundle. Paths found in source win; paths
// missing from it resolve against the bundle.
//
// Parameters:
//   - source: the override file system, e.g. os.DirFS of a shader directory
//
// Returns:
//   - ManagerBuilderOption: a function that sets the override source
func WithSource(source fs.FS) ManagerBuilderOption {
	return func(m *manager) {
		m.override = source
	}
}

// WithWorkers sets how many workers load sources in parallel.
//
// Parameters:
//   - n: the worker count, values below 1 are raised to 1
//
// Returns:
//   - ManagerBuilderOption: a function that sets the worker count
func WithWorkers(n int) ManagerBuilderOption {
	return func(m *manager) {
		m.workers = max(n, 1)
	}
}

// WithDefine sets one pre-processor define, overriding DefaultDefines.
//
// Parameters:
//   - name: the define name referenced as ${name}
//   - value: the substituted text
//
// Returns:
//   - ManagerBuilderOption: a function that sets the define
func WithDefine(name, value string) ManagerBuilderOption {
	return func(m *manager) {
		m.defines[name] = value
	}
}

// WithBundledPrograms controls whether program sources missing from the override source resolve
// against the embedded bundle. When disabled they fall back to the built-in fallback of their
// stage kind. Include snippets always resolve against the bundle.
//
// Parameters:
//   - enabled: false to resolve program sources from the override source only
//
// Returns:
//   - ManagerBuilderOption: a function that sets the bundle lookup
func WithBundledPrograms(enabled bool) ManagerBuilderOption {
	return func(m *manager) {
		m.bundledSources = enabled
	}
}
