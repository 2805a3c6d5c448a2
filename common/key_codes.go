package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyR     = 82  // R key (ASCII), toggles ray tracing in the demo host
	KeyT     = 84  // T key (ASCII), resets temporal accumulation in the demo host
	KeySpace = 32  // Spacebar (ASCII)
	KeyEsc   = 256 // Escape key (GLFW)
)

// Function keys
const (
	KeyF3 = 292 // F3 (GLFW), prints renderer debug info
	KeyF5 = 294 // F5 (GLFW), reloads shaders
)
