package webgpu

import (
	"log/slog"

	"github.com/cogentcore/webgpu/wgpu"
)

// DeviceBuilderOption is a functional option for configuring a Device.
// Use the With* functions to create options.
type DeviceBuilderOption func(d *Device)

// WithSurface sets the window surface the default render target presents to.
// Without a surface the device is headless and DefaultTarget draws are dropped.
//
// Parameters:
//   - desc: the platform surface descriptor, e.g. from window.Window.SurfaceDescriptor
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithSurface(desc *wgpu.SurfaceDescriptor) DeviceBuilderOption {
	return func(d *Device) {
		d.surfaceDescriptor = desc
	}
}

// WithForceFallbackAdapter requests the software fallback adapter.
//
// Parameters:
//   - force: true to force the fallback adapter
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithForceFallbackAdapter(force bool) DeviceBuilderOption {
	return func(d *Device) {
		d.forceFallbackAdapter = force
	}
}

// WithVSync selects FIFO presentation instead of immediate presentation.
//
// Parameters:
//   - vsync: true to present on vertical blank
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithVSync(vsync bool) DeviceBuilderOption {
	return func(d *Device) {
		if vsync {
			d.presentMode = wgpu.PresentModeFifo
		} else {
			d.presentMode = wgpu.PresentModeImmediate
		}
	}
}

// WithValidation toggles CPU side WGSL validation before shader modules are created.
// Validation is on by default and produces readable compile diagnostics.
//
// Parameters:
//   - validate: false to hand sources straight to the driver
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithValidation(validate bool) DeviceBuilderOption {
	return func(d *Device) {
		d.validate = validate
	}
}

// WithLogger sets the logger used for device diagnostics.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) DeviceBuilderOption {
	return func(d *Device) {
		d.logger = logger
	}
}
