// Package capabilities decides from the adapter identity whether hardware ray tracing is
// available. The result is computed once at start-up and read-only afterwards.
package capabilities

import (
	"log/slog"
	"slices"
	"strings"
	"unicode"

	"github.com/Carmen-Shannon/oxy-rtx/common"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
)

// PCI vendor ids reported when the driver gives no vendor name.
const (
	vendorIDNvidia = "0x10de"
	vendorIDAMD    = "0x1002"
	vendorIDIntel  = "0x8086"
)

// Capabilities is the probed feature set of one adapter.
type Capabilities struct {
	info       gpu.AdapterInfo
	extensions map[string]bool

	hardware bool
	nvidia   bool
	amd      bool
	intel    bool
	vulkan   bool
}

// Probe inspects the adapter's vendor, renderer and extension set.
//
// Vendor specific rules: NVIDIA needs an RTX class (or GTX 16/10 high end) renderer and a ray
// tracing or mesh shader extension; AMD needs an RDNA2+ (RX 6000/7000) renderer and a ray tracing
// extension; Intel needs an Arc (DG2) renderer and a ray tracing extension. Native WebGPU ray
// query and acceleration structure features count as ray tracing extensions.
//
// Parameters:
//   - info: the adapter identity from gpu.Device.Info
//   - logger: receives the capability summary, nil for none
//
// Returns:
//   - Capabilities: the probed capabilities
func Probe(info gpu.AdapterInfo, logger *slog.Logger) Capabilities {
	logger = common.LoggerOrNop(logger)
	c := Capabilities{info: info, extensions: make(map[string]bool, len(info.Extensions))}
	for _, ext := range info.Extensions {
		c.extensions[normalize(ext)] = true
	}

	vendor := strings.ToLower(info.Vendor)
	renderer := strings.ToLower(info.Renderer)
	native := c.hasNativeRayTracing()

	if strings.Contains(vendor, "nvidia") || vendor == vendorIDNvidia {
		ext := native || c.HasExtension("GL_NV_ray_tracing", "GL_NVX_ray_tracing", "GL_NV_mesh_shader")
		rtx := containsAny(renderer, "rtx", "tesla v100")
		gtx := containsAny(renderer, "gtx 16", "gtx 1070", "gtx 1080")
		c.nvidia = ext && (rtx || gtx)
		logger.Info("nvidia ray tracing", "supported", c.nvidia, "rtx_gpu", rtx, "extensions", ext)
	}
	if containsAny(vendor, "amd", "advanced micro devices") || vendor == vendorIDAMD {
		rdna2 := containsAny(renderer, "rx 6", "rx 7")
		ext := native || c.HasExtension("GL_AMD_ray_tracing", "GL_EXT_ray_tracing")
		c.amd = rdna2 && ext
		logger.Info("amd ray tracing", "supported", c.amd, "rdna2", rdna2, "extensions", ext)
	}
	if strings.Contains(vendor, "intel") || vendor == vendorIDIntel {
		arc := containsAny(renderer, "arc", "dg2")
		ext := native || c.HasExtension("GL_INTEL_ray_tracing", "GL_EXT_ray_tracing")
		c.intel = arc && ext
		logger.Info("intel ray tracing", "supported", c.intel, "arc_gpu", arc, "extensions", ext)
	}
	c.vulkan = native || c.HasExtension("GL_EXT_ray_tracing", "GL_KHR_ray_tracing")
	c.hardware = c.nvidia || c.amd || c.intel

	logger.Info("gpu capabilities",
		"vendor", info.Vendor,
		"renderer", info.Renderer,
		"version", info.Version,
		"backend", info.Backend,
		"hardware_ray_tracing", c.hardware,
	)
	for _, ext := range info.Extensions {
		if containsAny(strings.ToLower(ext), "ray", "rtx", "mesh", "acceleration") {
			logger.Debug("ray tracing related extension", "extension", ext)
		}
	}
	return c
}

// normalize lower-cases name and drops everything but letters and digits, so "GL_EXT_ray_query"
// and "RayQuery" style feature names compare on their words.
func normalize(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func containsAny(s string, subs ...string) bool {
	return slices.ContainsFunc(subs, func(sub string) bool {
		return strings.Contains(s, sub)
	})
}

func (c Capabilities) hasNativeRayTracing() bool {
	for ext := range c.extensions {
		if strings.Contains(ext, "accelerationstructure") || ext == "rayquery" || ext == "raytracing" {
			return true
		}
	}
	return false
}

// HasExtension reports whether the adapter exposes any of the named extensions. Names compare
// case-insensitively, ignoring separators.
func (c Capabilities) HasExtension(names ...string) bool {
	for _, name := range names {
		if c.extensions[normalize(name)] {
			return true
		}
	}
	return false
}

// HardwareRayTracing reports whether a vendor hardware ray tracing path is available.
func (c Capabilities) HardwareRayTracing() bool { return c.hardware }

func (c Capabilities) NvidiaRTX() bool        { return c.nvidia }
func (c Capabilities) AMDRayTracing() bool    { return c.amd }
func (c Capabilities) IntelRayTracing() bool  { return c.intel }
func (c Capabilities) VulkanRayTracing() bool { return c.vulkan }

// Vendor returns the adapter vendor, "Unknown" if the driver reported none.
func (c Capabilities) Vendor() string {
	return common.Coalesce(c.info.Vendor, "Unknown")
}

// Renderer returns the adapter name, "Unknown" if the driver reported none.
func (c Capabilities) Renderer() string {
	return common.Coalesce(c.info.Renderer, "Unknown")
}

// Version returns the driver version description.
func (c Capabilities) Version() string {
	return common.Coalesce(c.info.Version, "Unknown")
}

// Extensions returns the adapter's extensions as reported.
func (c Capabilities) Extensions() []string {
	return slices.Clone(c.info.Extensions)
}

func (c Capabilities) MeshShaders() bool {
	return c.HasExtension("GL_NV_mesh_shader", "GL_EXT_mesh_shader")
}

func (c Capabilities) VariableRateShading() bool {
	return c.HasExtension("GL_NV_shading_rate_image", "GL_EXT_fragment_shading_rate")
}

func (c Capabilities) RayQuery() bool {
	return c.hasNativeRayTracing() || c.HasExtension("GL_EXT_ray_query", "GL_NV_ray_tracing")
}

// DLSS reports NVIDIA RTX class hardware.
func (c Capabilities) DLSS() bool {
	return c.nvidia && strings.Contains(strings.ToLower(c.info.Renderer), "rtx")
}

// FSR reports hardware FSR runs well on.
func (c Capabilities) FSR() bool {
	return c.amd || c.nvidia
}

// Mode returns "HW" when hardware ray tracing is available and "SW" otherwise.
func (c Capabilities) Mode() string {
	if c.hardware {
		return "HW"
	}
	return "SW"
}
