package framebuffer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
)

// Attachment is the semantic role of one frame buffer attachment.
type Attachment int

const (
	// Color holds the shaded color, HDR when the buffer is HDR.
	Color Attachment = iota

	// Normal holds the encoded surface normal in rgb and linear depth in alpha.
	Normal

	// Material packs roughness, metallic, ambient occlusion and emission.
	Material

	// Motion holds screen space motion vectors.
	Motion

	// Depth holds depth.
	Depth

	attachmentCount
)

// Attachments lists every role in unit order.
var Attachments = [attachmentCount]Attachment{Color, Normal, Material, Motion, Depth}

func (a Attachment) String() string {
	switch a {
	case Color:
		return "color"
	case Normal:
		return "normal"
	case Material:
		return "material"
	case Motion:
		return "motion"
	case Depth:
		return "depth"
	default:
		return fmt.Sprintf("Attachment(%d)", int(a))
	}
}

// Format returns the pixel format of the attachment.
//
// Parameters:
//   - hdr: whether the color attachment is high dynamic range
//
// Returns:
//   - gpu.TextureFormat: the attachment's format
func (a Attachment) Format(hdr bool) gpu.TextureFormat {
	switch a {
	case Color:
		if hdr {
			return gpu.FormatRGBA16F
		}
		return gpu.FormatRGBA8
	case Normal:
		return gpu.FormatRGB16F
	case Material:
		return gpu.FormatRGBA8
	case Motion:
		return gpu.FormatRG16F
	case Depth:
		return gpu.FormatDepth32F
	default:
		return gpu.FormatUndefined
	}
}
