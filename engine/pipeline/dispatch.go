// Package pipeline sequences the compute and graphics passes of a frame: the ray tracing pass
// that fills the G-buffer and the post-processing chain that refines it.
package pipeline

import "github.com/Carmen-Shannon/oxy-rtx/common"

// TileSize is the width and height in pixels of one compute work-group. Every compute program the
// pipelines dispatch declares @workgroup_size(16, 16).
const TileSize = 16

// DispatchSize computes the work-group grid covering a width x height image.
//
// Parameters:
//   - width: image width in pixels
//   - height: image height in pixels
//
// Returns:
//   - x: number of work-group columns
//   - y: number of work-group rows
func DispatchSize(width, height int) (x, y uint32) {
	return common.CeilDiv(uint32(max(width, 0)), TileSize), common.CeilDiv(uint32(max(height, 0)), TileSize)
}
