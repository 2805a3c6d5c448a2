package camera

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestCamera_PositionFromOrbit(t *testing.T) {
	c := NewCamera(WithOrbit(10, 0, 0.05), WithTarget(mgl32.Vec3{1, 0, 0}))

	pos := c.Position()
	assert.InDelta(t, 10, pos.Sub(c.Target()).Len(), 1e-4)
	assert.InDelta(t, 1, pos.X(), 1e-4, "azimuth 0 places the eye on +Z")
	assert.Greater(t, pos.Z(), float32(9))
}

func TestCamera_ViewLooksAtTarget(t *testing.T) {
	c := NewCamera(WithOrbit(5, 0.7, 0.3))
	target := c.View().Mul4x1(c.Target().Vec4(1))

	assert.InDelta(t, 0, target.X(), 1e-4)
	assert.InDelta(t, 0, target.Y(), 1e-4)
	assert.InDelta(t, -5, target.Z(), 1e-4, "the target sits on the view axis")
}

func TestCamera_ZoomIsClamped(t *testing.T) {
	c := NewCamera(WithOrbit(5, 0, 0.3), WithRadiusLimits(2, 10), WithZoomSpeed(1))

	c.Zoom(2)
	assert.InDelta(t, 3, c.Radius(), 1e-6)
	c.Zoom(100)
	assert.InDelta(t, 2, c.Radius(), 1e-6)
	c.Zoom(-100)
	assert.InDelta(t, 10, c.Radius(), 1e-6)
}

func TestCamera_DragClampsElevation(t *testing.T) {
	c := NewCamera(WithMouseSensitivity(0.01))

	c.Drag(0, 10_000)
	assert.InDelta(t, math.Pi/2-0.1, c.Elevation(), 1e-5)
	c.Drag(0, -10_000)
	assert.InDelta(t, 0.05, c.Elevation(), 1e-5)
}

func TestCamera_SetViewport(t *testing.T) {
	c := NewCamera()
	before := c.Projection()

	c.SetViewport(1000, 500)
	assert.InDelta(t, 2, c.Aspect(), 1e-6)
	assert.NotEqual(t, before, c.Projection())

	c.SetViewport(0, 500)
	assert.InDelta(t, 2, c.Aspect(), 1e-6, "empty sizes are ignored")
}

func TestCamera_Advance(t *testing.T) {
	c := NewCamera(WithOrbitSpeed(1))
	start := c.Position()

	c.Advance(0)
	assert.Equal(t, start, c.Position())
	c.Advance(0.5)
	assert.NotEqual(t, start, c.Position())
	assert.InDelta(t, c.Radius(), c.Position().Sub(c.Target()).Len(), 1e-4)
}
