package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-rtx/common"
	"github.com/go-gl/mathgl/mgl32"
)

// cameraImpl is an orbit camera: its position is derived from spherical coordinates around a
// target point.
type cameraImpl struct {
	mu sync.Mutex

	up     mgl32.Vec3
	target mgl32.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	radius    float32
	azimuth   float32 // around the Y axis
	elevation float32 // from the horizontal plane

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	orbitSpeed       float32 // radians per second for Advance
	mouseSensitivity float32 // radians per pixel for Drag
	zoomSpeed        float32

	position   mgl32.Vec3
	view       mgl32.Mat4
	projection mgl32.Mat4
}

// Camera produces the view and projection matrices a frame is rendered with. All methods are safe
// for concurrent use, so input callbacks may steer the camera while the render loop reads it.
type Camera interface {
	// View returns the current view matrix.
	View() mgl32.Mat4

	// Projection returns the current perspective projection matrix.
	Projection() mgl32.Mat4

	// Position returns the world-space eye position.
	Position() mgl32.Vec3

	// Target returns the point the camera orbits and looks at.
	Target() mgl32.Vec3

	// SetTarget moves the orbit pivot.
	SetTarget(target mgl32.Vec3)

	// SetViewport sets the aspect ratio from a window size. Non-positive sizes are ignored.
	//
	// Parameters:
	//   - width: viewport width in pixels
	//   - height: viewport height in pixels
	SetViewport(width, height int)

	// Aspect returns the aspect ratio (width / height).
	Aspect() float32

	// Drag orbits the camera by a mouse movement.
	//
	// Parameters:
	//   - dx: horizontal movement in pixels, positive orbits right
	//   - dy: vertical movement in pixels, positive tilts down
	Drag(dx, dy float32)

	// Zoom moves the camera towards the target. Positive delta zooms in. The radius stays within
	// its configured bounds.
	Zoom(delta float32)

	// Advance orbits the camera by the configured orbit speed over deltaTime seconds.
	Advance(deltaTime float32)

	// Radius returns the distance between the eye and the target.
	Radius() float32

	// Elevation returns the angle above the horizontal plane in radians.
	Elevation() float32
}

var _ Camera = &cameraImpl{}

// NewCamera creates an orbit camera looking at the origin.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		up:     mgl32.Vec3{0, 1, 0},
		fov:    mgl32.DegToRad(60),
		aspect: 16.0 / 9.0,
		near:   0.1,
		far:    1000,

		radius:    8,
		elevation: float32(math.Pi / 12),

		minRadius:    1,
		maxRadius:    100,
		minElevation: 0.05,
		maxElevation: float32(math.Pi/2 - 0.1),

		orbitSpeed:       0.2,
		mouseSensitivity: 0.005,
		zoomSpeed:        0.5,
	}
	for _, option := range options {
		option(c)
	}
	c.radius = common.Clamp(c.radius, c.minRadius, c.maxRadius)
	c.elevation = common.Clamp(c.elevation, c.minElevation, c.maxElevation)
	c.update()
	return c
}

// update recomputes the eye position and both matrices. Caller must hold the mutex.
func (c *cameraImpl) update() {
	cosElev := float32(math.Cos(float64(c.elevation)))
	sinElev := float32(math.Sin(float64(c.elevation)))
	cosAzim := float32(math.Cos(float64(c.azimuth)))
	sinAzim := float32(math.Sin(float64(c.azimuth)))

	c.position = c.target.Add(mgl32.Vec3{
		c.radius * cosElev * sinAzim,
		c.radius * sinElev,
		c.radius * cosElev * cosAzim,
	})
	c.view = mgl32.LookAtV(c.position, c.target, c.up)
	c.projection = mgl32.Perspective(c.fov, c.aspect, c.near, c.far)
}

func (c *cameraImpl) View() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *cameraImpl) Projection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projection
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Target() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *cameraImpl) SetTarget(target mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = target
	c.update()
}

func (c *cameraImpl) SetViewport(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = float32(width) / float32(height)
	c.update()
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Drag(dx, dy float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.azimuth -= dx * c.mouseSensitivity
	c.elevation = common.Clamp(c.elevation+dy*c.mouseSensitivity, c.minElevation, c.maxElevation)
	c.update()
}

func (c *cameraImpl) Zoom(delta float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.radius = common.Clamp(c.radius-delta*c.zoomSpeed, c.minRadius, c.maxRadius)
	c.update()
}

func (c *cameraImpl) Advance(deltaTime float32) {
	if deltaTime <= 0 || c.orbitSpeed == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.azimuth = float32(math.Mod(float64(c.azimuth+c.orbitSpeed*deltaTime), 2*math.Pi))
	c.update()
}

func (c *cameraImpl) Radius() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.radius
}

func (c *cameraImpl) Elevation() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elevation
}
