package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-rtx/common"
	"github.com/Carmen-Shannon/oxy-rtx/engine/config"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-rtx/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSurface struct {
	presents   atomic.Int64
	configured atomic.Int64
}

func (s *countingSurface) ConfigureSurface(width, height int) { s.configured.Add(1) }
func (s *countingSurface) Present() error {
	s.presents.Add(1)
	return nil
}

// panickingRenderer panics on every frame.
type panickingRenderer struct {
	renderer.Renderer
}

func (panickingRenderer) Render(mgl32.Mat4, mgl32.Mat4, float32) {
	panic("boom")
}

func newTestRenderer(t *testing.T) renderer.Renderer {
	t.Helper()
	cfg := config.Default()
	cfg.EnableRayTracing = true
	r := renderer.NewRenderer(gputest.NewDevice(), cfg, renderer.WithWindowSize(32, 32))
	require.NoError(t, r.Initialize())
	t.Cleanup(func() { _ = r.Cleanup() })
	return r
}

// start runs e in the background and returns a channel closed when Run returns.
func start(e Engine) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestEngine_HeadlessRendersUntilQuit(t *testing.T) {
	surface := &countingSurface{}
	e := NewEngine(newTestRenderer(t), WithSurface(surface), WithRenderFrameLimit(1000))
	done := start(e)

	require.Eventually(t, func() bool { return e.Frames() >= 3 }, 5*time.Second, time.Millisecond)
	e.Quit()
	e.Quit()
	waitDone(t, done)

	assert.GreaterOrEqual(t, surface.presents.Load(), int64(3))
	assert.Equal(t, int64(e.Frames()), surface.presents.Load())
}

func TestEngine_ActionsRunOnRenderGoroutineInOrder(t *testing.T) {
	e := NewEngine(newTestRenderer(t), WithRenderFrameLimit(1000))
	done := start(e)
	defer func() {
		e.Quit()
		waitDone(t, done)
	}()

	eng := e.(*engine)
	results := make(chan bool, 1)
	eng.handleKey(common.KeyR)
	e.Enqueue(func() { results <- e.Renderer().Config().EnableRayTracing })

	select {
	case enabled := <-results:
		assert.False(t, enabled, "R toggles ray tracing off")
	case <-time.After(5 * time.Second):
		t.Fatal("queued action never ran")
	}
}

func TestEngine_ResizeReachesRendererAndSurface(t *testing.T) {
	surface := &countingSurface{}
	e := NewEngine(newTestRenderer(t), WithSurface(surface), WithRenderFrameLimit(1000))
	done := start(e)
	defer func() {
		e.Quit()
		waitDone(t, done)
	}()

	width := make(chan int, 1)
	e.Enqueue(func() { e.(*engine).resize(100, 60) })
	e.Enqueue(func() { width <- e.Renderer().PrimaryBuffer().Width() })

	select {
	case w := <-width:
		assert.Equal(t, 100, w)
	case <-time.After(5 * time.Second):
		t.Fatal("queued action never ran")
	}
	assert.Equal(t, int64(1), surface.configured.Load())
}

func TestEngine_RenderPanicStopsEngine(t *testing.T) {
	e := NewEngine(panickingRenderer{newTestRenderer(t)})
	done := start(e)
	waitDone(t, done)
	assert.Zero(t, e.Frames())
}

func TestEngine_EnqueueAfterQuitIsDropped(t *testing.T) {
	e := NewEngine(newTestRenderer(t))
	e.Quit()
	assert.NotPanics(t, func() {
		for range 100 {
			e.Enqueue(func() {})
		}
	})
}

func TestEngine_TickAdvancesCamera(t *testing.T) {
	e := NewEngine(newTestRenderer(t), WithTickRate(500), WithRenderFrameLimit(200))
	ticks := atomic.Int64{}
	e.SetTickCallback(func(float32) { ticks.Add(1) })
	before := e.Camera().Position()

	done := start(e)
	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, 5*time.Second, time.Millisecond)
	e.Quit()
	waitDone(t, done)

	assert.NotEqual(t, before, e.Camera().Position())
}
