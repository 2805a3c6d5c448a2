// Package engine hosts a Renderer: it owns the frame loop, the tick loop and the window, and
// serializes every state change onto the render goroutine.
package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-rtx/common"
	"github.com/Carmen-Shannon/oxy-rtx/engine/camera"
	"github.com/Carmen-Shannon/oxy-rtx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-rtx/engine/window"
)

// Surface is the presentation side of a device. A nil Surface renders headless.
type Surface interface {
	// ConfigureSurface (re)configures the swap chain for a pixel size.
	ConfigureSurface(width, height int)

	// Present submits the frame and shows it.
	Present() error
}

// engine implements the Engine interface.
// Coordinates the tick, render and window threads.
type engine struct {
	logger *slog.Logger

	tickRateChannel chan time.Duration
	actions         chan func()

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	renderer renderer.Renderer
	camera   camera.Camera
	window   window.Window
	surface  Surface

	engineTickRate   time.Duration
	tickCallback     func(deltaTime float32)
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	titleInterval    uint64        // frames between title refreshes while Debug.ShowDebugInfo is set; 0 disables

	frames    atomic.Uint64
	debugInfo atomic.Pointer[string]
	shownInfo string
}

// Engine drives a Renderer from a window or headless. Input callbacks run on the window thread;
// everything that touches the renderer is queued and applied between frames on the render
// goroutine.
type Engine interface {
	// Run starts the tick and render loops and blocks until the window closes or Quit is called.
	// Without a window it blocks until Quit.
	Run()

	// Quit signals all engine goroutines to stop. Safe to call multiple times.
	Quit()

	// Enqueue schedules action to run on the render goroutine before the next frame. Actions
	// queued after Quit are dropped.
	//
	// Parameters:
	//   - action: the function to run
	Enqueue(action func())

	// SetTickRate sets the tick rate in ticks per second. The change takes effect immediately if
	// the engine is running.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick, off the render goroutine.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional frame rate cap. Pass 0 to uncap the render loop.
	SetRenderFrameLimit(fps float64)

	// Frames returns the number of frames rendered since Run.
	Frames() uint64

	Renderer() renderer.Renderer
	Camera() camera.Camera
	Window() window.Window
}

var _ Engine = &engine{}

// NewEngine creates an Engine around an initialized renderer and wires the window callbacks.
//
// Parameters:
//   - r: the renderer frames are produced with
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(r renderer.Renderer, options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		actions:         make(chan func(), 64),
		quitChannel:     make(chan struct{}),
		renderer:        r,
		engineTickRate:  time.Second / 60,
		titleInterval:   30,
	}
	for _, opt := range options {
		opt(e)
	}
	e.logger = common.LoggerOrNop(e.logger)
	if e.camera == nil {
		e.camera = camera.NewCamera()
	}

	if e.window != nil {
		e.wireWindow()
	}
	return e
}

// wireWindow connects window input to the camera and queues renderer changes.
func (e *engine) wireWindow() {
	e.camera.SetViewport(e.window.Width(), e.window.Height())

	e.window.SetResizeCallback(func(width, height int) {
		e.camera.SetViewport(width, height)
		e.Enqueue(func() { e.resize(width, height) })
	})
	e.window.SetScrollCallback(e.camera.Zoom)
	e.window.SetDragCallback(e.camera.Drag)
	e.window.SetKeyDownCallback(e.handleKey)
	e.window.SetUpdateCallback(e.refreshTitle)
}

// resize reconfigures the surface and the renderer. Runs on the render goroutine.
func (e *engine) resize(width, height int) {
	if e.surface != nil {
		e.surface.ConfigureSurface(width, height)
	}
	e.renderer.OnWindowResize(width, height)
}

// handleKey maps the demo key bindings.
func (e *engine) handleKey(keyCode uint32) {
	switch keyCode {
	case common.KeyR:
		e.Enqueue(func() { e.renderer.ToggleRayTracing() })
	case common.KeyT:
		e.Enqueue(func() { e.renderer.PostProcessing().ResetTemporalAccumulation() })
	case common.KeyF5:
		e.renderer.RequestReload()
	case common.KeyF3:
		e.Enqueue(func() { e.logger.Info(e.renderer.DebugInfo()) })
	}
}

// refreshTitle shows the latest debug line in the title bar. Runs on the window thread.
func (e *engine) refreshTitle() {
	info := e.debugInfo.Load()
	if info == nil || *info == e.shownInfo {
		return
	}
	e.shownInfo = *info
	e.window.SetTitle(e.shownInfo)
}

func (e *engine) Run() {
	e.running.Store(true)
	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
	e.running.Store(false)
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) Enqueue(action func()) {
	select {
	case <-e.quitChannel:
	case e.actions <- action:
	}
}

// handle launches the tick and render goroutines.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate tick loop. It advances the camera and fires the tick callback.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			e.camera.Advance(dt)
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop. A panic that escapes the
// renderer stops the engine instead of crashing the process.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("render goroutine recovered from panic", "panic", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		e.drainActions()

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		e.renderer.Render(e.camera.View(), e.camera.Projection(), dt)
		if e.surface != nil {
			if err := e.surface.Present(); err != nil {
				e.logger.Error("present failed", "err", err)
			}
		}

		n := e.frames.Add(1)
		if e.titleInterval > 0 && n%e.titleInterval == 1 && e.renderer.Config().Debug.ShowDebugInfo {
			info := e.renderer.DebugInfo()
			e.debugInfo.Store(&info)
		}

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(lastRender); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// drainActions runs every queued action without blocking.
func (e *engine) drainActions() {
	for {
		select {
		case action := <-e.actions:
			action()
		default:
			return
		}
	}
}

func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}
	// Replace a pending update rather than block.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) Frames() uint64 {
	return e.frames.Load()
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) Window() window.Window {
	return e.window
}
