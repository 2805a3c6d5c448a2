// Command oxy-rtx opens a window and renders the built-in sphere scene with the ray tracing
// renderer.
//
// Keys: R toggles ray tracing, T resets temporal accumulation, F3 logs the debug line, F5 reloads
// shaders, Esc quits. Drag with the left mouse button to orbit and scroll to zoom.
package main

import (
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"

	"github.com/Carmen-Shannon/oxy-rtx/engine"
	"github.com/Carmen-Shannon/oxy-rtx/engine/camera"
	"github.com/Carmen-Shannon/oxy-rtx/engine/config"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu/webgpu"
	"github.com/Carmen-Shannon/oxy-rtx/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-rtx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-rtx/engine/window"
	"github.com/go-gl/mathgl/mgl32"
)

func main() {
	configPath := flag.String("config", "oxy-rtx.toml", "renderer config file (.toml, .yaml or .yml)")
	writeConfig := flag.Bool("write-config", false, "write the effective config back to -config and exit")
	width := flag.Int("width", 1280, "initial window width")
	height := flag.Int("height", 720, "initial window height")
	vsync := flag.Bool("vsync", true, "wait for vertical sync when presenting")
	upscale := flag.Bool("upscale", false, "enable the upscaling pass, overriding the config")
	flag.Parse()

	cfg, cfgErr := config.LoadOrDefault(*configPath)
	level, err := cfg.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	if cfgErr != nil {
		logger.Warn("using default config", "path", *configPath, "err", cfgErr)
	}

	if *upscale {
		cfg.EnableTemporalUpsampling = true
	}

	if *writeConfig {
		if err := cfg.Save(*configPath); err != nil {
			logger.Error("failed to write config", "path", *configPath, "err", err)
			os.Exit(1)
		}
		logger.Info("config written", "path", *configPath)
		return
	}

	if err := run(cfg, logger, *width, *height, *vsync); err != nil {
		logger.Error("oxy-rtx exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, width, height int, vsync bool) error {
	win, err := window.NewWindow(
		window.WithLogger(logger),
		window.WithTitle("Oxy RTX"),
		window.WithSize(width, height),
	)
	if err != nil {
		return err
	}
	defer win.Close()

	device, err := webgpu.NewDevice(
		webgpu.WithSurface(win.SurfaceDescriptor()),
		webgpu.WithVSync(vsync),
		webgpu.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer device.Release()
	device.ConfigureSurface(win.Width(), win.Height())

	if cfg.ShaderDir != "" {
		if _, err := os.Stat(cfg.ShaderDir); errors.Is(err, fs.ErrNotExist) {
			logger.Warn("shader directory not found, using bundled shaders", "dir", cfg.ShaderDir)
			cfg.ShaderDir = ""
		}
	}

	r := renderer.NewRenderer(device, cfg,
		renderer.WithLogger(logger),
		renderer.WithWindowSize(win.Width(), win.Height()),
		renderer.WithCompositor(pipeline.NewBackBufferCompositor(device)),
	)
	if err := r.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := r.Cleanup(); err != nil {
			logger.Error("renderer cleanup failed", "err", err)
		}
	}()
	if !cfg.EnableRayTracing {
		logger.Info("ray tracing is disabled, press R to enable it")
	}

	eng := engine.NewEngine(r,
		engine.WithLogger(logger),
		engine.WithWindow(win),
		engine.WithSurface(device),
		engine.WithTickRate(60),
		engine.WithCamera(camera.NewCamera(
			camera.WithTarget(mgl32.Vec3{0, 0.5, -1}),
			camera.WithOrbit(6, 0, 0.3),
			camera.WithOrbitSpeed(0.15),
		)),
	)
	eng.Run()
	return nil
}
