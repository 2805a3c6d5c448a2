// Package webgpu implements gpu.Device on top of wgpu-native through cogentcore/webgpu.
//
// The GL style command surface is mapped onto WebGPU objects: uniform blocks become program owned
// uniform buffers, texture and image units are resolved into bind groups at dispatch and draw time,
// memory barriers become queue submissions and render pipelines are created lazily per render
// target signature.
package webgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-rtx/common"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu/wgsl"
	"github.com/cogentcore/webgpu/wgpu"
)

// imageBinding is the state of one storage image unit.
type imageBinding struct {
	texture gpu.Texture
	access  gpu.ImageAccess
	format  gpu.TextureFormat
}

// Device is the wgpu-native implementation of gpu.Device.
type Device struct {
	mu     *sync.Mutex
	logger *slog.Logger

	surfaceDescriptor    *wgpu.SurfaceDescriptor
	forceFallbackAdapter bool
	presentMode          wgpu.PresentMode
	validate             bool

	instance      *wgpu.Instance
	adapter       *wgpu.Adapter
	device        *wgpu.Device
	queue         *wgpu.Queue
	surface       *wgpu.Surface
	surfaceFormat wgpu.TextureFormat
	surfaceWidth  uint32
	surfaceHeight uint32
	info          gpu.AdapterInfo

	next     uint32
	stages   map[gpu.Stage]*stageObject
	programs map[gpu.Program]*programObject
	textures map[gpu.Texture]*textureObject
	buffers  map[gpu.Buffer]*bufferObject
	targets  map[gpu.RenderTarget]*targetObject

	activeProgram  gpu.Program
	activeTarget   gpu.RenderTarget
	viewport       [4]int
	textureUnits   map[int]gpu.Texture
	imageUnits     map[int]imageBinding
	bufferBindings map[gpu.BufferKind]map[int]gpu.Buffer

	encoder         *wgpu.CommandEncoder
	usedSinceSubmit map[gpu.Program]bool
	pendingGroups   []*wgpu.BindGroup

	frameTexture *wgpu.Texture
	frameView    *wgpu.TextureView

	sampler           *wgpu.Sampler
	comparisonSampler *wgpu.Sampler

	deferred error
}

var _ gpu.Device = &Device{}

// NewDevice creates the wgpu instance, adapter, device and queue, plus the presentation surface
// when WithSurface is given. Must be called from the thread that owns the window.
//
// Parameters:
//   - options: functional options to configure the device
//
// Returns:
//   - *Device: the initialized device
//   - error: an error if no adapter or device could be acquired
func NewDevice(options ...DeviceBuilderOption) (*Device, error) {
	runtime.LockOSThread()

	d := &Device{
		mu:              &sync.Mutex{},
		presentMode:     wgpu.PresentModeImmediate,
		validate:        true,
		stages:          make(map[gpu.Stage]*stageObject),
		programs:        make(map[gpu.Program]*programObject),
		textures:        make(map[gpu.Texture]*textureObject),
		buffers:         make(map[gpu.Buffer]*bufferObject),
		targets:         make(map[gpu.RenderTarget]*targetObject),
		textureUnits:    make(map[int]gpu.Texture),
		imageUnits:      make(map[int]imageBinding),
		bufferBindings:  make(map[gpu.BufferKind]map[int]gpu.Buffer),
		usedSinceSubmit: make(map[gpu.Program]bool),
	}
	for _, opt := range options {
		opt(d)
	}
	d.logger = common.LoggerOrNop(d.logger)

	d.instance = wgpu.CreateInstance(nil)
	if d.surfaceDescriptor != nil {
		d.surface = d.instance.CreateSurface(d.surfaceDescriptor)
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallbackAdapter,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		d.releaseInstance()
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	d.adapter = a

	// Seven storage textures are bound by the lighting and denoise stages at most; the defaults allow four per stage.
	limits := wgpu.DefaultLimits()
	limits.MaxStorageTexturesPerShaderStage = 8

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "oxy-rtx device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		d.releaseInstance()
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()
	d.info = d.queryAdapterInfo()

	d.logger.Info("gpu device created",
		"vendor", d.info.Vendor,
		"renderer", d.info.Renderer,
		"backend", d.info.Backend,
	)
	return d, nil
}

// queryAdapterInfo converts the wgpu adapter identity into the device neutral form.
func (d *Device) queryAdapterInfo() gpu.AdapterInfo {
	info := d.adapter.GetInfo()
	out := gpu.AdapterInfo{
		Vendor:   info.VendorName,
		Renderer: info.Name,
		Version:  info.DriverDescription,
		Backend:  fmt.Sprint(info.BackendType),
	}
	if out.Vendor == "" {
		out.Vendor = fmt.Sprintf("0x%04x", info.VendorId)
	}
	for _, f := range d.adapter.EnumerateFeatures() {
		out.Extensions = append(out.Extensions, fmt.Sprint(f))
	}
	return out
}

// ConfigureSurface (re)configures the presentation surface for the given pixel size.
// It is a no-op for headless devices.
//
// Parameters:
//   - width: the surface width in pixels
//   - height: the surface height in pixels
func (d *Device) ConfigureSurface(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.surface == nil || width <= 0 || height <= 0 {
		return
	}

	capabilities := d.surface.GetCapabilities(d.adapter)
	d.surfaceFormat = capabilities.Formats[0]
	d.surfaceWidth = uint32(width)
	d.surfaceHeight = uint32(height)

	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      d.surfaceFormat,
		Width:       d.surfaceWidth,
		Height:      d.surfaceHeight,
		PresentMode: d.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
}

// Present submits pending work and presents the acquired surface image, if a draw into the
// default target acquired one this frame.
//
// Returns:
//   - error: the first deferred device error, if any
func (d *Device) Present() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.submit()
	if d.frameTexture != nil {
		d.surface.Present()
		d.releaseFrame()
	}
	err := d.deferred
	d.deferred = nil
	return err
}

func (d *Device) Info() gpu.AdapterInfo {
	return d.info
}

func (d *Device) handle() uint32 {
	d.next++
	return d.next
}

// fail records the first deferred error. Later errors are logged only.
func (d *Device) fail(err error) {
	d.logger.Warn("gpu command failed", "error", err)
	if d.deferred == nil {
		d.deferred = err
	}
}

// commandEncoder returns the pending command encoder, creating one if needed.
func (d *Device) commandEncoder() (*wgpu.CommandEncoder, error) {
	if d.encoder != nil {
		return d.encoder, nil
	}
	enc, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create command encoder: %w", err)
	}
	d.encoder = enc
	return enc, nil
}

// submit finishes and submits the pending encoder. Bind groups recorded into it are released.
func (d *Device) submit() {
	if d.encoder == nil {
		return
	}
	enc := d.encoder
	d.encoder = nil

	commandBuffer, err := enc.Finish(nil)
	if err != nil {
		enc.Release()
		d.fail(fmt.Errorf("failed to finish command encoder: %w", err))
	} else {
		d.queue.Submit(commandBuffer)
		commandBuffer.Release()
		enc.Release()
	}

	for _, g := range d.pendingGroups {
		g.Release()
	}
	d.pendingGroups = d.pendingGroups[:0]
	clear(d.usedSinceSubmit)
}

func (d *Device) MemoryBarrier(b gpu.Barrier) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Commands within one submission are already ordered; a submission boundary also orders
	// queue writes made after the barrier behind the work recorded before it.
	if b != 0 {
		d.submit()
	}
}

func (d *Device) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.submit()
	err := d.deferred
	d.deferred = nil
	return err
}

func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.submit()
	d.releaseFrame()

	for h, s := range d.stages {
		s.module.release()
		delete(d.stages, h)
	}
	for h, p := range d.programs {
		p.release()
		delete(d.programs, h)
	}
	for h, t := range d.textures {
		t.release()
		delete(d.textures, h)
	}
	for h, b := range d.buffers {
		b.buffer.Release()
		delete(d.buffers, h)
	}
	clear(d.targets)

	if d.sampler != nil {
		d.sampler.Release()
		d.sampler = nil
	}
	if d.comparisonSampler != nil {
		d.comparisonSampler.Release()
		d.comparisonSampler = nil
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	d.releaseInstance()
}

func (d *Device) releaseInstance() {
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.surface != nil {
		d.surface.Release()
		d.surface = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

func (d *Device) releaseFrame() {
	if d.frameView != nil {
		d.frameView.Release()
		d.frameView = nil
	}
	if d.frameTexture != nil {
		d.frameTexture.Release()
		d.frameTexture = nil
	}
}

// acquireFrame returns a view of the current surface image, acquiring one on first use in a frame.
func (d *Device) acquireFrame() (*wgpu.TextureView, error) {
	if d.frameView != nil {
		return d.frameView, nil
	}
	if d.surface == nil {
		return nil, errors.New("default render target used on a headless device")
	}

	surfaceTexture, err := d.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire surface texture: %w", err)
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, fmt.Errorf("failed to create surface view: %w", err)
	}
	d.frameTexture = surfaceTexture
	d.frameView = view
	return view, nil
}

// samplerFor returns the shared sampler for a sampler binding, creating it on first use.
func (d *Device) samplerFor(kind wgsl.ResourceKind) (*wgpu.Sampler, error) {
	if kind == wgsl.ResourceComparisonSampler {
		if d.comparisonSampler == nil {
			s, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
				AddressModeU:  wgpu.AddressModeClampToEdge,
				AddressModeV:  wgpu.AddressModeClampToEdge,
				AddressModeW:  wgpu.AddressModeClampToEdge,
				MagFilter:     wgpu.FilterModeNearest,
				MinFilter:     wgpu.FilterModeNearest,
				MipmapFilter:  wgpu.MipmapFilterModeNearest,
				LodMaxClamp:   32,
				Compare:       wgpu.CompareFunctionLessEqual,
				MaxAnisotropy: 1,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create comparison sampler: %w", err)
			}
			d.comparisonSampler = s
		}
		return d.comparisonSampler, nil
	}

	if d.sampler == nil {
		s, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
			AddressModeU:  wgpu.AddressModeClampToEdge,
			AddressModeV:  wgpu.AddressModeClampToEdge,
			AddressModeW:  wgpu.AddressModeClampToEdge,
			MagFilter:     wgpu.FilterModeNearest,
			MinFilter:     wgpu.FilterModeNearest,
			MipmapFilter:  wgpu.MipmapFilterModeNearest,
			LodMaxClamp:   32,
			MaxAnisotropy: 1,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create sampler: %w", err)
		}
		d.sampler = s
	}
	return d.sampler, nil
}
