// Package scene feeds the ray tracing pass with scene data. A Source produces snapshots and the
// Manager keeps them packed in a GPU storage buffer.
package scene

import (
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-rtx/common"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
)

// manager is the implementation of the Manager interface.
type manager struct {
	device gpu.Device
	logger *slog.Logger
	source Source

	buffer      gpu.Buffer
	capacity    uint64
	spheres     int
	uploads     int
	initialized bool
}

// Manager owns the scene storage buffer. Update pulls the source once per frame and uploads the
// scene when it changed, growing the buffer as needed.
type Manager interface {
	// Initialize creates the scene buffer and uploads the source's first snapshot. Calling it on an
	// initialized manager is a no-op.
	//
	// Returns:
	//   - error: an error if the buffer could not be created
	Initialize() error

	// Update advances the source and uploads a changed snapshot.
	//
	// Parameters:
	//   - deltaTime: elapsed time since the last frame in seconds
	//
	// Returns:
	//   - error: an error if a larger buffer could not be created
	Update(deltaTime float32) error

	// Buffer returns the storage buffer holding the packed scene, 0 if not initialized.
	Buffer() gpu.Buffer

	// SphereCount returns the number of spheres in the last uploaded snapshot.
	SphereCount() int

	// Uploads returns the number of snapshot uploads since Initialize.
	Uploads() int

	// Cleanup releases the scene buffer. It is a no-op when not initialized.
	Cleanup()

	// IsInitialized reports whether Initialize has completed since the last Cleanup.
	IsInitialized() bool
}

var _ Manager = &manager{}

// NewManager creates a scene manager. The default source is a static demo scene.
//
// Parameters:
//   - device: the device the scene buffer lives on
//   - options: variadic list of ManagerBuilderOption functions to configure the manager
//
// Returns:
//   - Manager: the uninitialized manager
func NewManager(device gpu.Device, options ...ManagerBuilderOption) Manager {
	m := &manager{device: device}
	for _, option := range options {
		option(m)
	}
	m.logger = common.LoggerOrNop(m.logger)
	if m.source == nil {
		m.source = NewStaticSource(DefaultSpheres(), 1)
	}
	return m
}

func (m *manager) Initialize() error {
	if m.initialized {
		return nil
	}
	m.initialized = true
	m.uploads = 0
	if err := m.Update(0); err != nil {
		m.initialized = false
		return err
	}
	m.logger.Info("scene manager initialized", "spheres", m.spheres)
	return nil
}

func (m *manager) Update(deltaTime float32) error {
	if !m.initialized {
		return nil
	}
	snapshot, changed := m.source.Update(deltaTime)
	if !changed && m.buffer != 0 {
		return nil
	}

	data := Pack(snapshot)
	if err := m.reserve(uint64(len(data))); err != nil {
		return err
	}
	m.device.WriteBuffer(m.buffer, 0, data)
	m.spheres = len(snapshot.Spheres)
	m.uploads++
	m.logger.Debug("scene uploaded", "spheres", m.spheres, "bytes", len(data))
	return nil
}

// reserve makes sure the buffer holds at least size bytes. The capacity doubles on growth.
func (m *manager) reserve(size uint64) error {
	if m.buffer != 0 && size <= m.capacity {
		return nil
	}
	capacity := max(m.capacity, MinBufferSize)
	for capacity < size {
		capacity *= 2
	}

	buf, err := m.device.CreateBuffer(gpu.BufferStorage, capacity, "scene")
	if err != nil {
		return fmt.Errorf("failed to create scene buffer: %w", err)
	}
	if m.buffer != 0 {
		m.device.ReleaseBuffer(m.buffer)
	}
	m.buffer = buf
	m.capacity = capacity
	return nil
}

func (m *manager) Buffer() gpu.Buffer {
	return m.buffer
}

func (m *manager) SphereCount() int {
	return m.spheres
}

func (m *manager) Uploads() int {
	return m.uploads
}

func (m *manager) Cleanup() {
	if !m.initialized {
		return
	}
	if m.buffer != 0 {
		m.device.ReleaseBuffer(m.buffer)
	}
	m.buffer = 0
	m.capacity = 0
	m.spheres = 0
	m.initialized = false
	m.logger.Info("scene manager cleaned up")
}

func (m *manager) IsInitialized() bool {
	return m.initialized
}
