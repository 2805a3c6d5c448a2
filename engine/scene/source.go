package scene

import "sync"

// Source feeds scene data to the Manager. The manager treats snapshots as opaque upload data.
type Source interface {
	// Update advances the source by one frame.
	//
	// Parameters:
	//   - deltaTime: elapsed time since the last frame in seconds
	//
	// Returns:
	//   - Snapshot: the current scene
	//   - bool: true if the scene changed since the previous call and must be uploaded
	Update(deltaTime float32) (Snapshot, bool)
}

// StaticSource is a Source that changes only when Set is called. It is safe to Set from another
// goroutine while the renderer updates.
type StaticSource struct {
	mu      sync.Mutex
	current Snapshot
	dirty   bool
}

var _ Source = &StaticSource{}

// NewStaticSource creates a source holding spheres. The first Update reports a change.
//
// Parameters:
//   - spheres: the initial scene
//   - skyIntensity: the sky light scale
//
// Returns:
//   - *StaticSource: the source
func NewStaticSource(spheres []Sphere, skyIntensity float32) *StaticSource {
	return &StaticSource{
		current: Snapshot{Spheres: spheres, SkyIntensity: skyIntensity},
		dirty:   true,
	}
}

// Set replaces the scene. The next Update reports a change.
func (s *StaticSource) Set(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = snapshot
	s.dirty = true
}

func (s *StaticSource) Update(float32) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := s.dirty
	s.dirty = false
	return s.current, changed
}
