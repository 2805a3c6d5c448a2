package scene

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// HeaderSize is the byte size of the scene header: sphere count and sky intensity, padded to 16.
	HeaderSize = 16

	// SphereSize is the byte size of one packed sphere: three vec4<f32>.
	SphereSize = 48

	// MinBufferSize is the smallest scene buffer. A runtime sized array needs at least one element.
	MinBufferSize = HeaderSize + SphereSize
)

// Sphere is one ray traced primitive.
type Sphere struct {
	Center    mgl32.Vec3
	Radius    float32
	Albedo    mgl32.Vec3
	Roughness float32
	Emission  mgl32.Vec3
	Metallic  float32
}

// Snapshot is the scene state uploaded for one frame.
type Snapshot struct {
	Spheres []Sphere

	// SkyIntensity scales the sky light. Values <= 0 are treated as 1 by the shader.
	SkyIntensity float32
}

// Pack encodes a snapshot with the layout of the Scene struct in scene.wgsl. All values are
// little-endian. The result is never shorter than MinBufferSize.
//
// Parameters:
//   - s: the snapshot to encode
//
// Returns:
//   - []byte: the encoded scene
func Pack(s Snapshot) []byte {
	size := max(HeaderSize+SphereSize*len(s.Spheres), MinBufferSize)
	out := make([]byte, 0, size)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(s.Spheres)))
	out = appendFloats(out, s.SkyIntensity, 0, 0)
	for _, sp := range s.Spheres {
		out = appendFloats(out,
			sp.Center[0], sp.Center[1], sp.Center[2], sp.Radius,
			sp.Albedo[0], sp.Albedo[1], sp.Albedo[2], sp.Roughness,
			sp.Emission[0], sp.Emission[1], sp.Emission[2], sp.Metallic,
		)
	}
	return out[:size]
}

func appendFloats(out []byte, values ...float32) []byte {
	for _, v := range values {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

// DefaultSpheres returns the demo scene: a ground sphere, three material samples and an area light.
func DefaultSpheres() []Sphere {
	return []Sphere{
		{Center: mgl32.Vec3{0, -1000.5, 0}, Radius: 1000, Albedo: mgl32.Vec3{0.5, 0.5, 0.5}, Roughness: 1},
		{Center: mgl32.Vec3{0, 0, -1}, Radius: 0.5, Albedo: mgl32.Vec3{0.8, 0.3, 0.3}, Roughness: 0.9},
		{Center: mgl32.Vec3{-1.1, 0, -1}, Radius: 0.5, Albedo: mgl32.Vec3{0.8, 0.8, 0.8}, Roughness: 0.05, Metallic: 1},
		{Center: mgl32.Vec3{1.1, 0, -1}, Radius: 0.5, Albedo: mgl32.Vec3{0.8, 0.6, 0.2}, Roughness: 0.3, Metallic: 1},
		{Center: mgl32.Vec3{0, 3, -1}, Radius: 0.75, Albedo: mgl32.Vec3{1, 1, 1}, Emission: mgl32.Vec3{6, 5.5, 5}},
	}
}
