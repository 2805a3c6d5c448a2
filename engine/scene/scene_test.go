package scene

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu/gputest"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatAt(b []byte, offset int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[offset:]))
}

func TestPack_EmptySceneHasMinimumSize(t *testing.T) {
	data := Pack(Snapshot{SkyIntensity: 1})
	assert.Len(t, data, MinBufferSize)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(data))
	assert.Equal(t, float32(1), floatAt(data, 4))
}

func TestPack_Layout(t *testing.T) {
	s := Snapshot{
		SkyIntensity: 0.5,
		Spheres: []Sphere{
			{Center: mgl32.Vec3{1, 2, 3}, Radius: 4},
			{Albedo: mgl32.Vec3{0.1, 0.2, 0.3}, Roughness: 0.7, Emission: mgl32.Vec3{5, 6, 7}, Metallic: 1},
		},
	}
	data := Pack(s)
	require.Len(t, data, HeaderSize+2*SphereSize)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data))

	first := HeaderSize
	assert.Equal(t, float32(1), floatAt(data, first))
	assert.Equal(t, float32(4), floatAt(data, first+12))

	second := HeaderSize + SphereSize
	assert.Equal(t, float32(0.7), floatAt(data, second+28))
	assert.Equal(t, float32(5), floatAt(data, second+32))
	assert.Equal(t, float32(1), floatAt(data, second+44))
}

func TestManager_InitializeUploadsDefaultScene(t *testing.T) {
	d := gputest.NewDevice()
	m := NewManager(d)
	require.NoError(t, m.Initialize())
	require.NoError(t, m.Initialize())

	assert.True(t, m.IsInitialized())
	assert.NotZero(t, m.Buffer())
	assert.Equal(t, len(DefaultSpheres()), m.SphereCount())
	assert.Equal(t, 1, m.Uploads())
	_, _, _, buffers, _ := d.Live()
	assert.Equal(t, 1, buffers)
}

func TestManager_UpdateUploadsOnlyChanges(t *testing.T) {
	d := gputest.NewDevice()
	src := NewStaticSource(nil, 1)
	m := NewManager(d, WithSource(src))
	require.NoError(t, m.Initialize())
	first := m.Buffer()

	require.NoError(t, m.Update(0.016))
	assert.Equal(t, 1, m.Uploads())

	src.Set(Snapshot{Spheres: make([]Sphere, 10), SkyIntensity: 1})
	require.NoError(t, m.Update(0.016))
	assert.Equal(t, 2, m.Uploads())
	assert.Equal(t, 10, m.SphereCount())
	assert.NotEqual(t, first, m.Buffer(), "growing the scene replaces the buffer")
	assert.Equal(t, 1, d.Released["buffer"])
}

func TestManager_Cleanup(t *testing.T) {
	d := gputest.NewDevice()
	m := NewManager(d)
	m.Cleanup()
	require.NoError(t, m.Initialize())
	m.Cleanup()
	m.Cleanup()

	assert.False(t, m.IsInitialized())
	assert.Zero(t, m.Buffer())
	assert.Equal(t, 1, d.Released["buffer"])
	assert.Zero(t, d.DoubleReleases)
	assert.NoError(t, m.Update(0.016))
}
