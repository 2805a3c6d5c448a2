package config

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.False(t, c.EnableRayTracing)
	assert.Equal(t, 3, c.MaxRayBounces)
	assert.Equal(t, 4, c.SamplesPerPixel)
	assert.Equal(t, float32(128), c.RayTracingDistance)
	assert.Equal(t, 16, c.GlobalIllumination.Samples)
	assert.Equal(t, float32(0.8), c.AmbientOcclusion.Strength)
	assert.Equal(t, 8, c.Shadows.Samples)
	assert.False(t, c.EnableTemporalUpsampling, "upscaling is opt-in")
	assert.Equal(t, 100, c.RenderScale)
	assert.True(t, c.HDR)
}

func TestClampingSetters(t *testing.T) {
	c := Default()

	c.SetMaxRayBounces(0)
	assert.Equal(t, 1, c.MaxRayBounces)
	c.SetMaxRayBounces(99)
	assert.Equal(t, 10, c.MaxRayBounces)

	c.SetSamplesPerPixel(-5)
	assert.Equal(t, 1, c.SamplesPerPixel)
	c.SetSamplesPerPixel(1000)
	assert.Equal(t, 64, c.SamplesPerPixel)
}

func TestScaledSize(t *testing.T) {
	c := Default()
	c.RenderScale = 50
	w, h := c.ScaledSize(1000, 800)
	assert.Equal(t, 500, w)
	assert.Equal(t, 400, h)

	c.RenderScale = 1
	w, h = c.ScaledSize(10, 10)
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)

	c.RenderScale = 0
	w, h = c.ScaledSize(640, 480)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
}

func TestToggleRayTracing(t *testing.T) {
	c := Default()
	assert.True(t, c.ToggleRayTracing())
	assert.False(t, c.ToggleRayTracing())
}

func TestLevel(t *testing.T) {
	c := Default()
	c.LogLevel = "debug"
	l, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)

	c.LogLevel = "loud"
	_, err = c.Level()
	assert.Error(t, err)
	assert.Error(t, c.Validate())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"rtx.toml", "rtx.yaml", "rtx.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			c := Default()
			c.EnableRayTracing = true
			c.SetSamplesPerPixel(16)
			c.RenderScale = 75
			c.Reflections.Quality = 2
			c.ShaderDir = "/tmp/shaders"
			require.NoError(t, c.Save(path))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, c, loaded)
		})
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtx.toml")
	require.NoError(t, os.WriteFile(path, []byte("max_ray_bounces = 50\nhdr = false\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, c.MaxRayBounces, "validation clamps loaded values")
	assert.False(t, c.HDR)
	assert.Equal(t, 4, c.SamplesPerPixel)
	assert.Equal(t, 16, c.GlobalIllumination.Samples)
}

func TestLoadYAMLSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtx.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enable_temporal_upsampling: true\nshadows:\n  samples: 2\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.True(t, c.EnableTemporalUpsampling)
	assert.Equal(t, 2, c.Shadows.Samples)
	assert.True(t, c.Shadows.Enabled)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	c, err := Load(filepath.Join(dir, "missing.toml"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, Default(), c)

	c, err = LoadOrDefault(filepath.Join(dir, "missing.toml"))
	assert.NoError(t, err)
	assert.Equal(t, Default(), c)

	_, err = Load(filepath.Join(dir, "rtx.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("max_ray_bounces = ["), 0o644))
	c, err = Load(bad)
	assert.Error(t, err)
	assert.Equal(t, Default(), c)
}
