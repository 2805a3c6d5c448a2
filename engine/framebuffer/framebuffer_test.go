package framebuffer

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-rtx/engine/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameBuffer_CreateAllocatesFiveAttachments(t *testing.T) {
	tests := []struct {
		hdr   bool
		color gpu.TextureFormat
	}{
		{hdr: true, color: gpu.FormatRGBA16F},
		{hdr: false, color: gpu.FormatRGBA8},
	}
	for _, tt := range tests {
		d := gputest.NewDevice()
		fb := New(d, 640, 360, tt.hdr)
		require.NoError(t, fb.Create())

		assert.True(t, fb.IsCreated())
		assert.NotZero(t, fb.Target())
		_, _, textures, _, targets := d.Live()
		assert.Equal(t, 5, textures)
		assert.Equal(t, 1, targets)

		want := map[Attachment]gpu.TextureFormat{
			Color:    tt.color,
			Normal:   gpu.FormatRGB16F,
			Material: gpu.FormatRGBA8,
			Motion:   gpu.FormatRG16F,
			Depth:    gpu.FormatDepth32F,
		}
		for a, format := range want {
			desc, ok := d.TextureDesc(fb.Texture(a))
			require.True(t, ok, a.String())
			assert.Equal(t, format, desc.Format, a.String())
			assert.Equal(t, 640, desc.Width)
			assert.Equal(t, 360, desc.Height)
		}
	}
}

func TestFrameBuffer_CreateIsIdempotent(t *testing.T) {
	d := gputest.NewDevice()
	fb := New(d, 8, 8, true)
	require.NoError(t, fb.Create())
	require.NoError(t, fb.Create())

	_, _, textures, _, targets := d.Live()
	assert.Equal(t, 5, textures)
	assert.Equal(t, 1, targets)
}

func TestFrameBuffer_IncompleteReleasesPartialAllocations(t *testing.T) {
	d := gputest.NewDevice()
	d.FailRenderTarget = errors.New("attachment size mismatch")
	fb := New(d, 8, 8, true)

	err := fb.Create()
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Contains(t, err.Error(), "attachment size mismatch")

	assert.False(t, fb.IsCreated())
	_, _, textures, _, targets := d.Live()
	assert.Zero(t, textures)
	assert.Zero(t, targets)
	assert.Equal(t, 5, d.Released["texture"])
	for _, a := range Attachments {
		assert.Zero(t, fb.Texture(a))
	}
}

func TestFrameBuffer_InvalidSize(t *testing.T) {
	d := gputest.NewDevice()
	require.Error(t, New(d, 0, 8, true).Create())
	_, _, textures, _, _ := d.Live()
	assert.Zero(t, textures)
}

func TestFrameBuffer_BindSetsTargetAndViewport(t *testing.T) {
	d := gputest.NewDevice()
	fb := New(d, 320, 200, true)
	require.NoError(t, fb.Create())

	fb.Bind()
	assert.Equal(t, fb.Target(), d.ActiveTarget)
	assert.Equal(t, [][4]int{{0, 0, 320, 200}}, d.Viewports)

	fb.Clear()
	assert.Equal(t, 1, d.Clears)
	assert.Equal(t, 1, d.Writes(fb.ColorTexture()))

	fb.Unbind()
	assert.Equal(t, gpu.DefaultTarget, d.ActiveTarget)
}

func TestFrameBuffer_BindBeforeCreateIsRefused(t *testing.T) {
	d := gputest.NewDevice()
	New(d, 8, 8, true).Bind()
	assert.Empty(t, d.TargetBinds)
}

func TestFrameBuffer_BindTextures(t *testing.T) {
	d := gputest.NewDevice()
	fb := New(d, 8, 8, true)
	require.NoError(t, fb.Create())

	fb.BindAllTextures(3)
	assert.Equal(t, fb.ColorTexture(), d.TextureUnits[3])
	assert.Equal(t, fb.NormalTexture(), d.TextureUnits[4])
	assert.Equal(t, fb.MaterialTexture(), d.TextureUnits[5])
	assert.Equal(t, fb.MotionTexture(), d.TextureUnits[6])
	assert.Equal(t, fb.DepthTexture(), d.TextureUnits[7])

	fb.BindDepthTexture(0)
	fb.BindMotionTexture(1)
	assert.Equal(t, fb.DepthTexture(), d.TextureUnits[0])
	assert.Equal(t, fb.MotionTexture(), d.TextureUnits[1])
}

func TestFrameBuffer_DeleteIsIdempotent(t *testing.T) {
	d := gputest.NewDevice()
	fb := New(d, 8, 8, false, WithLabel("history"))
	require.NoError(t, fb.Create())

	fb.Delete()
	fb.Delete()

	assert.False(t, fb.IsCreated())
	assert.Equal(t, 5, d.Released["texture"])
	assert.Equal(t, 1, d.Released["render_target"])
	assert.Zero(t, d.DoubleReleases)
	assert.Equal(t, 8, fb.Width())
	assert.Equal(t, 8, fb.Height())
	assert.False(t, fb.HDR())
}

func TestAttachmentString(t *testing.T) {
	assert.Equal(t, "material", Material.String())
	assert.Equal(t, "Attachment(9)", Attachment(9).String())
	assert.Equal(t, gpu.FormatUndefined, Attachment(9).Format(true))
}
