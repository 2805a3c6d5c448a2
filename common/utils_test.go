package common

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoalesce(t *testing.T) {
	assert.Equal(t, 3, Coalesce(0, 0, 3, 4))
	assert.Equal(t, "a", Coalesce("", "a"))
	assert.Equal(t, 0, Coalesce[int]())
}

func TestCeilDiv(t *testing.T) {
	cases := []struct {
		n, d, want uint32
	}{
		{1920, 16, 120},
		{1080, 16, 68},
		{16, 16, 1},
		{17, 16, 2},
		{0, 16, 0},
		{5, 0, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CeilDiv(c.n, c.d), "CeilDiv(%d, %d)", c.n, c.d)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 10, Clamp(42, 1, 10))
	assert.Equal(t, 1, Clamp(-3, 1, 10))
	assert.InDelta(t, 0.5, Clamp(0.5, 0.0, 1.0), 1e-9)
}

func TestNopLogger(t *testing.T) {
	l := NopLogger()
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
	assert.NotPanics(t, func() { l.Info("dropped", "k", 1) })

	custom := slog.Default()
	assert.Same(t, custom, LoggerOrNop(custom))
	assert.NotNil(t, LoggerOrNop(nil))
}
