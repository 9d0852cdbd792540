package audio

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/crowdbox/internal/app/playback"
)

func TestLevelToVolume(t *testing.T) {
	tests := []struct {
		level      uint8
		wantVolume float64
		wantSilent bool
	}{
		{level: 0, wantVolume: 0, wantSilent: true},
		{level: 25, wantVolume: -2},
		{level: 50, wantVolume: -1},
		{level: 100, wantVolume: 0},
		{level: 200, wantVolume: 0},
	}

	for _, tt := range tests {
		vol, silent := levelToVolume(tt.level)
		assert.InDelta(t, tt.wantVolume, vol, 1e-9, "level %d", tt.level)
		assert.Equal(t, tt.wantSilent, silent, "level %d", tt.level)
	}
}

// The sound device is never opened here; only pre-start behaviour is exercised.
func TestSpeakerDriver_BeforeStart(t *testing.T) {
	d := NewSpeakerDriver(Config{Volume: 80})

	var _ playback.Driver = d
	var _ playback.Mixer = d

	assert.Equal(t, playback.DriverIdle, d.State())
	assert.ErrorIs(t, d.Play(), playback.ErrNotRunning)
	require.NoError(t, d.SetFile("/tmp/a.mp3", time.Minute))
	require.NoError(t, d.SetVolume(40))
	assert.Equal(t, time.Duration(0), d.PlayDuration())
	assert.ErrorIs(t, d.Pause(), playback.ErrNotRunning, "nothing loaded")
	assert.ErrorIs(t, d.ContinuePlay(), playback.ErrNotRunning)
	assert.Equal(t, uint64(0), d.Generation())
	require.NoError(t, d.Stop())
	assert.Equal(t, uint64(1), d.Generation(), "stop invalidates the loaded file")

	require.NoError(t, d.Close())
	assert.Equal(t, playback.DriverClosed, d.State())
	assert.ErrorIs(t, d.SetFile("/tmp/b.mp3", 0), playback.ErrClosed)
	assert.True(t, errors.Is(d.SetVolume(10), playback.ErrMixerUnavailable))
}
