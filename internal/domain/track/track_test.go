package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{
			name:     "zero",
			duration: 0,
			expected: "00:00:00",
		},
		{
			name:     "under a minute",
			duration: 42 * time.Second,
			expected: "00:00:42",
		},
		{
			name:     "typical song",
			duration: 3*time.Minute + 7*time.Second,
			expected: "00:03:07",
		},
		{
			name:     "over an hour",
			duration: time.Hour + 2*time.Minute + 3*time.Second,
			expected: "01:02:03",
		},
		{
			name:     "sub-second part is truncated",
			duration: 59*time.Second + 900*time.Millisecond,
			expected: "00:00:59",
		},
		{
			name:     "wraps at one day",
			duration: 25 * time.Hour,
			expected: "01:00:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDuration(tt.duration))
		})
	}
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("01:02:03")
	require.NoError(t, err)
	assert.Equal(t, time.Hour+2*time.Minute+3*time.Second, d)

	_, err = ParseDuration("garbage")
	assert.Error(t, err)
}

func TestParseSource(t *testing.T) {
	tests := []struct {
		input    string
		expected Source
		ok       bool
	}{
		{input: "cache", expected: SourceCache, ok: true},
		{input: "SPOTIFY", expected: SourceSpotify, ok: true},
		{input: " YouTube ", expected: SourceYouTube, ok: true},
		{input: "soundcloud", expected: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			src, ok := ParseSource(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, src)
		})
	}
}

func TestTrack_Clone(t *testing.T) {
	orig := &Track{ID: "a", Title: "Song", State: StateReady}
	c := orig.Clone()
	c.State = StatePlaying

	assert.Equal(t, StateReady, orig.State)
	assert.Equal(t, "a", c.ID)

	var nilTrack *Track
	assert.Nil(t, nilTrack.Clone())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "queued", StateQueued.String())
	assert.Equal(t, "downloading", StateDownloading.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "playing", StatePlaying.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(99).String())
}
