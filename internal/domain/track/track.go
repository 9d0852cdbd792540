// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies the provider a track is fetched from.
type Source string

const (
	SourceCache   Source = "CACHE"
	SourceSpotify Source = "SPOTIFY"
	SourceYouTube Source = "YOUTUBE"
)

// ParseSource parses a source name case-insensitively.
func ParseSource(s string) (Source, bool) {
	switch Source(strings.ToUpper(strings.TrimSpace(s))) {
	case SourceCache:
		return SourceCache, true
	case SourceSpotify:
		return SourceSpotify, true
	case SourceYouTube:
		return SourceYouTube, true
	default:
		return "", false
	}
}

// State represents the lifecycle state of a track.
type State int

const (
	StateQueued      State = iota // Waiting for the download pipeline
	StateDownloading              // Fetch in progress
	StateReady                    // Cached and playable (or paused when current)
	StatePlaying                  // Handed to the playback driver
	StateFailed                   // Fetch or cache write failed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateDownloading:
		return "downloading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Track represents a queued or playing audio item.
type Track struct {
	ID             string        // Stable key, also the cache file name
	Title          string        // Track title
	Singer         string        // Performing artist
	Duration       time.Duration // Track duration
	Source         Source        // Provider the audio comes from
	State          State         // Lifecycle state
	RandomlyChosen bool          // Picked by the random cache fallback
	RequestedBy    string        // Caller that enqueued the track (empty for random picks)
}

// String implements fmt.Stringer for log output.
func (t Track) String() string {
	return fmt.Sprintf("%s - %s [%s]", strings.TrimSpace(t.Singer), strings.TrimSpace(t.Title), t.ID)
}

// FormatDuration formats a duration as HH:MM:SS, wrapping at 24 hours.
func FormatDuration(d time.Duration) string {
	secs := int64(d/time.Second) % (24 * 60 * 60)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}

// ParseDuration parses an HH:MM:SS string produced by FormatDuration.
func ParseDuration(s string) (time.Duration, error) {
	var h, m, sec int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d:%d", &h, &m, &sec); err != nil {
		return 0, err
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

// PlayerState is a read-only snapshot of the jukebox.
type PlayerState struct {
	Queue        []Track       // Tracks waiting to be played, in play order
	CurrentTrack *Track        // Playing or paused track (nil when idle)
	Volume       uint8         // Volume level (20-100)
	PlayDuration time.Duration // Elapsed play time of the current track
}

// Clone returns a copy of the track that does not alias the original.
func (t *Track) Clone() *Track {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Copy returns value copies of the given tracks.
func Copy(tracks []*Track) []Track {
	result := make([]Track, len(tracks))
	for i, t := range tracks {
		result[i] = *t
	}
	return result
}
