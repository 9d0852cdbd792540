package playback

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrMixerUnavailable = errors.New("mixer unavailable")
	ErrNoFile           = errors.New("no file set")
	ErrNotRunning       = errors.New("driver not running")
	ErrClosed           = errors.New("driver closed")
)

// Driver plays one audio file at a time. Exactly one instance exists per process.
//
// The finished callback fires once when a file plays to its end, with the
// generation of that file. It is never invoked while the driver holds internal
// locks, so it may call back into the driver. By the time it runs another file
// may already be playing; callers compare the generation to tell.
type Driver interface {
	// SetFile selects the file played by the next Start or Play.
	// duration is the expected length, used by drivers that cannot decode audio.
	SetFile(path string, duration time.Duration) error
	// Start moves an idle driver to running and plays the selected file.
	Start() error
	// Play plays the selected file from the beginning, replacing any current one.
	Play() error
	// Pause pauses the current file. It returns ErrNotRunning when no file is loaded.
	Pause() error
	// ContinuePlay resumes a paused file. It returns ErrNotRunning when no file is loaded.
	ContinuePlay() error
	// Stop silences the current file without firing the finished callback.
	Stop() error
	// PlayDuration returns how long the current file has been playing, excluding pauses.
	PlayDuration() time.Duration
	// State returns the driver lifecycle state.
	State() DriverState
	// Generation identifies the file started by the last Start or Play.
	Generation() uint64
	// OnFinished registers the callback fired when a file ends naturally.
	OnFinished(fn func(generation uint64))
	// Close shuts the driver down.
	Close() error
}

// Mixer controls the output volume.
type Mixer interface {
	// SetVolume sets the level, 0 to 100.
	SetVolume(level uint8) error
}
