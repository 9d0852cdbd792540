package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// TimerDriver is a headless Driver that "plays" a file for its expected
// duration using wall-clock timers. It also implements Mixer.
type TimerDriver struct {
	mu sync.Mutex

	state    DriverState
	path     string
	duration time.Duration
	volume   uint8

	playing       bool
	startTime     time.Time
	pausedAt      *time.Time
	pausedElapsed time.Duration

	timerCancel func()
	generation  uint64 // invalidates timers of replaced files
	tick        time.Duration
	onFinished  func(generation uint64)
}

// NewTimerDriver creates a new TimerDriver. tick is the timer resolution; zero means 100ms.
func NewTimerDriver(tick time.Duration) *TimerDriver {
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	return &TimerDriver{
		state:  DriverIdle,
		volume: 100,
		tick:   tick,
	}
}

// SetFile selects the next file.
func (d *TimerDriver) SetFile(path string, duration time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == DriverClosed {
		return ErrClosed
	}
	d.path = path
	d.duration = duration
	return nil
}

// Start moves the driver to running and plays the selected file.
func (d *TimerDriver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case DriverClosed:
		return ErrClosed
	case DriverRunning:
		return errors.New("driver already running")
	}
	d.state = DriverRunning
	return d.playLocked()
}

// Play plays the selected file from the beginning.
func (d *TimerDriver) Play() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != DriverRunning {
		return ErrNotRunning
	}
	return d.playLocked()
}

func (d *TimerDriver) playLocked() error {
	if d.path == "" {
		return ErrNoFile
	}

	d.stopTimerLocked()
	d.generation++
	d.playing = true
	d.startTime = toWallTime(time.Now())
	d.pausedAt = nil
	d.pausedElapsed = 0
	d.startTrackTimerLocked(d.duration)

	zlog.Debug().Msgf("timer driver: play: path=%s duration=%s", d.path, d.duration)
	return nil
}

// Pause pauses the current file.
func (d *TimerDriver) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.playing {
		return ErrNotRunning
	}
	if d.pausedAt != nil {
		return nil
	}

	d.stopTimerLocked()
	now := toWallTime(time.Now())
	d.pausedAt = &now
	return nil
}

// ContinuePlay resumes a paused file.
func (d *TimerDriver) ContinuePlay() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.playing {
		return ErrNotRunning
	}
	if d.pausedAt == nil {
		return nil
	}

	d.pausedElapsed += toWallTime(time.Now()).Sub(*d.pausedAt)
	d.pausedAt = nil

	remaining := d.duration - d.elapsedLocked()
	if remaining < 0 {
		remaining = 0
	}
	d.startTrackTimerLocked(remaining)
	return nil
}

// Stop silences the current file.
func (d *TimerDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopTimerLocked()
	d.generation++
	d.playing = false
	d.pausedAt = nil
	d.pausedElapsed = 0
	return nil
}

// PlayDuration returns the elapsed play time of the current file.
func (d *TimerDriver) PlayDuration() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.playing {
		return 0
	}
	return d.elapsedLocked()
}

func (d *TimerDriver) elapsedLocked() time.Duration {
	now := toWallTime(time.Now())
	elapsed := now.Sub(d.startTime) - d.pausedElapsed
	if d.pausedAt != nil {
		elapsed -= now.Sub(*d.pausedAt)
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Playing reports whether a file is loaded and not stopped.
func (d *TimerDriver) Playing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

// Paused reports whether the current file is paused.
func (d *TimerDriver) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pausedAt != nil
}

// State returns the driver state.
func (d *TimerDriver) State() DriverState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Generation returns the generation of the last played file.
func (d *TimerDriver) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation
}

// OnFinished registers the completion callback.
func (d *TimerDriver) OnFinished(fn func(generation uint64)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onFinished = fn
}

// SetVolume records the level. The timer driver has no audio output.
func (d *TimerDriver) SetVolume(level uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == DriverClosed {
		return errors.Mark(ErrClosed, ErrMixerUnavailable)
	}
	d.volume = level
	return nil
}

// Volume returns the last level set.
func (d *TimerDriver) Volume() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

// Close stops playback and shuts the driver down.
func (d *TimerDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopTimerLocked()
	d.generation++
	d.playing = false
	d.state = DriverClosed
	return nil
}

func (d *TimerDriver) stopTimerLocked() {
	if d.timerCancel != nil {
		d.timerCancel()
		d.timerCancel = nil
	}
}

func (d *TimerDriver) startTrackTimerLocked(duration time.Duration) {
	d.stopTimerLocked()
	gen := d.generation
	d.timerCancel = d.startWallClockTimer(duration, func() {
		d.onTrackEnd(gen)
	})
}

// onTrackEnd fires the finished callback unless the file was replaced meanwhile.
func (d *TimerDriver) onTrackEnd(gen uint64) {
	d.mu.Lock()
	if gen != d.generation || !d.playing || d.pausedAt != nil {
		d.mu.Unlock()
		return
	}
	d.playing = false
	d.timerCancel = nil
	fn := d.onFinished
	path := d.path
	d.mu.Unlock()

	zlog.Debug().Msgf("timer driver: finished: path=%s", path)
	if fn != nil {
		fn(gen)
	}
}

// startWallClockTimer starts a timer that triggers callback after duration, using wall clock.
// Returns a cancel function.
func (d *TimerDriver) startWallClockTimer(duration time.Duration, callback func()) func() {
	ctx, cancel := context.WithCancel(context.Background())

	// Use manual wall clock calculation to avoid monotonic clock drift issues
	endTime := toWallTime(time.Now()).Add(duration)
	go func() {
		ticker := time.NewTicker(d.tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !toWallTime(time.Now()).Before(endTime) {
					callback()
					return
				}
			}
		}
	}()

	return cancel
}

// toWallTime returns the time with monotonic clock stripped.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
