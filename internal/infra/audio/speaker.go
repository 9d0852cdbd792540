// Package audio plays cached mp3 files on the local sound device.
package audio

import (
	"math"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/crowdbox/internal/app/playback"
)

// Config represents speaker configuration.
type Config struct {
	SampleRate int
	Buffer     time.Duration
	Volume     uint8
}

// SpeakerDriver is a playback.Driver and playback.Mixer backed by beep's speaker.
type SpeakerDriver struct {
	mu sync.Mutex

	state      playback.DriverState
	sampleRate beep.SampleRate
	buffer     time.Duration
	level      uint8

	path     string
	file     *os.File
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume

	generation uint64
	onFinished func(generation uint64)
}

// NewSpeakerDriver creates a new SpeakerDriver. The sound device is opened on Start.
func NewSpeakerDriver(cfg Config) *SpeakerDriver {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 100 * time.Millisecond
	}
	return &SpeakerDriver{
		state:      playback.DriverIdle,
		sampleRate: beep.SampleRate(cfg.SampleRate),
		buffer:     cfg.Buffer,
		level:      cfg.Volume,
	}
}

// SetFile selects the next file.
func (d *SpeakerDriver) SetFile(path string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == playback.DriverClosed {
		return playback.ErrClosed
	}
	d.path = path
	return nil
}

// Start opens the sound device and plays the selected file.
func (d *SpeakerDriver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case playback.DriverClosed:
		return playback.ErrClosed
	case playback.DriverRunning:
		return errors.New("driver already running")
	}

	if err := speaker.Init(d.sampleRate, d.sampleRate.N(d.buffer)); err != nil {
		return errors.Wrap(err, "failed to initialize speaker")
	}
	d.state = playback.DriverRunning
	zlog.Info().Msgf("speaker initialized: sample_rate=%d buffer=%s", d.sampleRate, d.buffer)

	return d.playLocked()
}

// Play plays the selected file from the beginning.
func (d *SpeakerDriver) Play() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != playback.DriverRunning {
		return playback.ErrNotRunning
	}
	return d.playLocked()
}

func (d *SpeakerDriver) playLocked() error {
	if d.path == "" {
		return playback.ErrNoFile
	}
	d.releaseLocked()

	f, err := os.Open(d.path)
	if err != nil {
		return errors.Wrap(err, "failed to open audio file")
	}
	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to decode %s", d.path)
	}

	// Resample if the track's sample rate differs from the speaker's
	var playStreamer beep.Streamer = streamer
	if format.SampleRate != d.sampleRate {
		playStreamer = beep.Resample(4, format.SampleRate, d.sampleRate, streamer)
	}

	d.file = f
	d.streamer = streamer
	d.format = format
	d.ctrl = &beep.Ctrl{Streamer: playStreamer, Paused: false}
	vol, silent := levelToVolume(d.level)
	d.volume = &effects.Volume{Streamer: d.ctrl, Base: 2, Volume: vol, Silent: silent}
	d.generation++
	gen := d.generation

	speaker.Play(beep.Seq(d.volume, beep.Callback(func() {
		// The speaker lock is held here; finish on another goroutine.
		go d.onTrackEnd(gen)
	})))

	zlog.Debug().Msgf("speaker: play: path=%s duration=%s", d.path, format.SampleRate.D(streamer.Len()))
	return nil
}

// releaseLocked stops the current stream and closes its file.
func (d *SpeakerDriver) releaseLocked() {
	if d.streamer == nil {
		return
	}
	speaker.Clear()
	d.streamer.Close()
	d.file.Close()
	d.streamer = nil
	d.file = nil
	d.ctrl = nil
	d.volume = nil
}

func (d *SpeakerDriver) onTrackEnd(gen uint64) {
	d.mu.Lock()
	if gen != d.generation {
		d.mu.Unlock()
		return
	}
	d.releaseLocked()
	fn := d.onFinished
	path := d.path
	d.mu.Unlock()

	zlog.Debug().Msgf("speaker: finished: path=%s", path)
	if fn != nil {
		fn(gen)
	}
}

// Pause pauses the current file.
func (d *SpeakerDriver) Pause() error {
	return d.setPaused(true)
}

// ContinuePlay resumes a paused file.
func (d *SpeakerDriver) ContinuePlay() error {
	return d.setPaused(false)
}

func (d *SpeakerDriver) setPaused(paused bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctrl == nil {
		return playback.ErrNotRunning
	}
	speaker.Lock()
	d.ctrl.Paused = paused
	speaker.Unlock()
	return nil
}

// Stop silences the current file without firing the finished callback.
func (d *SpeakerDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.generation++
	d.releaseLocked()
	return nil
}

// PlayDuration returns the decoded position of the current file.
func (d *SpeakerDriver) PlayDuration() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := d.format.SampleRate.D(d.streamer.Position())
	speaker.Unlock()
	return pos
}

// State returns the driver state.
func (d *SpeakerDriver) State() playback.DriverState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Generation returns the generation of the last played file.
func (d *SpeakerDriver) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation
}

// OnFinished registers the completion callback.
func (d *SpeakerDriver) OnFinished(fn func(generation uint64)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onFinished = fn
}

// SetVolume sets the output level, 0 to 100.
func (d *SpeakerDriver) SetVolume(level uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == playback.DriverClosed {
		return errors.Mark(playback.ErrClosed, playback.ErrMixerUnavailable)
	}
	d.level = level
	if d.volume != nil {
		vol, silent := levelToVolume(level)
		speaker.Lock()
		d.volume.Volume = vol
		d.volume.Silent = silent
		speaker.Unlock()
	}
	return nil
}

// Close stops playback and releases the sound device.
func (d *SpeakerDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == playback.DriverClosed {
		return nil
	}
	d.generation++
	d.releaseLocked()
	if d.state == playback.DriverRunning {
		speaker.Close()
	}
	d.state = playback.DriverClosed
	return nil
}

// levelToVolume converts a 0-100 level to beep's base-2 Volume value.
// We map: 100 -> 0, 50 -> -1, 25 -> -2, 0 -> silent
func levelToVolume(level uint8) (float64, bool) {
	if level == 0 {
		return 0, true
	}
	if level >= 100 {
		return 0, false
	}
	return math.Log2(float64(level) / 100), false
}
