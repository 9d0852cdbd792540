package playback

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tick = 2 * time.Millisecond

func TestTimerDriver_Lifecycle(t *testing.T) {
	d := NewTimerDriver(tick)
	assert.Equal(t, DriverIdle, d.State())

	assert.ErrorIs(t, d.Play(), ErrNotRunning)
	assert.ErrorIs(t, d.Start(), ErrNoFile)

	require.NoError(t, d.SetFile("a.mp3", time.Hour))
	require.NoError(t, d.Start())
	assert.Equal(t, DriverRunning, d.State())
	assert.Error(t, d.Start(), "second start must fail")

	require.NoError(t, d.Close())
	assert.Equal(t, DriverClosed, d.State())
	assert.ErrorIs(t, d.SetFile("b.mp3", time.Second), ErrClosed)
	assert.True(t, errors.Is(d.SetVolume(50), ErrMixerUnavailable))
}

func TestTimerDriver_FinishedCallback(t *testing.T) {
	d := NewTimerDriver(tick)
	defer d.Close()

	var finished atomic.Int32
	d.OnFinished(func(uint64) { finished.Add(1) })

	require.NoError(t, d.SetFile("a.mp3", 20*time.Millisecond))
	require.NoError(t, d.Start())

	require.Eventually(t, func() bool { return finished.Load() == 1 }, time.Second, tick)
	assert.False(t, d.Playing())
	assert.Equal(t, time.Duration(0), d.PlayDuration())
	assert.Equal(t, DriverRunning, d.State(), "driver keeps running between files")

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), finished.Load(), "callback fires once per file")
}

func TestTimerDriver_CallbackMayReenter(t *testing.T) {
	d := NewTimerDriver(tick)
	defer d.Close()

	var plays atomic.Int32
	d.OnFinished(func(uint64) {
		if plays.Add(1) < 3 {
			_ = d.SetFile("next.mp3", 5*time.Millisecond)
			_ = d.Play()
		}
	})

	require.NoError(t, d.SetFile("a.mp3", 5*time.Millisecond))
	require.NoError(t, d.Start())

	require.Eventually(t, func() bool { return plays.Load() == 3 }, time.Second, tick)
}

func TestTimerDriver_ReplacingFileCancelsOldTimer(t *testing.T) {
	d := NewTimerDriver(tick)
	defer d.Close()

	var finished atomic.Int32
	d.OnFinished(func(uint64) { finished.Add(1) })

	require.NoError(t, d.SetFile("a.mp3", 30*time.Millisecond))
	require.NoError(t, d.Start())
	require.NoError(t, d.SetFile("b.mp3", time.Hour))
	require.NoError(t, d.Play())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), finished.Load())
	assert.True(t, d.Playing())
}

func TestTimerDriver_PauseAndContinue(t *testing.T) {
	d := NewTimerDriver(tick)
	defer d.Close()

	var finished atomic.Int32
	d.OnFinished(func(uint64) { finished.Add(1) })

	require.NoError(t, d.SetFile("a.mp3", 40*time.Millisecond))
	require.NoError(t, d.Start())
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, d.Pause())
	assert.True(t, d.Paused())
	atPause := d.PlayDuration()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), finished.Load(), "paused file must not finish")
	assert.InDelta(t, float64(atPause), float64(d.PlayDuration()), float64(2*time.Millisecond))

	require.NoError(t, d.ContinuePlay())
	assert.False(t, d.Paused())
	require.Eventually(t, func() bool { return finished.Load() == 1 }, time.Second, tick)
}

func TestTimerDriver_StopSuppressesCallback(t *testing.T) {
	d := NewTimerDriver(tick)
	defer d.Close()

	var finished atomic.Int32
	d.OnFinished(func(uint64) { finished.Add(1) })

	require.NoError(t, d.SetFile("a.mp3", 20*time.Millisecond))
	require.NoError(t, d.Start())
	require.NoError(t, d.Stop())

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), finished.Load())
	assert.False(t, d.Playing())
}

func TestTimerDriver_PauseWithoutFile(t *testing.T) {
	d := NewTimerDriver(tick)
	defer d.Close()

	assert.ErrorIs(t, d.Pause(), ErrNotRunning)
	assert.ErrorIs(t, d.ContinuePlay(), ErrNotRunning)

	done := make(chan struct{})
	d.OnFinished(func(uint64) { close(done) })
	require.NoError(t, d.SetFile("a.mp3", 5*time.Millisecond))
	require.NoError(t, d.Start())
	<-done

	assert.ErrorIs(t, d.Pause(), ErrNotRunning, "file already ended")
	assert.ErrorIs(t, d.ContinuePlay(), ErrNotRunning)
}

func TestTimerDriver_GenerationPerFile(t *testing.T) {
	d := NewTimerDriver(tick)
	defer d.Close()

	gens := make(chan uint64, 2)
	d.OnFinished(func(gen uint64) { gens <- gen })

	require.NoError(t, d.SetFile("a.mp3", 5*time.Millisecond))
	require.NoError(t, d.Start())
	first := d.Generation()
	assert.Equal(t, first, <-gens)

	require.NoError(t, d.SetFile("b.mp3", 5*time.Millisecond))
	require.NoError(t, d.Play())
	second := d.Generation()
	assert.Greater(t, second, first)
	assert.Equal(t, second, <-gens)
}

func TestTimerDriver_Volume(t *testing.T) {
	d := NewTimerDriver(tick)
	assert.Equal(t, uint8(100), d.Volume())
	require.NoError(t, d.SetVolume(40))
	assert.Equal(t, uint8(40), d.Volume())
}

func TestDriverState_String(t *testing.T) {
	assert.Equal(t, "idle", DriverIdle.String())
	assert.Equal(t, "running", DriverRunning.String())
	assert.Equal(t, "closed", DriverClosed.String())
	assert.Equal(t, "unknown", DriverState(9).String())
}
