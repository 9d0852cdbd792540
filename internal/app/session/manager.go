// Package session provides the jukebox orchestrator that owns the queue and the current track.
package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/crowdbox/internal/app/download"
	"github.com/osa030/crowdbox/internal/app/filter"
	"github.com/osa030/crowdbox/internal/app/notification"
	"github.com/osa030/crowdbox/internal/app/playback"
	"github.com/osa030/crowdbox/internal/app/provider"
	"github.com/osa030/crowdbox/internal/app/vote"
	"github.com/osa030/crowdbox/internal/domain/track"
	"github.com/osa030/crowdbox/internal/infra/cache"
	"github.com/osa030/crowdbox/internal/infra/config"
)

var (
	ErrTrackNotFound = errors.New("track not found in queue")
	ErrTrackRejected = errors.New("track rejected")
	ErrInvalidTrack  = errors.New("invalid track")
	ErrClosed        = errors.New("session closed")
)

// Volume bounds applied by SetVolume.
const (
	MinVolume = 20
	MaxVolume = 100
)

// RejectedError carries the admission filter code of a rejected enqueue.
type RejectedError struct {
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("track rejected: code=%s", e.Code)
}

// Manager owns the queue, the current track and the vote set.
//
// A single mutex guards all of them. Every mutation publishes its
// notification before the lock is released, so observers run under the
// lock and must not call back into the Manager.
type Manager struct {
	mu sync.Mutex

	// Configuration
	config *config.Config

	// Components
	gateway     *provider.Gateway
	store       *cache.Store
	driver      playback.Driver
	mixer       playback.Mixer
	pipeline    *download.Pipeline
	votes       *vote.Controller
	hub         *notification.Hub
	filterChain *filter.Chain
	random      func(n int) int

	// State
	queue   []*track.Track
	current *track.Track
	playGen uint64 // driver generation of current, 0 when nothing plays
	volume  uint8
	closed  bool
	done    chan struct{}
}

// NewManager creates a new Manager and registers it as the driver's completion callback.
func NewManager(
	cfg *config.Config,
	gw *provider.Gateway,
	store *cache.Store,
	drv playback.Driver,
	opts ...Option,
) (*Manager, error) {
	if cfg == nil || gw == nil || store == nil || drv == nil {
		return nil, errors.New("config, gateway, store and driver are required")
	}

	m := &Manager{
		config:      cfg,
		gateway:     gw,
		store:       store,
		driver:      drv,
		votes:       vote.NewController(vote.Config{Required: cfg.Vote.RequiredVotes, RandomRequired: cfg.Vote.RandomRequiredVotes}, cfg),
		hub:         notification.NewHub(),
		filterChain: filter.NewChain(),
		queue:       make([]*track.Track, 0),
		volume:      clampVolume(cfg.Volume.Initial),
		done:        make(chan struct{}),
	}
	if mixer, ok := drv.(playback.Mixer); ok {
		m.mixer = mixer
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.random == nil {
		m.random = newRandom()
	}

	m.setupFilters()

	m.pipeline = download.NewPipeline(download.Config{
		Workers:    cfg.Download.Workers,
		RatePerSec: cfg.Download.RatePerSec,
		Timeout:    time.Duration(cfg.Download.TimeoutSec) * time.Second,
	}, gw, store, m)

	drv.OnFinished(m.onTrackFinished)

	return m, nil
}

// setupFilters initializes the filter chain.
func (m *Manager) setupFilters() {
	cfg := m.config

	// DuplicateTrackFilter keeps the queue free of repeated ids and is always on
	m.filterChain.Add(filter.NewDuplicateTrackFilter())

	for _, name := range []string{"caller_pending_filter", "duration_limit_filter"} {
		if !cfg.IsFilterEnabled(name) {
			continue
		}
		factory, ok := filter.GetRegistered()[name]
		if !ok {
			continue
		}
		f := factory()
		if err := f.ValidateConfig(cfg.GetFilterSettings(name)); err != nil {
			zlog.Error().Msgf("failed to validate filter config: filter=%s error=%v", name, err)
			continue
		}
		m.filterChain.Add(f)
		zlog.Info().Msgf("filter enabled: filter=%s", name)
	}
}

// Start applies the initial volume and starts playback if anything is playable.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.applyVolumeLocked()
	return m.advanceLocked()
}

// Done is closed when the Manager is closed.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Hub returns the notification hub.
func (m *Manager) Hub() *notification.Hub {
	return m.hub
}

// Pipeline returns the download pipeline.
func (m *Manager) Pipeline() *download.Pipeline {
	return m.pipeline
}

// Enqueue appends t to the queue and schedules its download.
// t.RequestedBy identifies the caller for admission filters.
func (m *Manager) Enqueue(ctx context.Context, t track.Track) error {
	if t.ID == "" {
		return errors.Wrap(ErrInvalidTrack, "track id is required")
	}
	src, ok := track.ParseSource(string(t.Source))
	if !ok {
		return errors.Wrapf(ErrInvalidTrack, "unknown source %q", t.Source)
	}
	t.Source = src

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	result := m.filterChain.Execute(ctx, filter.Request{
		Track:   t,
		Caller:  t.RequestedBy,
		Queue:   m.queueLocked(),
		Current: m.current,
	})
	if !result.Accepted {
		zlog.Info().Msgf("enqueue rejected: track_id=%s caller=%s code=%s", t.ID, t.RequestedBy, result.Code)
		return errors.Mark(&RejectedError{Code: result.Code, Message: m.config.GetMessage(result.Code)}, ErrTrackRejected)
	}

	t.State = track.StateQueued
	t.RandomlyChosen = false
	queued := t
	m.queue = append(m.queue, &queued)
	zlog.Info().Msgf("enqueue accepted: track_id=%s source=%s title=%s caller=%s queue_size=%d",
		t.ID, t.Source, t.Title, t.RequestedBy, len(m.queue))

	if !m.pipeline.Submit(t) {
		zlog.Debug().Msgf("download coalesced with in-flight job: track_id=%s", t.ID)
	}
	m.hub.PublishPlaylist(m.queueLocked())
	return nil
}

// Reorder moves a queued track to target. Out-of-range targets are clamped:
// negative moves it to the front, past the end moves it to the back.
func (m *Manager) Reorder(trackID string, target int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexLocked(trackID)
	if idx < 0 {
		return errors.Wrapf(ErrTrackNotFound, "track_id=%s", trackID)
	}

	t := m.queue[idx]
	m.queue = slices.Delete(m.queue, idx, idx+1)
	target = max(0, min(target, len(m.queue)))
	m.queue = slices.Insert(m.queue, target, t)

	zlog.Info().Msgf("reorder: track_id=%s from=%d to=%d", trackID, idx, target)
	m.hub.PublishPlaylist(m.queueLocked())
	return nil
}

// Snapshot returns the current player state.
func (m *Manager) Snapshot() track.PlayerState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := track.PlayerState{
		Queue:        m.queueLocked(),
		CurrentTrack: m.current.Clone(),
		Volume:       m.volume,
	}
	if m.current != nil {
		state.PlayDuration = m.driver.PlayDuration()
	}
	return state
}

// Toggle pauses a playing current track or resumes a paused one.
// It is a no-op when nothing is current.
func (m *Manager) Toggle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toggleLocked()
}

// toggleLocked leaves the current track untouched when the driver refuses,
// e.g. the file already ended and its finish callback is waiting for the lock.
func (m *Manager) toggleLocked() {
	if m.current == nil {
		return
	}

	switch m.current.State {
	case track.StatePlaying:
		if err := m.driver.Pause(); err != nil {
			zlog.Warn().Msgf("pause failed: track_id=%s error=%v", m.current.ID, err)
			return
		}
		m.current.State = track.StateReady
		zlog.Info().Msgf("paused: track_id=%s", m.current.ID)
	case track.StateReady:
		if err := m.driver.ContinuePlay(); err != nil {
			zlog.Warn().Msgf("resume failed: track_id=%s error=%v", m.current.ID, err)
			return
		}
		m.current.State = track.StatePlaying
		zlog.Info().Msgf("resumed: track_id=%s", m.current.ID)
	default:
		return
	}
	m.hub.PublishCurrentTrack(m.current)
}

// SetVolume clamps level to [MinVolume, MaxVolume], forwards it to the mixer
// and publishes it. Mixer failures are logged, not returned.
func (m *Manager) SetVolume(level int) uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.volume = clampVolume(level)
	m.applyVolumeLocked()
	m.hub.PublishVolume(m.volume)
	return m.volume
}

func (m *Manager) applyVolumeLocked() {
	if m.mixer == nil {
		zlog.Warn().Msgf("volume not applied: level=%d error=%v", m.volume, playback.ErrMixerUnavailable)
		return
	}
	if err := m.mixer.SetVolume(m.volume); err != nil {
		zlog.Warn().Msgf("volume not applied: level=%d error=%v", m.volume, errors.Mark(err, playback.ErrMixerUnavailable))
	}
}

func clampVolume(level int) uint8 {
	return uint8(max(MinVolume, min(level, MaxVolume)))
}

// Vote registers a skip vote from caller and advances when the threshold is reached.
func (m *Manager) Vote(caller string) (vote.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := m.votes.Register(caller, m.current)
	if result.Status != vote.StatusSkipped {
		return result, nil
	}

	zlog.Info().Msgf("skip by vote: track_id=%s votes=%d", m.current.ID, result.Votes)
	if err := m.advanceLocked(); err != nil {
		return result, err
	}
	return result, nil
}

// Advance moves to the next playable track.
func (m *Manager) Advance() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.advanceLocked()
}

// Search looks up candidate tracks from the provider serving source.
func (m *Manager) Search(ctx context.Context, source track.Source, query string) ([]track.Track, error) {
	return m.gateway.Search(ctx, source, query)
}

// SourceName returns the display name configured for source.
func (m *Manager) SourceName(source track.Source) string {
	return m.gateway.DisplayName(source)
}

// onTrackFinished is the driver completion callback. A finish reported for
// a file that is no longer current (it was skipped or stopped while the
// callback waited for the lock) is ignored.
func (m *Manager) onTrackFinished(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if m.current == nil || gen != m.playGen {
		zlog.Debug().Msgf("stale finish ignored: generation=%d current=%d", gen, m.playGen)
		return
	}
	zlog.Info().Msgf("track finished: track_id=%s title=%s", m.current.ID, m.current.Title)
	if err := m.advanceLocked(); err != nil {
		zlog.Error().Msgf("advance after finish failed: %v", err)
	}
}

// advanceLocked selects the next track and hands it to the driver.
// Must be called with lock held.
func (m *Manager) advanceLocked() error {
	if m.closed {
		return ErrClosed
	}

	next, fromQueue := m.nextReadyLocked()
	if next == nil && len(m.queue) == 0 {
		next = m.chooseRandomLocked()
	}

	purged := m.purgeFailedLocked()
	if fromQueue || purged {
		m.hub.PublishPlaylist(m.queueLocked())
	}

	if next == nil {
		if m.current != nil {
			zlog.Info().Msgf("nothing to play: track_id=%s stopped", m.current.ID)
			if err := m.driver.Stop(); err != nil {
				zlog.Warn().Msgf("stop failed: %v", err)
			}
			m.votes.Reset()
			m.current = nil
			m.playGen = 0
			m.hub.PublishCurrentTrack(nil)
		}
		return nil
	}

	return m.playTrackLocked(next)
}

// nextReadyLocked removes and returns the first Ready track of the queue.
func (m *Manager) nextReadyLocked() (*track.Track, bool) {
	for i, t := range m.queue {
		if t.State == track.StateReady {
			m.queue = slices.Delete(m.queue, i, i+1)
			return t, true
		}
	}
	return nil, false
}

// purgeFailedLocked drops Failed tracks and reports whether any were dropped.
func (m *Manager) purgeFailedLocked() bool {
	before := len(m.queue)
	m.queue = slices.DeleteFunc(m.queue, func(t *track.Track) bool {
		if t.State == track.StateFailed {
			zlog.Info().Msgf("purged failed track: track_id=%s title=%s", t.ID, t.Title)
			return true
		}
		return false
	})
	return len(m.queue) != before
}

// chooseRandomLocked picks a uniformly random cached track, or nil if the cache is empty.
func (m *Manager) chooseRandomLocked() *track.Track {
	cacheProvider := m.gateway.Cache()
	if cacheProvider == nil {
		return nil
	}

	candidates, err := cacheProvider.Search(context.Background(), "")
	if err != nil {
		zlog.Warn().Msgf("random pick failed: %v", err)
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}

	t := candidates[m.random(len(candidates))]
	t.State = track.StateReady
	t.Source = track.SourceCache
	t.RandomlyChosen = true
	zlog.Debug().Msgf("random pick: track_id=%s candidates=%d", t.ID, len(candidates))
	return &t
}

// playTrackLocked makes t current and hands it to the driver.
func (m *Manager) playTrackLocked(t *track.Track) error {
	m.votes.Reset()
	m.current = t
	m.playGen = 0

	if err := m.driver.SetFile(m.store.Path(t.ID), t.Duration); err != nil {
		return m.playFailedLocked(t, err)
	}

	switch state := m.driver.State(); state {
	case playback.DriverIdle:
		if err := m.driver.Start(); err != nil {
			return m.playFailedLocked(t, err)
		}
	case playback.DriverRunning:
		if err := m.driver.Play(); err != nil {
			return m.playFailedLocked(t, err)
		}
	default:
		m.current = nil
		err := errors.AssertionFailedf("playback driver in unexpected state: state=%s track_id=%s", state, t.ID)
		zlog.Error().Msgf("invariant violation: %v", err)
		return err
	}

	m.playGen = m.driver.Generation()
	t.State = track.StatePlaying
	zlog.Info().Msgf("play now: track_id=%s title=%s singer=%s random=%t", t.ID, t.Title, t.Singer, t.RandomlyChosen)
	m.hub.PublishCurrentTrack(m.current)
	return nil
}

func (m *Manager) playFailedLocked(t *track.Track, err error) error {
	zlog.Error().Msgf("playback failed: track_id=%s error=%v", t.ID, err)
	m.current = nil
	m.hub.PublishCurrentTrack(nil)
	return errors.Wrapf(err, "failed to play track %s", t.ID)
}

// Close stops the pipeline and the driver.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.done)
	m.mu.Unlock()

	// Workers may be blocked on the lock in a Reporter call.
	m.pipeline.Close()
	if err := m.driver.Close(); err != nil {
		zlog.Warn().Msgf("driver close failed: %v", err)
	}
	m.hub.Close()
}

func (m *Manager) queueLocked() []track.Track {
	return track.Copy(m.queue)
}

func (m *Manager) indexLocked(id string) int {
	return slices.IndexFunc(m.queue, func(t *track.Track) bool { return t.ID == id })
}
