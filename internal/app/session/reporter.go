package session

import (
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/crowdbox/internal/domain/track"
)

// TrackDownloading implements download.Reporter.
func (m *Manager) TrackDownloading(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.findLocked(id)
	if t == nil || t.State != track.StateQueued {
		return
	}
	t.State = track.StateDownloading
	m.hub.PublishPlaylist(m.queueLocked())
}

// TrackReady implements download.Reporter. An idle player starts right away.
func (m *Manager) TrackReady(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.findLocked(id)
	if t == nil {
		return
	}
	t.State = track.StateReady
	t.Source = track.SourceCache
	m.hub.PublishPlaylist(m.queueLocked())

	if m.current == nil && !m.closed {
		if err := m.advanceLocked(); err != nil {
			zlog.Error().Msgf("advance after download failed: %v", err)
		}
	}
}

// TrackFailed implements download.Reporter. The track is purged on the next advance.
func (m *Manager) TrackFailed(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.findLocked(id)
	if t == nil {
		return
	}
	t.State = track.StateFailed
	zlog.Warn().Msgf("track failed: track_id=%s error=%v", id, err)
	m.hub.PublishPlaylist(m.queueLocked())
}

// findLocked returns the queued track with id. Tracks that left the queue are ignored.
func (m *Manager) findLocked(id string) *track.Track {
	if idx := m.indexLocked(id); idx >= 0 {
		return m.queue[idx]
	}
	return nil
}
