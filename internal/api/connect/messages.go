package connect

import (
	"time"

	"github.com/osa030/crowdbox/internal/app/notification"
	"github.com/osa030/crowdbox/internal/domain/track"
)

// NotificationType identifies the kind of a pushed notification.
type NotificationType string

const (
	NotificationInitialState NotificationType = "INITIAL_STATE"
	NotificationPlaylist     NotificationType = "PLAYLIST"
	NotificationCurrentTrack NotificationType = "CURRENT_TRACK"
	NotificationVolume       NotificationType = "VOLUME"
)

// Track is the wire form of track.Track.
type Track struct {
	ID             string `json:"id"`
	Title          string `json:"title,omitempty"`
	Singer         string `json:"singer,omitempty"`
	DurationSec    int64  `json:"duration_sec,omitempty"`
	Source         string `json:"source"`
	State          string `json:"state,omitempty"`
	RandomlyChosen bool   `json:"randomly_chosen,omitempty"`
	RequestedBy    string `json:"requested_by,omitempty"`
}

// PlayerState is the wire form of track.PlayerState.
type PlayerState struct {
	Queue           []Track `json:"queue"`
	CurrentTrack    *Track  `json:"current_track,omitempty"`
	Volume          uint8   `json:"volume"`
	PlayDurationSec int64   `json:"play_duration_sec"`
}

// Notification is a single event of the Subscribe stream.
type Notification struct {
	Type         NotificationType `json:"type"`
	SequenceNo   uint64           `json:"sequence_no"`
	State        *PlayerState     `json:"state,omitempty"`         // INITIAL_STATE
	Queue        []Track          `json:"queue,omitempty"`         // PLAYLIST
	CurrentTrack *Track           `json:"current_track,omitempty"` // CURRENT_TRACK, nil when idle
	Volume       uint8            `json:"volume,omitempty"`        // VOLUME
}

type EnqueueRequest struct {
	Track Track `json:"track"`
}

type EnqueueResponse struct {
	Message string `json:"message"`
}

type VoteRequest struct{}

type VoteResponse struct {
	Status    string `json:"status"`
	Votes     int    `json:"votes"`
	Required  int    `json:"required"`
	Remaining int    `json:"remaining"`
	Message   string `json:"message"`
}

type GetStateRequest struct{}

type SearchRequest struct {
	Source string `json:"source"`
	Query  string `json:"query"`
}

type SearchResponse struct {
	Source      string  `json:"source"`
	DisplayName string  `json:"display_name"`
	Tracks      []Track `json:"tracks"`
}

type SubscribeRequest struct{}

type ReorderRequest struct {
	TrackID  string `json:"track_id"`
	Position int    `json:"position"`
}

type ReorderResponse struct {
	Queue []Track `json:"queue"`
}

type ToggleRequest struct{}

type ToggleResponse struct {
	CurrentTrack *Track `json:"current_track,omitempty"`
}

type SetVolumeRequest struct {
	Level int `json:"level"`
}

type SetVolumeResponse struct {
	Level uint8 `json:"level"`
}

type SkipRequest struct{}

type SkipResponse struct {
	CurrentTrack *Track `json:"current_track,omitempty"`
}

// FromTrack converts a domain track to its wire form.
func FromTrack(t track.Track) Track {
	return Track{
		ID:             t.ID,
		Title:          t.Title,
		Singer:         t.Singer,
		DurationSec:    int64(t.Duration / time.Second),
		Source:         string(t.Source),
		State:          t.State.String(),
		RandomlyChosen: t.RandomlyChosen,
		RequestedBy:    t.RequestedBy,
	}
}

// ToTrack converts a wire track to a domain track. State, RandomlyChosen and
// RequestedBy are owned by the server and not copied.
func (t Track) ToTrack() track.Track {
	return track.Track{
		ID:       t.ID,
		Title:    t.Title,
		Singer:   t.Singer,
		Duration: time.Duration(t.DurationSec) * time.Second,
		Source:   track.Source(t.Source),
	}
}

func fromTrackPtr(t *track.Track) *Track {
	if t == nil {
		return nil
	}
	w := FromTrack(*t)
	return &w
}

func fromTracks(tracks []track.Track) []Track {
	result := make([]Track, len(tracks))
	for i, t := range tracks {
		result[i] = FromTrack(t)
	}
	return result
}

func fromPlayerState(s track.PlayerState) *PlayerState {
	return &PlayerState{
		Queue:           fromTracks(s.Queue),
		CurrentTrack:    fromTrackPtr(s.CurrentTrack),
		Volume:          s.Volume,
		PlayDurationSec: int64(s.PlayDuration / time.Second),
	}
}

func fromPlaylistEvent(e notification.PlaylistEvent) *Notification {
	return &Notification{Type: NotificationPlaylist, SequenceNo: e.SequenceNo, Queue: fromTracks(e.Queue)}
}

func fromCurrentTrackEvent(e notification.CurrentTrackEvent) *Notification {
	return &Notification{Type: NotificationCurrentTrack, SequenceNo: e.SequenceNo, CurrentTrack: fromTrackPtr(e.Track)}
}

func fromVolumeEvent(e notification.VolumeEvent) *Notification {
	return &Notification{Type: NotificationVolume, SequenceNo: e.SequenceNo, Volume: e.Level}
}
