// Package notification fans out playlist, current-track and volume changes to observers.
package notification

import (
	"sync"

	"github.com/google/uuid"

	"github.com/osa030/crowdbox/internal/domain/track"
)

// PlaylistEvent carries the queue after a change.
type PlaylistEvent struct {
	SequenceNo uint64
	Queue      []track.Track
}

// CurrentTrackEvent carries the current track after a change. Track is nil when nothing plays.
type CurrentTrackEvent struct {
	SequenceNo uint64
	Track      *track.Track
}

// VolumeEvent carries the volume level after a change.
type VolumeEvent struct {
	SequenceNo uint64
	Level      uint8
}

// registry keeps observers in registration order.
type registry[E any] struct {
	order     []string
	observers map[string]func(E)
}

func newRegistry[E any]() *registry[E] {
	return &registry[E]{observers: make(map[string]func(E))}
}

func (r *registry[E]) add(id string, fn func(E)) {
	r.order = append(r.order, id)
	r.observers[id] = fn
}

func (r *registry[E]) remove(id string) bool {
	if _, ok := r.observers[id]; !ok {
		return false
	}
	delete(r.observers, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *registry[E]) snapshot() []func(E) {
	fns := make([]func(E), 0, len(r.order))
	for _, id := range r.order {
		fns = append(fns, r.observers[id])
	}
	return fns
}

// Hub holds three independent observer registries.
//
// Publish calls every observer synchronously, in registration order, on the
// publisher's goroutine. Observers must return promptly and must not call
// back into whatever is publishing.
type Hub struct {
	mu         sync.RWMutex
	playlist   *registry[PlaylistEvent]
	current    *registry[CurrentTrackEvent]
	volume     *registry[VolumeEvent]
	sequenceNo uint64
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		playlist: newRegistry[PlaylistEvent](),
		current:  newRegistry[CurrentTrackEvent](),
		volume:   newRegistry[VolumeEvent](),
	}
}

// OnPlaylistChange registers fn and returns its subscription id.
func (h *Hub) OnPlaylistChange(fn func(PlaylistEvent)) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.New().String()
	h.playlist.add(id, fn)
	return id
}

// OnCurrentTrackChange registers fn and returns its subscription id.
func (h *Hub) OnCurrentTrackChange(fn func(CurrentTrackEvent)) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.New().String()
	h.current.add(id, fn)
	return id
}

// OnVolumeChange registers fn and returns its subscription id.
func (h *Hub) OnVolumeChange(fn func(VolumeEvent)) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.New().String()
	h.volume.add(id, fn)
	return id
}

// Unsubscribe removes a subscription from whichever registry holds it.
func (h *Hub) Unsubscribe(subscriptionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.playlist.remove(subscriptionID) ||
		h.current.remove(subscriptionID) ||
		h.volume.remove(subscriptionID)
}

// SubscriberCount returns the number of registered observers across all registries.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.playlist.order) + len(h.current.order) + len(h.volume.order)
}

// SequenceNo returns the sequence number of the last published event.
func (h *Hub) SequenceNo() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sequenceNo
}

// PublishPlaylist notifies playlist observers. The queue slice is copied.
func (h *Hub) PublishPlaylist(queue []track.Track) {
	h.mu.Lock()
	h.sequenceNo++
	ev := PlaylistEvent{SequenceNo: h.sequenceNo, Queue: append([]track.Track(nil), queue...)}
	fns := h.playlist.snapshot()
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// PublishCurrentTrack notifies current-track observers. t may be nil.
func (h *Hub) PublishCurrentTrack(t *track.Track) {
	h.mu.Lock()
	h.sequenceNo++
	ev := CurrentTrackEvent{SequenceNo: h.sequenceNo, Track: t.Clone()}
	fns := h.current.snapshot()
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// PublishVolume notifies volume observers.
func (h *Hub) PublishVolume(level uint8) {
	h.mu.Lock()
	h.sequenceNo++
	ev := VolumeEvent{SequenceNo: h.sequenceNo, Level: level}
	fns := h.volume.snapshot()
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Close removes all subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playlist = newRegistry[PlaylistEvent]()
	h.current = newRegistry[CurrentTrackEvent]()
	h.volume = newRegistry[VolumeEvent]()
}
