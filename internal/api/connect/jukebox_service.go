// Package connect provides Connect RPC service implementations.
package connect

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/crowdbox/internal/app/notification"
	"github.com/osa030/crowdbox/internal/app/vote"
	"github.com/osa030/crowdbox/internal/domain/track"
	"github.com/osa030/crowdbox/internal/infra/config"
)

// JukeboxServiceName is the fully-qualified name of the listener-facing service.
const JukeboxServiceName = "crowdbox.v1.JukeboxService"

const (
	JukeboxServiceEnqueueProcedure   = "/" + JukeboxServiceName + "/Enqueue"
	JukeboxServiceVoteProcedure      = "/" + JukeboxServiceName + "/Vote"
	JukeboxServiceGetStateProcedure  = "/" + JukeboxServiceName + "/GetState"
	JukeboxServiceSearchProcedure    = "/" + JukeboxServiceName + "/Search"
	JukeboxServiceSubscribeProcedure = "/" + JukeboxServiceName + "/Subscribe"
)

// subscriberBuffer is the number of notifications a slow subscriber may lag behind
// before its stream is terminated.
const subscriberBuffer = 64

// Jukebox is the orchestrator surface used by JukeboxService. *session.Manager implements it.
type Jukebox interface {
	Enqueue(ctx context.Context, t track.Track) error
	Vote(caller string) (vote.Result, error)
	Snapshot() track.PlayerState
	Search(ctx context.Context, source track.Source, query string) ([]track.Track, error)
	SourceName(source track.Source) string
	Hub() *notification.Hub
	Done() <-chan struct{}
}

// JukeboxService implements the listener-facing RPCs.
type JukeboxService struct {
	jukebox Jukebox
	config  *config.Config
}

// NewJukeboxService creates a new JukeboxService.
func NewJukeboxService(jukebox Jukebox, cfg *config.Config) *JukeboxService {
	return &JukeboxService{
		jukebox: jukebox,
		config:  cfg,
	}
}

// NewJukeboxServiceHandler builds the HTTP handler serving svc and returns the path to mount it on.
func NewJukeboxServiceHandler(svc *JukeboxService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(JukeboxServiceEnqueueProcedure, connect.NewUnaryHandler(JukeboxServiceEnqueueProcedure, svc.Enqueue, opts...))
	mux.Handle(JukeboxServiceVoteProcedure, connect.NewUnaryHandler(JukeboxServiceVoteProcedure, svc.Vote, opts...))
	mux.Handle(JukeboxServiceGetStateProcedure, connect.NewUnaryHandler(JukeboxServiceGetStateProcedure, svc.GetState, opts...))
	mux.Handle(JukeboxServiceSearchProcedure, connect.NewUnaryHandler(JukeboxServiceSearchProcedure, svc.Search, opts...))
	mux.Handle(JukeboxServiceSubscribeProcedure, connect.NewServerStreamHandler(JukeboxServiceSubscribeProcedure, svc.Subscribe, opts...))
	return "/" + JukeboxServiceName + "/", mux
}

// Enqueue handles track requests. The caller is identified by its network address.
func (s *JukeboxService) Enqueue(
	ctx context.Context,
	req *connect.Request[EnqueueRequest],
) (*connect.Response[EnqueueResponse], error) {
	t := req.Msg.Track.ToTrack()
	t.RequestedBy = callerOf(req)

	if err := s.jukebox.Enqueue(ctx, t); err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&EnqueueResponse{
		Message: s.config.GetMessage("success"),
	}), nil
}

// Vote registers a skip vote from the caller.
func (s *JukeboxService) Vote(
	ctx context.Context,
	req *connect.Request[VoteRequest],
) (*connect.Response[VoteResponse], error) {
	result, err := s.jukebox.Vote(callerOf(req))
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&VoteResponse{
		Status:    result.Status.String(),
		Votes:     result.Votes,
		Required:  result.Required,
		Remaining: result.Remaining,
		Message:   result.Message,
	}), nil
}

// GetState returns the current player state.
func (s *JukeboxService) GetState(
	ctx context.Context,
	req *connect.Request[GetStateRequest],
) (*connect.Response[PlayerState], error) {
	return connect.NewResponse(fromPlayerState(s.jukebox.Snapshot())), nil
}

// Search looks up candidate tracks from one provider.
func (s *JukeboxService) Search(
	ctx context.Context,
	req *connect.Request[SearchRequest],
) (*connect.Response[SearchResponse], error) {
	source, ok := track.ParseSource(req.Msg.Source)
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.Newf("unknown source %q", req.Msg.Source))
	}

	tracks, err := s.jukebox.Search(ctx, source, req.Msg.Query)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&SearchResponse{
		Source:      string(source),
		DisplayName: s.jukebox.SourceName(source),
		Tracks:      fromTracks(tracks),
	}), nil
}

// Subscribe streams the initial state followed by every playlist, current-track and volume change.
func (s *JukeboxService) Subscribe(
	ctx context.Context,
	req *connect.Request[SubscribeRequest],
	stream *connect.ServerStream[Notification],
) error {
	hub := s.jukebox.Hub()
	sub := newSubscriber(subscriberBuffer)

	// Subscribe before taking the snapshot so no change is lost in between.
	ids := []string{
		hub.OnPlaylistChange(func(e notification.PlaylistEvent) { sub.push(fromPlaylistEvent(e)) }),
		hub.OnCurrentTrackChange(func(e notification.CurrentTrackEvent) { sub.push(fromCurrentTrackEvent(e)) }),
		hub.OnVolumeChange(func(e notification.VolumeEvent) { sub.push(fromVolumeEvent(e)) }),
	}
	defer func() {
		for _, id := range ids {
			hub.Unsubscribe(id)
		}
	}()

	sequenceNo := hub.SequenceNo()
	initial := &Notification{
		Type:       NotificationInitialState,
		SequenceNo: sequenceNo,
		State:      fromPlayerState(s.jukebox.Snapshot()),
	}
	if err := stream.Send(initial); err != nil {
		return err
	}

	caller := callerOf(req)
	zlog.Info().Msgf("subscriber connected: caller=%s", caller)
	defer zlog.Info().Msgf("subscriber disconnected: caller=%s", caller)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.jukebox.Done():
			return nil
		case <-sub.overflow:
			zlog.Warn().Msgf("subscriber too slow, dropping: caller=%s", caller)
			return connect.NewError(connect.CodeResourceExhausted, errors.New("subscriber fell behind"))
		case n := <-sub.events:
			// Already reflected in the initial state
			if n.SequenceNo <= sequenceNo {
				continue
			}
			if err := stream.Send(n); err != nil {
				return err
			}
		}
	}
}

// subscriber buffers notifications for one stream. push never blocks, since
// observers run inside the orchestrator's critical section.
type subscriber struct {
	events   chan *Notification
	overflow chan struct{}
	once     sync.Once
}

func newSubscriber(size int) *subscriber {
	return &subscriber{
		events:   make(chan *Notification, size),
		overflow: make(chan struct{}),
	}
}

func (s *subscriber) push(n *Notification) {
	select {
	case s.events <- n:
	default:
		s.once.Do(func() { close(s.overflow) })
	}
}

// callerOf identifies the caller by the first X-Forwarded-For hop, or the peer address.
func callerOf(req connect.AnyRequest) string {
	if fwd := req.Header().Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	addr := req.Peer().Addr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
