package connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/crowdbox/internal/domain/track"
)

// AdminServiceName is the fully-qualified name of the queue-control service.
const AdminServiceName = "crowdbox.v1.AdminService"

const (
	AdminServiceReorderProcedure   = "/" + AdminServiceName + "/Reorder"
	AdminServiceToggleProcedure    = "/" + AdminServiceName + "/Toggle"
	AdminServiceSetVolumeProcedure = "/" + AdminServiceName + "/SetVolume"
	AdminServiceSkipProcedure      = "/" + AdminServiceName + "/Skip"
)

// Controller is the orchestrator surface used by AdminService. *session.Manager implements it.
type Controller interface {
	Reorder(trackID string, target int) error
	Toggle()
	SetVolume(level int) uint8
	Advance() error
	Snapshot() track.PlayerState
}

// AdminService implements the queue-control RPCs.
type AdminService struct {
	controller Controller
}

// NewAdminService creates a new AdminService.
func NewAdminService(controller Controller) *AdminService {
	return &AdminService{controller: controller}
}

// NewAdminServiceHandler builds the HTTP handler serving svc, guarded by the admin token.
func NewAdminServiceHandler(svc *AdminService, token string, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{
		WithJSON(),
		connect.WithInterceptors(NewAdminAuthInterceptor(token)),
	}, opts...)

	mux := http.NewServeMux()
	mux.Handle(AdminServiceReorderProcedure, connect.NewUnaryHandler(AdminServiceReorderProcedure, svc.Reorder, opts...))
	mux.Handle(AdminServiceToggleProcedure, connect.NewUnaryHandler(AdminServiceToggleProcedure, svc.Toggle, opts...))
	mux.Handle(AdminServiceSetVolumeProcedure, connect.NewUnaryHandler(AdminServiceSetVolumeProcedure, svc.SetVolume, opts...))
	mux.Handle(AdminServiceSkipProcedure, connect.NewUnaryHandler(AdminServiceSkipProcedure, svc.Skip, opts...))
	return "/" + AdminServiceName + "/", mux
}

// Reorder moves a queued track to a new position.
func (s *AdminService) Reorder(
	ctx context.Context,
	req *connect.Request[ReorderRequest],
) (*connect.Response[ReorderResponse], error) {
	if err := s.controller.Reorder(req.Msg.TrackID, req.Msg.Position); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ReorderResponse{
		Queue: fromTracks(s.controller.Snapshot().Queue),
	}), nil
}

// Toggle pauses or resumes the current track.
func (s *AdminService) Toggle(
	ctx context.Context,
	req *connect.Request[ToggleRequest],
) (*connect.Response[ToggleResponse], error) {
	s.controller.Toggle()
	return connect.NewResponse(&ToggleResponse{
		CurrentTrack: fromTrackPtr(s.controller.Snapshot().CurrentTrack),
	}), nil
}

// SetVolume sets the output level. The applied (clamped) level is returned.
func (s *AdminService) SetVolume(
	ctx context.Context,
	req *connect.Request[SetVolumeRequest],
) (*connect.Response[SetVolumeResponse], error) {
	level := s.controller.SetVolume(req.Msg.Level)
	zlog.Info().Msgf("volume set: requested=%d applied=%d", req.Msg.Level, level)
	return connect.NewResponse(&SetVolumeResponse{Level: level}), nil
}

// Skip advances to the next track regardless of votes.
func (s *AdminService) Skip(
	ctx context.Context,
	req *connect.Request[SkipRequest],
) (*connect.Response[SkipResponse], error) {
	if err := s.controller.Advance(); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SkipResponse{
		CurrentTrack: fromTrackPtr(s.controller.Snapshot().CurrentTrack),
	}), nil
}
