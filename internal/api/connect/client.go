package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// JukeboxServiceClient is a client for JukeboxService.
type JukeboxServiceClient struct {
	enqueue   *connect.Client[EnqueueRequest, EnqueueResponse]
	vote      *connect.Client[VoteRequest, VoteResponse]
	getState  *connect.Client[GetStateRequest, PlayerState]
	search    *connect.Client[SearchRequest, SearchResponse]
	subscribe *connect.Client[SubscribeRequest, Notification]
}

// NewJukeboxServiceClient creates a client for the service at baseURL, e.g. http://localhost:8080.
func NewJukeboxServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *JukeboxServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &JukeboxServiceClient{
		enqueue:   connect.NewClient[EnqueueRequest, EnqueueResponse](httpClient, baseURL+JukeboxServiceEnqueueProcedure, opts...),
		vote:      connect.NewClient[VoteRequest, VoteResponse](httpClient, baseURL+JukeboxServiceVoteProcedure, opts...),
		getState:  connect.NewClient[GetStateRequest, PlayerState](httpClient, baseURL+JukeboxServiceGetStateProcedure, opts...),
		search:    connect.NewClient[SearchRequest, SearchResponse](httpClient, baseURL+JukeboxServiceSearchProcedure, opts...),
		subscribe: connect.NewClient[SubscribeRequest, Notification](httpClient, baseURL+JukeboxServiceSubscribeProcedure, opts...),
	}
}

func (c *JukeboxServiceClient) Enqueue(ctx context.Context, req *connect.Request[EnqueueRequest]) (*connect.Response[EnqueueResponse], error) {
	return c.enqueue.CallUnary(ctx, req)
}

func (c *JukeboxServiceClient) Vote(ctx context.Context, req *connect.Request[VoteRequest]) (*connect.Response[VoteResponse], error) {
	return c.vote.CallUnary(ctx, req)
}

func (c *JukeboxServiceClient) GetState(ctx context.Context, req *connect.Request[GetStateRequest]) (*connect.Response[PlayerState], error) {
	return c.getState.CallUnary(ctx, req)
}

func (c *JukeboxServiceClient) Search(ctx context.Context, req *connect.Request[SearchRequest]) (*connect.Response[SearchResponse], error) {
	return c.search.CallUnary(ctx, req)
}

func (c *JukeboxServiceClient) Subscribe(ctx context.Context, req *connect.Request[SubscribeRequest]) (*connect.ServerStreamForClient[Notification], error) {
	return c.subscribe.CallServerStream(ctx, req)
}

// AdminServiceClient is a client for AdminService. Requests must carry AdminTokenHeader.
type AdminServiceClient struct {
	reorder   *connect.Client[ReorderRequest, ReorderResponse]
	toggle    *connect.Client[ToggleRequest, ToggleResponse]
	setVolume *connect.Client[SetVolumeRequest, SetVolumeResponse]
	skip      *connect.Client[SkipRequest, SkipResponse]
}

// NewAdminServiceClient creates a client for the admin service at baseURL.
func NewAdminServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AdminServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &AdminServiceClient{
		reorder:   connect.NewClient[ReorderRequest, ReorderResponse](httpClient, baseURL+AdminServiceReorderProcedure, opts...),
		toggle:    connect.NewClient[ToggleRequest, ToggleResponse](httpClient, baseURL+AdminServiceToggleProcedure, opts...),
		setVolume: connect.NewClient[SetVolumeRequest, SetVolumeResponse](httpClient, baseURL+AdminServiceSetVolumeProcedure, opts...),
		skip:      connect.NewClient[SkipRequest, SkipResponse](httpClient, baseURL+AdminServiceSkipProcedure, opts...),
	}
}

func (c *AdminServiceClient) Reorder(ctx context.Context, req *connect.Request[ReorderRequest]) (*connect.Response[ReorderResponse], error) {
	return c.reorder.CallUnary(ctx, req)
}

func (c *AdminServiceClient) Toggle(ctx context.Context, req *connect.Request[ToggleRequest]) (*connect.Response[ToggleResponse], error) {
	return c.toggle.CallUnary(ctx, req)
}

func (c *AdminServiceClient) SetVolume(ctx context.Context, req *connect.Request[SetVolumeRequest]) (*connect.Response[SetVolumeResponse], error) {
	return c.setVolume.CallUnary(ctx, req)
}

func (c *AdminServiceClient) Skip(ctx context.Context, req *connect.Request[SkipRequest]) (*connect.Response[SkipResponse], error) {
	return c.skip.CallUnary(ctx, req)
}
