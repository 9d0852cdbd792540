package provider

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/crowdbox/internal/domain/track"
	"github.com/osa030/crowdbox/internal/infra/cache"
	"github.com/osa030/crowdbox/internal/infra/config"
	"github.com/osa030/crowdbox/internal/infra/spotify"
)

type fakeClient struct {
	tracks    []track.Track
	data      []byte
	err       error
	lastQuery string
	lastLimit int
	lastID    string
}

func (c *fakeClient) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	c.lastQuery, c.lastLimit = query, limit
	return c.tracks, c.err
}

func (c *fakeClient) DownloadPreview(ctx context.Context, trackID string) ([]byte, error) {
	c.lastID = trackID
	return c.data, c.err
}

func (c *fakeClient) Download(ctx context.Context, videoID string) ([]byte, error) {
	c.lastID = videoID
	return c.data, c.err
}

func seedCache(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.NewStore(t.TempDir())
	require.NoError(t, err)

	for _, tr := range []track.Track{
		{ID: "a", Title: "Bohemian Rhapsody", Singer: "Queen", Duration: 354 * time.Second},
		{ID: "b", Title: "Heroes", Singer: "David Bowie", Duration: 371 * time.Second},
		{ID: "c", Title: "Killer Queen", Singer: "Queen", Duration: 180 * time.Second},
	} {
		require.NoError(t, store.Write(tr.ID, []byte("audio-"+tr.ID)))
		require.NoError(t, store.AppendMetadata(tr))
	}
	return store
}

func TestCacheProvider_Search(t *testing.T) {
	p := NewCacheProvider(seedCache(t))
	ctx := context.Background()

	all, err := p.Search(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for _, tr := range all {
		assert.Equal(t, track.SourceCache, tr.Source)
		assert.Equal(t, track.StateReady, tr.State)
	}

	queen, err := p.Search(ctx, "QUEEN")
	require.NoError(t, err)
	assert.Len(t, queen, 2)

	none, err := p.Search(ctx, "abba")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCacheProvider_Download(t *testing.T) {
	p := NewCacheProvider(seedCache(t))

	data, err := p.Download(context.Background(), track.Track{ID: "b"})
	require.NoError(t, err)
	assert.Equal(t, []byte("audio-b"), data)

	_, err = p.Download(context.Background(), track.Track{ID: "zzz"})
	assert.Error(t, err)
}

func TestRemoteProviders(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{
		tracks: []track.Track{{ID: "x", Title: "X"}},
		data:   []byte("mp3"),
	}

	sp := NewSpotifyProvider(client, 20)
	assert.Equal(t, track.SourceSpotify, sp.SourceType())

	got, err := sp.Search(ctx, "x")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 20, client.lastLimit)

	empty, err := sp.Search(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, empty)

	data, err := sp.Download(ctx, track.Track{ID: "sp1"})
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), data)
	assert.Equal(t, "sp1", client.lastID)

	client.err = errors.Wrap(spotify.ErrNoPreview, "track sp2")
	_, err = sp.Download(ctx, track.Track{ID: "sp2"})
	assert.True(t, errors.Is(err, spotify.ErrNoPreview), "missing preview stays detectable")
	client.err = nil

	yt := NewYouTubeProvider(client, 5)
	assert.Equal(t, track.SourceYouTube, yt.SourceType())
	_, err = yt.Search(ctx, "y")
	require.NoError(t, err)
	assert.Equal(t, 5, client.lastLimit)
	_, err = yt.Download(ctx, track.Track{ID: "yt1"})
	require.NoError(t, err)
	assert.Equal(t, "yt1", client.lastID)
}

func TestGateway(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{data: []byte("remote")}
	cacheProvider := NewCacheProvider(seedCache(t))

	g := NewGateway(
		Registration{Provider: cacheProvider, DisplayName: "Cache"},
		Registration{Provider: NewYouTubeProvider(client, 10), DisplayName: "YouTube"},
	)

	assert.Equal(t, []track.Source{track.SourceCache, track.SourceYouTube}, g.Sources())
	assert.Same(t, cacheProvider, g.Cache())
	assert.Equal(t, "YouTube", g.DisplayName(track.SourceYouTube))
	assert.Equal(t, "SPOTIFY", g.DisplayName(track.SourceSpotify))

	data, err := g.Download(ctx, track.Track{ID: "v", Source: track.SourceYouTube})
	require.NoError(t, err)
	assert.Equal(t, []byte("remote"), data)

	_, err = g.Download(ctx, track.Track{ID: "v", Source: track.SourceSpotify})
	assert.True(t, errors.Is(err, ErrUnknownSource))

	client.err = errors.New("yt-dlp exited 1")
	_, err = g.Search(ctx, track.SourceYouTube, "q")
	assert.Error(t, err)

	found, err := g.Search(ctx, track.SourceCache, "heroes")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "b", found[0].ID)
}

func TestGateway_NoCache(t *testing.T) {
	assert.Nil(t, NewGateway().Cache())
}

func TestDecodeSpotifyConfig(t *testing.T) {
	c, err := DecodeSpotifyConfig(map[string]any{
		"client_id":     "id",
		"client_secret": "secret",
		"refresh_token": "token",
	})
	require.NoError(t, err)
	assert.Equal(t, "JP", c.Market)
	assert.Equal(t, 20, c.SearchLimit)

	_, err = DecodeSpotifyConfig(map[string]any{"client_id": "id"})
	assert.Error(t, err)
}

func TestDecodeYouTubeConfig(t *testing.T) {
	c, err := DecodeYouTubeConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, 10, c.SearchLimit)

	_, err = DecodeYouTubeConfig(map[string]any{"search_limit": 500})
	assert.Error(t, err)
}

func TestNewGatewayFromConfig(t *testing.T) {
	store := seedCache(t)

	cfg := &config.Config{Providers: []config.ProviderConfig{
		{Type: "youtube", DisplayName: "YouTube", Settings: map[string]any{"work_dir": t.TempDir()}},
		{Type: "spotify", DisplayName: "Spotify", Settings: map[string]any{
			"client_id": "id", "client_secret": "secret", "refresh_token": "token",
		}},
	}}
	g, err := NewGatewayFromConfig(context.Background(), cfg, store)
	require.NoError(t, err)
	assert.Equal(t, []track.Source{track.SourceCache, track.SourceSpotify, track.SourceYouTube}, g.Sources())

	cfg = &config.Config{Providers: []config.ProviderConfig{{Type: "spotify"}}}
	_, err = NewGatewayFromConfig(context.Background(), cfg, store)
	assert.Error(t, err)

	cfg = &config.Config{Providers: []config.ProviderConfig{{Type: "napster"}}}
	_, err = NewGatewayFromConfig(context.Background(), cfg, store)
	assert.Error(t, err)
}
