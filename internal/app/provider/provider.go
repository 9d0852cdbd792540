// Package provider gives uniform access to the pluggable track sources.
package provider

import (
	"context"

	"github.com/osa030/crowdbox/internal/domain/track"
)

// Provider is the interface for track sources.
// Each implementation serves exactly one track.Source.
type Provider interface {
	// SourceType returns the source this provider serves.
	SourceType() track.Source

	// Search returns candidate tracks for query.
	// An empty query on the cache provider returns every cached track.
	Search(ctx context.Context, query string) ([]track.Track, error)

	// Download fetches the raw audio of t.
	Download(ctx context.Context, t track.Track) ([]byte, error)
}

// SpotifyClient defines the Spotify operations needed by the Spotify provider.
type SpotifyClient interface {
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)
	DownloadPreview(ctx context.Context, trackID string) ([]byte, error)
}

// YouTubeClient defines the yt-dlp operations needed by the YouTube provider.
type YouTubeClient interface {
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)
	Download(ctx context.Context, videoID string) ([]byte, error)
}

// CacheReader is the read side of the local audio cache.
type CacheReader interface {
	Entries() []track.Track
	Read(id string) ([]byte, error)
}
