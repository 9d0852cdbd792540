package provider

import (
	"context"
	"strings"

	"github.com/osa030/crowdbox/internal/domain/track"
)

// CacheProvider serves tracks already present in the local cache.
type CacheProvider struct {
	store CacheReader
}

// NewCacheProvider creates a new CacheProvider.
func NewCacheProvider(store CacheReader) *CacheProvider {
	return &CacheProvider{store: store}
}

// SourceType returns track.SourceCache.
func (p *CacheProvider) SourceType() track.Source {
	return track.SourceCache
}

// Search returns cached tracks whose title or singer contains query,
// case-insensitively. An empty query returns all cached tracks.
// It reads the store's in-memory index only, so it never blocks on disk.
func (p *CacheProvider) Search(ctx context.Context, query string) ([]track.Track, error) {
	entries := p.store.Entries()

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return entries, nil
	}

	result := make([]track.Track, 0)
	for _, t := range entries {
		if strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Singer), q) {
			result = append(result, t)
		}
	}
	return result, nil
}

// Download reads the cached audio of t.
func (p *CacheProvider) Download(ctx context.Context, t track.Track) ([]byte, error) {
	return p.store.Read(t.ID)
}
