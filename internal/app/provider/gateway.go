package provider

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/crowdbox/internal/domain/track"
)

// ErrUnknownSource is returned when no provider serves the requested source.
var ErrUnknownSource = errors.New("no provider for source")

// Registration wraps a provider with its metadata.
type Registration struct {
	Provider    Provider
	DisplayName string
}

// Gateway routes requests to the provider serving a track's source.
type Gateway struct {
	providers map[track.Source]Registration
}

// NewGateway creates a gateway. A later registration for the same source replaces an earlier one.
func NewGateway(registrations ...Registration) *Gateway {
	g := &Gateway{providers: make(map[track.Source]Registration, len(registrations))}
	for _, r := range registrations {
		src := r.Provider.SourceType()
		if _, ok := g.providers[src]; ok {
			zlog.Warn().Msgf("provider replaced: source=%s display_name=%s", src, r.DisplayName)
		}
		g.providers[src] = r
	}
	return g
}

// Get returns the provider for source.
func (g *Gateway) Get(source track.Source) (Provider, error) {
	r, ok := g.providers[source]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSource, "source=%s", source)
	}
	return r.Provider, nil
}

// Cache returns the cache-backed provider, or nil if none is registered.
func (g *Gateway) Cache() Provider {
	r, ok := g.providers[track.SourceCache]
	if !ok {
		return nil
	}
	return r.Provider
}

// DisplayName returns the configured display name of a source.
func (g *Gateway) DisplayName(source track.Source) string {
	if r, ok := g.providers[source]; ok && r.DisplayName != "" {
		return r.DisplayName
	}
	return string(source)
}

// Sources lists the registered sources in a stable order.
func (g *Gateway) Sources() []track.Source {
	sources := make([]track.Source, 0, len(g.providers))
	for s := range g.providers {
		sources = append(sources, s)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	return sources
}

// Search queries the provider serving source.
func (g *Gateway) Search(ctx context.Context, source track.Source, query string) ([]track.Track, error) {
	p, err := g.Get(source)
	if err != nil {
		return nil, err
	}

	zlog.Debug().Msgf("searching provider: source=%s query=%q", source, query)
	tracks, err := p.Search(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "search failed: source=%s", source)
	}
	return tracks, nil
}

// Download fetches the audio of t from the provider serving t.Source.
func (g *Gateway) Download(ctx context.Context, t track.Track) ([]byte, error) {
	p, err := g.Get(t.Source)
	if err != nil {
		return nil, err
	}
	return p.Download(ctx, t)
}
