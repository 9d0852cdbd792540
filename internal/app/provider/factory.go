package provider

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/crowdbox/internal/infra/config"
	"github.com/osa030/crowdbox/internal/infra/spotify"
	"github.com/osa030/crowdbox/internal/infra/youtube"
)

// NewGatewayFromConfig creates a gateway with the cache provider plus
// every remote provider configured.
func NewGatewayFromConfig(ctx context.Context, cfg *config.Config, store CacheReader) (*Gateway, error) {
	registrations := []Registration{
		{Provider: NewCacheProvider(store), DisplayName: "Cache"},
	}

	for i, pcfg := range cfg.Providers {
		var provider Provider
		var err error
		zlog.Debug().Msgf("creating provider: index=%d type=%s", i+1, pcfg.Type)
		switch pcfg.Type {
		case "spotify":
			provider, err = newSpotifyFromSettings(ctx, pcfg.Settings)

		case "youtube":
			provider, err = newYouTubeFromSettings(pcfg.Settings)

		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		registrations = append(registrations, Registration{
			Provider:    provider,
			DisplayName: pcfg.DisplayName,
		})

		zlog.Info().Msgf("registered provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, pcfg.DisplayName)
	}

	return NewGateway(registrations...), nil
}

func newSpotifyFromSettings(ctx context.Context, settings map[string]any) (Provider, error) {
	c, err := DecodeSpotifyConfig(settings)
	if err != nil {
		return nil, err
	}
	client, err := spotify.New(ctx, spotify.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RefreshToken: c.RefreshToken,
		Market:       c.Market,
	})
	if err != nil {
		return nil, err
	}
	return NewSpotifyProvider(client, c.SearchLimit), nil
}

func newYouTubeFromSettings(settings map[string]any) (Provider, error) {
	c, err := DecodeYouTubeConfig(settings)
	if err != nil {
		return nil, err
	}
	client, err := youtube.New(youtube.Config{WorkDir: c.WorkDir, Proxy: c.Proxy})
	if err != nil {
		return nil, err
	}
	return NewYouTubeProvider(client, c.SearchLimit), nil
}
