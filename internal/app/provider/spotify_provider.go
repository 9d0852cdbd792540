package provider

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/crowdbox/internal/domain/track"
	"github.com/osa030/crowdbox/internal/infra/spotify"
)

// SpotifyProviderConfig holds the settings block of a spotify provider.
type SpotifyProviderConfig struct {
	ClientID     string `mapstructure:"client_id" validate:"required"`
	ClientSecret string `mapstructure:"client_secret" validate:"required"`
	RefreshToken string `mapstructure:"refresh_token" validate:"required"`
	Market       string `mapstructure:"market" default:"JP" validate:"len=2"`
	SearchLimit  int    `mapstructure:"search_limit" default:"20" validate:"gte=1,lte=50"`
}

// DecodeSpotifyConfig decodes, defaults and validates a settings map.
func DecodeSpotifyConfig(settings map[string]any) (*SpotifyProviderConfig, error) {
	var config SpotifyProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		zlog.Error().Msgf("spotify provider validation failed: %v", err)
		return nil, errors.Wrap(err, "validation failed")
	}
	return &config, nil
}

// SpotifyProvider searches Spotify and downloads preview audio.
type SpotifyProvider struct {
	client SpotifyClient
	limit  int
}

// NewSpotifyProvider creates a new SpotifyProvider.
func NewSpotifyProvider(client SpotifyClient, searchLimit int) *SpotifyProvider {
	return &SpotifyProvider{client: client, limit: searchLimit}
}

// SourceType returns track.SourceSpotify.
func (p *SpotifyProvider) SourceType() track.Source {
	return track.SourceSpotify
}

// Search searches Spotify for tracks.
func (p *SpotifyProvider) Search(ctx context.Context, query string) ([]track.Track, error) {
	if query == "" {
		return []track.Track{}, nil
	}
	return p.client.Search(ctx, query, p.limit)
}

// Download downloads the preview audio of t.
func (p *SpotifyProvider) Download(ctx context.Context, t track.Track) ([]byte, error) {
	data, err := p.client.DownloadPreview(ctx, t.ID)
	if errors.Is(err, spotify.ErrNoPreview) {
		zlog.Warn().Msgf("spotify has no audio for track, configure the youtube provider for full tracks: track_id=%s", t.ID)
	}
	return data, err
}
