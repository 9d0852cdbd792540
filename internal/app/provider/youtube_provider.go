package provider

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/crowdbox/internal/domain/track"
)

// YouTubeProviderConfig holds the settings block of a youtube provider.
type YouTubeProviderConfig struct {
	WorkDir     string `mapstructure:"work_dir"`
	Proxy       string `mapstructure:"proxy"`
	SearchLimit int    `mapstructure:"search_limit" default:"10" validate:"gte=1,lte=50"`
}

// DecodeYouTubeConfig decodes, defaults and validates a settings map.
func DecodeYouTubeConfig(settings map[string]any) (*YouTubeProviderConfig, error) {
	var config YouTubeProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &config, nil
}

// YouTubeProvider searches YouTube and extracts audio via yt-dlp.
type YouTubeProvider struct {
	client YouTubeClient
	limit  int
}

// NewYouTubeProvider creates a new YouTubeProvider.
func NewYouTubeProvider(client YouTubeClient, searchLimit int) *YouTubeProvider {
	return &YouTubeProvider{client: client, limit: searchLimit}
}

// SourceType returns track.SourceYouTube.
func (p *YouTubeProvider) SourceType() track.Source {
	return track.SourceYouTube
}

// Search searches YouTube for videos.
func (p *YouTubeProvider) Search(ctx context.Context, query string) ([]track.Track, error) {
	if query == "" {
		return []track.Track{}, nil
	}
	return p.client.Search(ctx, query, p.limit)
}

// Download extracts the audio of t.
func (p *YouTubeProvider) Download(ctx context.Context, t track.Track) ([]byte, error) {
	return p.client.Download(ctx, t.ID)
}
