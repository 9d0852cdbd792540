// Package config provides configuration loading from YAML files.
package config

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig            `yaml:"server"`
	Admin     AdminConfig             `yaml:"admin"`
	Cache     CacheConfig             `yaml:"cache"`
	Download  DownloadConfig          `yaml:"download"`
	Vote      VoteConfig              `yaml:"vote"`
	Volume    VolumeConfig            `yaml:"volume"`
	Playback  PlaybackConfig          `yaml:"playback"`
	Providers []ProviderConfig        `yaml:"providers" validate:"dive"`
	Filters   map[string]FilterConfig `yaml:"filters"`
	Messages  MessagesConfig          `yaml:"messages"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// AdminConfig represents admin-related configuration.
type AdminConfig struct {
	Token string `yaml:"token"` // Token required by queue-control procedures
}

// CacheConfig represents the local audio cache.
type CacheConfig struct {
	Dir string `yaml:"dir" default:"cache" validate:"required"`
}

// DownloadConfig represents download pipeline configuration.
type DownloadConfig struct {
	Workers    int     `yaml:"workers" default:"4" validate:"gte=1,lte=64"`
	RatePerSec float64 `yaml:"rate_per_sec" validate:"gte=0"`
	TimeoutSec int     `yaml:"timeout_sec" default:"300" validate:"gte=1"`
}

// VoteConfig represents skip-vote thresholds.
type VoteConfig struct {
	RequiredVotes       int `yaml:"required_votes" default:"4" validate:"gte=1"`
	RandomRequiredVotes int `yaml:"random_required_votes" default:"1" validate:"gte=1"`
}

// VolumeConfig represents the initial mixer level.
type VolumeConfig struct {
	Initial int `yaml:"initial" default:"100" validate:"gte=0,lte=255"`
}

// PlaybackConfig represents playback driver configuration.
type PlaybackConfig struct {
	Driver     string `yaml:"driver" default:"speaker" validate:"oneof=speaker timer"`
	SampleRate int    `yaml:"sample_rate" default:"44100" validate:"gte=8000"`
	BufferMs   int    `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
}

// ProviderConfig represents a single remote track provider.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=spotify youtube"`
	DisplayName string         `yaml:"display_name"`
	Settings    map[string]any `yaml:"settings"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// MessagesConfig represents user-facing messages.
type MessagesConfig struct {
	Success               string `yaml:"success" default:"track accepted"`
	DefaultError          string `yaml:"default_error" default:"request failed"`
	DuplicateTrack        string `yaml:"duplicate_track" default:"this track is already queued"`
	DurationLimitExceeded string `yaml:"duration_limit_exceeded" default:"this track is too long or too short"`
	CallerPending         string `yaml:"caller_pending" default:"you have too many tracks waiting"`
	TrackNotFound         string `yaml:"track_not_found" default:"track not found"`

	NothingToSkip    string `yaml:"nothing_to_skip" default:"nothing is playing"`
	AlreadyVoted     string `yaml:"already_voted" default:"you have already voted to skip this track"`
	Skipped          string `yaml:"skipped"`
	VotesNeededOne   string `yaml:"votes_needed_one" default:"1 more vote needed"`
	VotesNeededOther string `yaml:"votes_needed_other" default:"%d more votes needed"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes, applying env overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("CROWDBOX_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}

	env := map[string]string{
		"client_id":     os.Getenv("SPOTIFY_CLIENT_ID"),
		"client_secret": os.Getenv("SPOTIFY_CLIENT_SECRET"),
		"refresh_token": os.Getenv("SPOTIFY_REFRESH_TOKEN"),
	}
	for i := range c.Providers {
		if c.Providers[i].Type != "spotify" {
			continue
		}
		for key, v := range env {
			if v == "" {
				continue
			}
			if c.Providers[i].Settings == nil {
				c.Providers[i].Settings = map[string]any{}
			}
			c.Providers[i].Settings[key] = v
		}
	}
}

// GetMessage returns the message for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "success":
		return c.Messages.Success
	case "duplicate_track":
		return c.Messages.DuplicateTrack
	case "duration_limit_exceeded":
		return c.Messages.DurationLimitExceeded
	case "caller_pending":
		return c.Messages.CallerPending
	case "track_not_found":
		return c.Messages.TrackNotFound
	case "nothing_to_skip":
		return c.Messages.NothingToSkip
	case "already_voted":
		return c.Messages.AlreadyVoted
	case "skipped":
		return c.Messages.Skipped
	default:
		return c.Messages.DefaultError
	}
}

// VotesNeeded renders the "N more votes needed" reply with English pluralization.
func (c *Config) VotesNeeded(remaining int) string {
	if remaining == 1 {
		return c.Messages.VotesNeededOne
	}
	return fmt.Sprintf(c.Messages.VotesNeededOther, remaining)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Vote.RandomRequiredVotes > c.Vote.RequiredVotes {
		return errors.Newf("vote.random_required_votes (%d) must not exceed vote.required_votes (%d)",
			c.Vote.RandomRequiredVotes, c.Vote.RequiredVotes)
	}

	seen := make(map[string]bool)
	for i, p := range c.Providers {
		if seen[p.Type] {
			return errors.Newf("provider type %s configured twice (provider index %d)", p.Type, i)
		}
		seen[p.Type] = true
	}

	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// GetFilterSettings returns the settings for a filter.
func (c *Config) GetFilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}
