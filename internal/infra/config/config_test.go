package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  addr: \":9090\"\n"))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "cache", cfg.Cache.Dir)
	assert.Equal(t, 4, cfg.Download.Workers)
	assert.Equal(t, 300, cfg.Download.TimeoutSec)
	assert.Equal(t, 4, cfg.Vote.RequiredVotes)
	assert.Equal(t, 1, cfg.Vote.RandomRequiredVotes)
	assert.Equal(t, 100, cfg.Volume.Initial)
	assert.Equal(t, "speaker", cfg.Playback.Driver)
	assert.Equal(t, "1 more vote needed", cfg.Messages.VotesNeededOne)
	assert.Empty(t, cfg.Providers)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
cache:
  dir: /var/cache/crowdbox
download:
  workers: 2
  rate_per_sec: 0.5
playback:
  driver: timer
providers:
  - type: youtube
    display_name: YouTube
filters:
  duration_limit_filter:
    enabled: true
    settings:
      max_minutes: 10
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/cache/crowdbox", cfg.Cache.Dir)
	assert.Equal(t, 2, cfg.Download.Workers)
	assert.InDelta(t, 0.5, cfg.Download.RatePerSec, 1e-9)
	assert.Equal(t, "timer", cfg.Playback.Driver)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "youtube", cfg.Providers[0].Type)
	assert.True(t, cfg.IsFilterEnabled("duration_limit_filter"))
	assert.False(t, cfg.IsFilterEnabled("caller_pending_filter"))
	assert.Equal(t, 10, cfg.GetFilterSettings("duration_limit_filter")["max_minutes"])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "env-secret")
	t.Setenv("SPOTIFY_REFRESH_TOKEN", "")
	t.Setenv("CROWDBOX_CACHE_DIR", "/tmp/crowdbox")
	t.Setenv("ADMIN_TOKEN", "secret")

	cfg, err := Parse([]byte(`
providers:
  - type: spotify
  - type: youtube
`))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/crowdbox", cfg.Cache.Dir)
	assert.Equal(t, "secret", cfg.Admin.Token)
	assert.Equal(t, "env-id", cfg.Providers[0].Settings["client_id"])
	assert.Equal(t, "env-secret", cfg.Providers[0].Settings["client_secret"])
	assert.NotContains(t, cfg.Providers[0].Settings, "refresh_token")
	assert.Nil(t, cfg.Providers[1].Settings)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		cfg, err := Parse([]byte("{}"))
		require.NoError(t, err)
		return *cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown playback driver",
			mutate:  func(c *Config) { c.Playback.Driver = "alsa" },
			wantErr: true,
			errMsg:  "Driver",
		},
		{
			name:    "too many workers",
			mutate:  func(c *Config) { c.Download.Workers = 100 },
			wantErr: true,
			errMsg:  "Workers",
		},
		{
			name:    "unknown provider type",
			mutate:  func(c *Config) { c.Providers = []ProviderConfig{{Type: "soundcloud"}} },
			wantErr: true,
			errMsg:  "Type",
		},
		{
			name: "duplicate provider type",
			mutate: func(c *Config) {
				c.Providers = []ProviderConfig{{Type: "youtube"}, {Type: "youtube"}}
			},
			wantErr: true,
			errMsg:  "configured twice",
		},
		{
			name: "random threshold above normal threshold",
			mutate: func(c *Config) {
				c.Vote.RequiredVotes = 2
				c.Vote.RandomRequiredVotes = 3
			},
			wantErr: true,
			errMsg:  "random_required_votes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err, "expected validation to fail")
				assert.Contains(t, err.Error(), tt.errMsg,
					"error message should mention the problematic field")
			} else {
				assert.NoError(t, err, "expected validation to pass")
			}
		})
	}
}

func TestConfig_Messages(t *testing.T) {
	cfg, err := Parse([]byte("messages:\n  duplicate_track: dup\n"))
	require.NoError(t, err)

	assert.Equal(t, "dup", cfg.GetMessage("duplicate_track"))
	assert.Equal(t, cfg.Messages.DefaultError, cfg.GetMessage("no_such_code"))
	assert.Equal(t, "1 more vote needed", cfg.VotesNeeded(1))
	assert.Equal(t, "3 more votes needed", cfg.VotesNeeded(3))
}
