// Package youtube searches YouTube and extracts track audio through yt-dlp.
package youtube

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lrstanley/go-ytdlp"

	"github.com/osa030/crowdbox/internal/domain/track"
)

const searchFormat = "%(id)s\t%(title)s\t%(uploader)s\t%(duration)s"

// Config represents YouTube client configuration.
type Config struct {
	// WorkDir is where yt-dlp writes extracted audio before it is read back.
	WorkDir string
	Proxy   string
}

// Client wraps the yt-dlp binary.
type Client struct {
	workDir string
	proxy   string
}

// New creates a new YouTube client.
func New(cfg Config) (*Client, error) {
	dir := cfg.WorkDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "crowdbox-ytdlp")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create work dir %s", dir)
	}
	return &Client{workDir: dir, proxy: cfg.Proxy}, nil
}

func (c *Client) command() *ytdlp.Command {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings()
	if c.proxy != "" {
		cmd.Proxy(c.proxy)
	}
	return cmd
}

// Search returns up to limit videos matching query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search query is required")
	}
	if limit <= 0 {
		limit = 10
	}

	res, err := c.command().
		FlatPlaylist().
		Print(searchFormat).
		PlaylistItems(fmt.Sprintf("1-%d", limit)).
		Run(ctx, fmt.Sprintf("ytsearch%d:%s", limit, query))
	if err != nil {
		return nil, errors.Wrap(err, "yt-dlp search failed")
	}

	return parseSearchOutput(res.Stdout), nil
}

// Download extracts the audio of a video as mp3 and returns its bytes.
func (c *Client) Download(ctx context.Context, videoID string) ([]byte, error) {
	if videoID == "" {
		return nil, errors.New("video id is required")
	}

	// A private directory per call keeps concurrent jobs for different ids apart.
	dir, err := os.MkdirTemp(c.workDir, "dl-")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create download dir")
	}
	defer os.RemoveAll(dir)

	_, err = c.command().
		NoPlaylist().
		ExtractAudio().
		AudioFormat("mp3").
		Output(filepath.Join(dir, "%(id)s.%(ext)s")).
		Run(ctx, watchURL(videoID))
	if err != nil {
		return nil, errors.Wrapf(err, "yt-dlp download failed: id=%s", videoID)
	}

	data, err := os.ReadFile(filepath.Join(dir, videoID+".mp3"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read extracted audio")
	}
	return data, nil
}

func watchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// parseSearchOutput converts yt-dlp print lines into tracks, skipping lines
// that do not carry all four fields.
func parseSearchOutput(out string) []track.Track {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	tracks := make([]track.Track, 0, len(lines))
	for _, line := range lines {
		parts := strings.Split(line, "\t")
		if len(parts) < 4 || parts[0] == "" {
			continue
		}
		tracks = append(tracks, track.Track{
			ID:       parts[0],
			Title:    parts[1],
			Singer:   parts[2],
			Duration: parseSeconds(parts[3]),
			Source:   track.SourceYouTube,
			State:    track.StateQueued,
		})
	}
	return tracks
}

// parseSeconds accepts yt-dlp's duration field, which may be fractional or "NA".
func parseSeconds(s string) time.Duration {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}
