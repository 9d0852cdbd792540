package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/crowdbox/internal/domain/track"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestStore_WriteAndExists(t *testing.T) {
	s := newTestStore(t)

	assert.False(t, s.Exists("abc"))
	require.NoError(t, s.Write("abc", []byte("ID3data")))
	assert.True(t, s.Exists("abc"))
	assert.Equal(t, filepath.Join(s.Dir(), "abc.mp3"), s.Path("abc"))

	data, err := s.Read("abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3data"), data)

	// No temporary file left behind
	_, err = os.Stat(s.Path("abc") + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStore_WriteRejectsPathLikeIDs(t *testing.T) {
	s := newTestStore(t)

	assert.Error(t, s.Write("", []byte("x")))
	assert.Error(t, s.Write("../escape", []byte("x")))
}

func TestStore_AppendMetadata(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AppendMetadata(track.Track{
		ID:       "abc",
		Singer:   "  Queen ",
		Title:    " Bohemian Rhapsody\t",
		Duration: 5*time.Minute + 55*time.Second,
	}))

	raw, err := os.ReadFile(filepath.Join(s.Dir(), MetadataFile))
	require.NoError(t, err)
	assert.Equal(t, "abc|Queen|Bohemian Rhapsody|00:05:55\n", string(raw))
}

func TestStore_EntriesLoadedFromLog(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	for _, tr := range []track.Track{
		{ID: "a", Singer: "Singer A", Title: "Title A", Duration: 61 * time.Second},
		{ID: "b", Singer: "Singer B", Title: "Title B", Duration: 120 * time.Second},
		{ID: "gone", Singer: "Singer C", Title: "Title C", Duration: 30 * time.Second},
	} {
		require.NoError(t, s.AppendMetadata(tr))
	}
	require.NoError(t, s.Write("a", []byte("a")))
	require.NoError(t, s.Write("b", []byte("b")))

	// Garbage and duplicates are ignored
	f, err := os.OpenFile(filepath.Join(dir, MetadataFile), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("not a record\na|Dup|Dup|00:00:01\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)

	entries := reopened.Entries()
	require.Len(t, entries, 2, "records without audio are skipped on load")
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "Singer A", entries[0].Singer)
	assert.Equal(t, 61*time.Second, entries[0].Duration)
	assert.Equal(t, track.SourceCache, entries[0].Source)
	assert.Equal(t, "b", entries[1].ID)
}

func TestStore_EntriesWithoutLog(t *testing.T) {
	s := newTestStore(t)
	assert.Empty(t, s.Entries())
}

func TestStore_AppendMetadataIndexes(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Write("a", []byte("a")))
	require.NoError(t, s.AppendMetadata(track.Track{ID: "a", Singer: " Queen ", Title: "Heroes", Duration: 90500 * time.Millisecond}))
	require.NoError(t, s.AppendMetadata(track.Track{ID: "a", Singer: "Other", Title: "Other"}))

	entries := s.Entries()
	require.Len(t, entries, 1, "first record wins")
	assert.Equal(t, "Queen", entries[0].Singer)
	assert.Equal(t, 90*time.Second, entries[0].Duration, "indexed as the log stores it")
	assert.Equal(t, track.StateReady, entries[0].State)

	// Callers get a copy
	entries[0].Title = "changed"
	assert.Equal(t, "Heroes", s.Entries()[0].Title)
}

func TestStore_Remove(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"a", "b"} {
		require.NoError(t, s.Write(id, []byte(id)))
		require.NoError(t, s.AppendMetadata(track.Track{ID: id, Singer: "S", Title: "T"}))
	}

	require.NoError(t, s.Remove("a"))
	assert.False(t, s.Exists("a"))
	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].ID)

	require.NoError(t, s.Remove("a"), "removing twice is not an error")

	reopened, err := NewStore(s.Dir())
	require.NoError(t, err)
	assert.Len(t, reopened.Entries(), 1)
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    track.Track
		wantErr bool
	}{
		{
			name: "simple",
			line: "id1|Artist|Song|00:03:30",
			want: track.Track{ID: "id1", Singer: "Artist", Title: "Song", Duration: 210 * time.Second},
		},
		{
			name: "pipe in title",
			line: "id2|Artist|A | B|00:00:10",
			want: track.Track{ID: "id2", Singer: "Artist", Title: "A | B", Duration: 10 * time.Second},
		},
		{
			name:    "missing fields",
			line:    "id3|00:00:10",
			wantErr: true,
		},
		{
			name:    "bad duration",
			line:    "id4|Artist|Song|later",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEntry(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.ID, got.ID)
			assert.Equal(t, tt.want.Singer, got.Singer)
			assert.Equal(t, tt.want.Title, got.Title)
			assert.Equal(t, tt.want.Duration, got.Duration)
		})
	}
}

func TestFormatEntry_RoundTrip(t *testing.T) {
	tr := track.Track{ID: "x", Singer: " S ", Title: " T ", Duration: 75 * time.Second}
	line := FormatEntry(tr)
	assert.False(t, strings.HasSuffix(line, "\n"))

	parsed, err := ParseEntry(line)
	require.NoError(t, err)
	assert.Equal(t, "S", parsed.Singer)
	assert.Equal(t, "T", parsed.Title)
	assert.Equal(t, 75*time.Second, parsed.Duration)
}
