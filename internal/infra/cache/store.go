// Package cache provides the on-disk track cache and its append-only metadata log.
//
// Layout:
//
//	<dir>/<trackID>.mp3  cached audio payload
//	<dir>/hashmap.txt    one "id|singer|title|HH:MM:SS" line per cached track
package cache

import (
	"bufio"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/crowdbox/internal/domain/track"
)

const (
	// MetadataFile is the name of the metadata log inside the cache directory.
	MetadataFile = "hashmap.txt"

	audioExt = ".mp3"
	tmpExt   = ".tmp"
)

// Store manages cached audio files and the metadata log.
//
// The log is read once when the store opens. After that Entries is served
// from memory and AppendMetadata keeps the index and the log in step.
type Store struct {
	dir string

	// Serializes appends to the metadata log
	logMu sync.Mutex

	mu      sync.RWMutex
	entries []track.Track
	indexed map[string]struct{}
}

// NewStore creates a store rooted at dir, creating the directory if needed,
// and loads the metadata log into memory.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create cache directory %s", dir)
	}
	s := &Store{
		dir:     dir,
		entries: make([]track.Track, 0),
		indexed: make(map[string]struct{}),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the deterministic cache path for a track ID.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+audioExt)
}

// Exists reports whether the cached audio for id is present.
func (s *Store) Exists(id string) bool {
	info, err := os.Stat(s.Path(id))
	return err == nil && !info.IsDir()
}

// Write stores the audio payload for id.
// Data is written to a temporary file first and renamed into place so a
// partially written file is never observed by Exists.
func (s *Store) Write(id string, data []byte) error {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return errors.Newf("invalid track id for cache: %q", id)
	}

	dest := s.Path(id)
	tmp := dest + tmpExt
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write cache file")
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "failed to move cache file into place")
	}
	return nil
}

// Read returns the cached audio payload for id.
func (s *Store) Read(id string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read cached track %s", id)
	}
	return data, nil
}

// Remove deletes the cached audio for id and drops it from Entries.
// The metadata log is append-only and keeps its record; a later load skips it.
func (s *Store) Remove(id string) error {
	if err := os.Remove(s.Path(id)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove cached track %s", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexed[id]; !ok {
		return nil
	}
	delete(s.indexed, id)
	s.entries = slices.DeleteFunc(s.entries, func(t track.Track) bool { return t.ID == id })
	return nil
}

// AppendMetadata appends one metadata line for t to the log and indexes it.
func (s *Store) AppendMetadata(t track.Track) error {
	line := FormatEntry(t)

	s.logMu.Lock()
	defer s.logMu.Unlock()

	f, err := os.OpenFile(s.metadataPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrap(err, "failed to open metadata log")
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return errors.Wrap(err, "failed to append metadata")
	}

	// Index what a reload would read back, not the caller's copy
	entry, err := ParseEntry(line)
	if err != nil {
		zlog.Debug().Msgf("cache: not indexing unparsable record: %q (%v)", line, err)
		return nil
	}
	s.mu.Lock()
	s.addLocked(entry)
	s.mu.Unlock()
	return nil
}

// Entries returns the indexed tracks in log order. It does no I/O.
func (s *Store) Entries() []track.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries)
}

// load reads the metadata log, keeping tracks whose audio is still cached.
// Lines that cannot be parsed are skipped. If an id appears more than once the
// first record wins.
func (s *Store) load() error {
	f, err := os.Open(s.metadataPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "failed to open metadata log")
	}
	defer f.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		t, err := ParseEntry(line)
		if err != nil {
			zlog.Debug().Msgf("cache: skipping malformed metadata line: %q (%v)", line, err)
			continue
		}
		if !s.Exists(t.ID) {
			continue
		}
		s.addLocked(t)
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "failed to read metadata log")
	}
	return nil
}

func (s *Store) addLocked(t track.Track) {
	if _, ok := s.indexed[t.ID]; ok {
		return
	}
	s.indexed[t.ID] = struct{}{}
	s.entries = append(s.entries, t)
}

func (s *Store) metadataPath() string {
	return filepath.Join(s.dir, MetadataFile)
}

// FormatEntry renders the metadata line for t (without the newline).
func FormatEntry(t track.Track) string {
	return strings.Join([]string{
		t.ID,
		strings.TrimSpace(t.Singer),
		strings.TrimSpace(t.Title),
		track.FormatDuration(t.Duration),
	}, "|")
}

// ParseEntry parses a metadata line into a cached track.
// Titles may themselves contain '|', so the id is taken from the front and
// the duration from the back.
func ParseEntry(line string) (track.Track, error) {
	first := strings.Index(line, "|")
	last := strings.LastIndex(line, "|")
	if first <= 0 || first == last {
		return track.Track{}, errors.New("expected id|singer|title|duration")
	}

	id := line[:first]
	d, err := track.ParseDuration(line[last+1:])
	if err != nil {
		return track.Track{}, errors.Wrap(err, "invalid duration")
	}

	middle := line[first+1 : last]
	sep := strings.Index(middle, "|")
	if sep < 0 {
		return track.Track{}, errors.New("expected id|singer|title|duration")
	}

	return track.Track{
		ID:       id,
		Singer:   middle[:sep],
		Title:    middle[sep+1:],
		Duration: d,
		Source:   track.SourceCache,
		State:    track.StateReady,
	}, nil
}
