package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// CurrentIndexVersion is the current schema version for the profile index.
const CurrentIndexVersion = 1

// IndexFile is the name of the index inside a profile directory.
const IndexFile = "profiles.json"

var (
	// ErrIndexNotFound indicates the index file does not exist.
	ErrIndexNotFound = errors.New("profile index not found")

	// ErrEntryExists indicates the username is already in the index.
	ErrEntryExists = errors.New("profile already recorded")
)

// Entry describes one issued profile record. It never holds the password.
type Entry struct {
	Username string    `json:"username"`
	File     string    `json:"file"`
	Created  time.Time `json:"created"`
}

// IndexData is the on-disk form of the index.
type IndexData struct {
	Version  int     `json:"version"`
	Profiles []Entry `json:"profiles"`
}

// IndexPath returns the index location for a profile directory.
func IndexPath(dir string) string {
	return filepath.Join(dir, IndexFile)
}

// Index provides serialized access to a directory's profile index.
type Index struct {
	mu  sync.Mutex
	dir string
}

// NewIndex creates an Index for dir.
func NewIndex(dir string) *Index {
	return &Index{dir: dir}
}

func (x *Index) loadLocked() (*IndexData, error) {
	path := IndexPath(x.dir)
	data, err := os.ReadFile(path) //nolint:gosec // G304: path under the configured output dir
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, path)
		}
		return nil, fmt.Errorf("reading profile index: %w", err)
	}

	var idx IndexData
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing profile index: %w", err)
	}
	return &idx, nil
}

func (x *Index) saveLocked(idx *IndexData) error {
	path := IndexPath(x.dir)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding profile index: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing profile index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing profile index: %w", err)
	}
	return nil
}

// Add appends an entry. Returns ErrEntryExists if the username is present.
func (x *Index) Add(e Entry) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	idx, err := x.loadLocked()
	if err != nil {
		if !errors.Is(err, ErrIndexNotFound) {
			return err
		}
		idx = &IndexData{Version: CurrentIndexVersion, Profiles: []Entry{}}
	}

	for _, existing := range idx.Profiles {
		if existing.Username == e.Username {
			return fmt.Errorf("%w: %s", ErrEntryExists, e.Username)
		}
	}

	idx.Profiles = append(idx.Profiles, e)
	return x.saveLocked(idx)
}

// List returns all entries ordered by creation time. A missing index yields
// no entries and no error.
func (x *Index) List() ([]Entry, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	idx, err := x.loadLocked()
	if err != nil {
		if errors.Is(err, ErrIndexNotFound) {
			return nil, nil
		}
		return nil, err
	}

	out := append([]Entry(nil), idx.Profiles...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out, nil
}
