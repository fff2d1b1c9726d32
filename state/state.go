// Package state persists the set of crawled URLs so an interrupted crawl can
// be resumed.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ErrCorrupt is returned by Load when the checkpoint cannot be decoded.
var ErrCorrupt = errors.New("corrupt crawl state")

// Checkpoint is the on-disk record.
type Checkpoint struct {
	CrawledURLs []string `json:"crawled_urls"`
	Count       int      `json:"count"`
}

// Set is a set of crawled URLs.
type Set map[string]struct{}

// Has reports whether url is in the set.
func (s Set) Has(url string) bool {
	_, ok := s[url]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	urls := make([]string, 0, len(s))
	for u := range s {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// Save overwrites stateFile with the given URLs, creating parent
// directories as needed. The write goes through a temporary file and a
// rename so a crash never leaves a half-written checkpoint.
func Save(crawledURLs []string, stateFile string) error {
	dir := filepath.Dir(stateFile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	urls := crawledURLs
	if urls == nil {
		urls = []string{}
	}
	data, err := json.Marshal(Checkpoint{CrawledURLs: urls, Count: len(urls)})
	if err != nil {
		return fmt.Errorf("encode crawl state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".crawl_state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, stateFile); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Load returns the URLs recorded in stateFile. A missing file yields an
// empty set; a file that cannot be decoded is an error wrapping ErrCorrupt.
func Load(stateFile string) (Set, error) {
	data, err := os.ReadFile(stateFile)
	if errors.Is(err, fs.ErrNotExist) {
		return Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, stateFile, err)
	}

	set := make(Set, len(cp.CrawledURLs))
	for _, u := range cp.CrawledURLs {
		set[u] = struct{}{}
	}
	return set, nil
}

// Store binds Save and Load to one checkpoint path.
type Store struct {
	Path string
}

// NewStore returns a Store for path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Save writes urls to the store's checkpoint.
func (s *Store) Save(urls []string) error {
	return Save(urls, s.Path)
}

// Load reads the store's checkpoint.
func (s *Store) Load() (Set, error) {
	return Load(s.Path)
}
