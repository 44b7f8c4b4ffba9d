package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Cache persists a bounded list of history entries between runs.
//
// Implementations are not required to be safe for concurrent use;
// last-writer-wins is the expected discipline.
type Cache interface {
	Load() ([]Entry, error)
	Save([]Entry) error
}

// FileCache stores entries as a JSON array in a single file.
//
// A missing or malformed file loads as empty rather than failing: the cache
// is advisory and is rebuilt from the backend on the next merge. Writes go
// through a temp file and rename so a crash never leaves a torn file.
type FileCache struct {
	path  string
	limit int
}

// NewFileCache creates a file-backed cache at path holding at most limit
// entries. A limit <= 0 falls back to DefaultLimit.
func NewFileCache(path string, limit int) *FileCache {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &FileCache{path: strings.TrimSpace(path), limit: limit}
}

func (c *FileCache) Path() string {
	return c.path
}

func (c *FileCache) Load() ([]Entry, error) {
	if c.path == "" {
		return nil, fmt.Errorf("history cache path is empty")
	}
	b, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history cache: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		// Malformed cache is discarded, not surfaced.
		return nil, nil
	}
	return entries, nil
}

func (c *FileCache) Save(entries []Entry) error {
	if c.path == "" {
		return fmt.Errorf("history cache path is empty")
	}
	entries = Trim(entries, c.limit)

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history cache: %w", err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(dir, "history.json.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}
