// Package cache is the device-side durable store: each logical collection
// is one JSON document on disk. It is hydrated on startup before any
// network join completes, so a device is usable fully offline.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

type Cache struct {
	mu  sync.Mutex
	dir string
}

// New creates a cache rooted at dir, creating it if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Save persists a collection. The write is atomic (temp file + rename) so
// a crash mid-write never corrupts the previous copy.
func (c *Cache) Save(collection string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", collection, err)
	}

	path := c.path(collection)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", collection, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", collection, err)
	}
	return nil
}

// Load reads a collection into v. It reports false without error when the
// collection has never been saved.
func (c *Cache) Load(collection string, v any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path(collection))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", collection, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", collection, err)
	}
	return true, nil
}

// Delete removes a collection; deleting one that does not exist is a no-op.
func (c *Cache) Delete(collection string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.Remove(c.path(collection))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", collection, err)
	}
	return nil
}

func (c *Cache) path(collection string) string {
	return filepath.Join(c.dir, collection+".json")
}
