package services

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

const cacheVersion = "v2"

func (a *Analytics) cacheFilename(hash string) string {
	return filepath.Join(a.opts.CacheDir, fmt.Sprintf("%s_%s.gob", hash, cacheVersion))
}

func (a *Analytics) saveToCache(b *Bundle) error {
	if a.opts.CacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(a.opts.CacheDir, 0o755); err != nil {
		return err
	}

	// Write then rename so a concurrent reader never sees a partial file.
	final := a.cacheFilename(b.Fingerprint.Hash)
	file, err := os.CreateTemp(a.opts.CacheDir, "bundle-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(file.Name())

	if err := gob.NewEncoder(file).Encode(b); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(file.Name(), final)
}

func (a *Analytics) loadFromCache(hash string) (*Bundle, error) {
	if a.opts.CacheDir == "" {
		return nil, os.ErrNotExist
	}
	file, err := os.Open(a.cacheFilename(hash))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var b Bundle
	if err := gob.NewDecoder(file).Decode(&b); err != nil {
		return nil, err
	}
	return &b, nil
}
