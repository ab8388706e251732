// Package feedstore keeps uploaded threat feeds on disk under content
// addressed names.
package feedstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTTL is how long an uploaded feed is kept
const DefaultTTL = 24 * time.Hour

// DefaultExt is used when an upload's name carries no usable extension
const DefaultExt = ".csv"

// Store provides local file storage for uploaded feeds
type Store struct {
	Dir string
	TTL time.Duration
}

// New creates a store rooted at dir, creating it if needed
func New(dir string, ttl time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	if ttl == 0 {
		ttl = DefaultTTL
	}

	return &Store{
		Dir: dir,
		TTL: ttl,
	}, nil
}

// Save copies r into the store and returns the stored path. The file is
// named after the sha256 of its content plus the extension of name, so
// identical uploads share one file and the feed loader still picks the
// parser by extension.
func (s *Store) Save(name string, r io.Reader) (string, error) {
	tmp, err := os.CreateTemp(s.Dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hash), r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("store upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}

	path := filepath.Join(s.Dir, hex.EncodeToString(hash.Sum(nil)[:16])+extension(name))
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}

	// a re-upload of known content keeps the file alive
	now := time.Now()
	_ = os.Chtimes(path, now, now)

	return path, nil
}

// Prune removes stored feeds older than the TTL and returns how many were
// removed
func (s *Store) Prune() (int, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) <= s.TTL {
			continue
		}
		if err := os.Remove(filepath.Join(s.Dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// Clear removes all stored feeds
func (s *Store) Clear() error {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			os.Remove(filepath.Join(s.Dir, entry.Name()))
		}
	}
	return nil
}

// extension returns the lower-cased extension of name when it is a plain
// alphanumeric suffix, DefaultExt otherwise.
func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) < 2 || len(ext) > 8 {
		return DefaultExt
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return DefaultExt
		}
	}
	return ext
}
