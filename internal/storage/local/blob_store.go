// Package local archives snapshots to the local filesystem.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Config captures the parameters for the local archive.
type Config struct {
	// BaseDir is the root directory for archived snapshots.
	BaseDir string
	// Keep is how many archives to retain per directory. Zero keeps all.
	Keep int
}

// BlobStore writes archived snapshots below a base directory. Archive names
// start with a UTC timestamp, so lexical order is chronological order.
type BlobStore struct {
	baseDir string
	keep    int
}

// New creates a local archive, creating BaseDir when missing.
func New(cfg Config) (*BlobStore, error) {
	base := strings.TrimSpace(cfg.BaseDir)
	if base == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if cfg.Keep < 0 {
		return nil, fmt.Errorf("keep must be >= 0")
	}
	base = filepath.Clean(base)
	if err := ensureWritableDir(base); err != nil {
		return nil, err
	}
	return &BlobStore{baseDir: base, keep: cfg.Keep}, nil
}

func ensureWritableDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create base directory: %w", err)
		}
	case err != nil:
		return fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return fmt.Errorf("base directory %s is not a directory", dir)
	}

	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("base directory is not writable: %w", err)
	}
	_ = probe.Close()
	if err := os.Remove(probe.Name()); err != nil {
		return fmt.Errorf("remove probe file: %w", err)
	}
	return nil
}

// PutObject writes data to name below the base directory and returns a
// file:// URI. Readers never observe a partial archive. Older archives in the
// same directory beyond Keep are pruned.
func (s *BlobStore) PutObject(_ context.Context, name string, _ string, data io.Reader) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("path is required")
	}
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("path %q escapes the archive directory", name)
	}
	target := filepath.Join(s.baseDir, name)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}
	if err := writeAtomic(dir, target, data); err != nil {
		return "", err
	}
	if s.keep > 0 {
		if err := s.prune(dir); err != nil {
			return "", err
		}
	}
	return "file://" + target, nil
}

func writeAtomic(dir, target string, data io.Reader) error {
	tmp, err := os.CreateTemp(dir, ".archive-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("move archive into place: %w", err)
	}
	return nil
}

func (s *BlobStore) prune(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("list archives: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	if len(names) <= s.keep {
		return nil
	}
	slices.Sort(names)
	for _, n := range names[:len(names)-s.keep] {
		if err := os.Remove(filepath.Join(dir, n)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("prune archive %s: %w", n, err)
		}
	}
	return nil
}
