// Package storage provides on-disk storage for uploaded retinal images. It
// defines the Store interface, a disk-backed implementation, and the
// validation rules applied to uploads.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrMissingFileName    = errors.New("file name is required")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
)

// MaxFileSize is the maximum allowed upload size in bytes (20 MB).
const MaxFileSize = 20 * 1024 * 1024

// AllowedContentTypes lists accepted retinal-image MIME types.
var AllowedContentTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
}

// Store is the contract for image storage backends.
type Store interface {
	// Save persists the content under a name derived from originalName and
	// returns the stored path.
	Save(originalName string, content io.Reader) (string, error)
	// Remove deletes a stored file. Callers treat failures as best-effort.
	Remove(path string) error
}

// DiskStore stores files in a single directory, keyed by upload timestamp
// plus the original file name.
type DiskStore struct {
	dir string
	now func() time.Time
}

// NewDiskStore creates the storage directory if needed and returns a store
// rooted there.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory %s: %w", dir, err)
	}
	return &DiskStore{dir: dir, now: time.Now}, nil
}

// Dir returns the storage root directory.
func (s *DiskStore) Dir() string { return s.dir }

func (s *DiskStore) Save(originalName string, content io.Reader) (string, error) {
	base := sanitizeName(originalName)
	if base == "" {
		return "", ErrMissingFileName
	}

	name := fmt.Sprintf("%d-%s", s.now().UnixMilli(), base)
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file %s: %w", path, err)
	}

	// Read one byte past the limit to detect oversized uploads.
	n, err := io.Copy(f, io.LimitReader(content, MaxFileSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write file %s: %w", path, err)
	}
	if n > MaxFileSize {
		os.Remove(path)
		return "", ErrFileTooLarge
	}

	return path, nil
}

func (s *DiskStore) Remove(path string) error {
	if path == "" {
		return nil
	}
	return os.Remove(path)
}

// sanitizeName strips any directory components and characters that are
// unsafe in a file name.
func sanitizeName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
}
