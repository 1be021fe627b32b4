// Package images keeps enrollment photos on disk, one file per person.
package images

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/kozaktomas/memory-anchor/internal/fingerprint"
)

// ErrNotFound is returned by Open when no image exists for the id.
var ErrNotFound = errors.New("image not found")

var safeID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// fileStem maps an id to the file name used on disk. Plain ids are kept
// readable; anything else is hashed behind a "~" prefix, which no plain id
// can start with.
func fileStem(id string) (string, bool) {
	if id == "" {
		return "", false
	}
	if safeID.MatchString(id) {
		return id, true
	}
	sum := sha256.Sum256([]byte(id))
	return "~" + hex.EncodeToString(sum[:]), true
}

// DirStore saves images under dir as <stem><ext>.
type DirStore struct {
	dir string
	mu  sync.Mutex
}

// NewDirStore creates the directory if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if dir == "" {
		return nil, errors.New("image directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

func extensionFor(data []byte) string {
	switch fingerprint.DetectMIMEType(data) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ".jpg"
	}
}

// Save writes data for id, replacing any earlier image, and returns the
// reference to store in the registry (the file name relative to the store).
func (s *DirStore) Save(id string, data []byte) (string, error) {
	stem, ok := fileStem(id)
	if !ok {
		return "", errors.New("image id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.removeLocked(stem); err != nil {
		return "", err
	}
	name := stem + extensionFor(data)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write image %s: %w", name, err)
	}
	return name, nil
}

// Open returns the image for id with its MIME type. The caller closes the reader.
func (s *DirStore) Open(id string) (io.ReadCloser, string, error) {
	stem, ok := fileStem(id)
	if !ok {
		return nil, "", ErrNotFound
	}
	matches, _ := filepath.Glob(filepath.Join(s.dir, stem+".*"))
	if len(matches) == 0 {
		return nil, "", ErrNotFound
	}

	f, err := os.Open(matches[0])
	if err != nil {
		return nil, "", fmt.Errorf("open image: %w", err)
	}
	head := make([]byte, 16)
	n, _ := io.ReadFull(f, head)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("rewind image: %w", err)
	}
	return f, fingerprint.DetectMIMEType(head[:n]), nil
}

// Delete removes the image for id if present.
func (s *DirStore) Delete(id string) error {
	stem, ok := fileStem(id)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(stem)
}

func (s *DirStore) removeLocked(stem string) error {
	matches, _ := filepath.Glob(filepath.Join(s.dir, stem+".*"))
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove image %s: %w", filepath.Base(m), err)
		}
	}
	return nil
}
