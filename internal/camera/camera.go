// Package camera provides frame sources for the scanner.
package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/memory-anchor/internal/config"
	"github.com/kozaktomas/memory-anchor/internal/constants"
	"github.com/kozaktomas/memory-anchor/internal/fingerprint"
)

// ErrReleased is returned by CurrentFrame after Release.
var ErrReleased = errors.New("frame source released")

// maxSnapshotBytes bounds a single HTTP snapshot.
const maxSnapshotBytes = 32 << 20

// SnapshotSource fetches a still image from an IP camera snapshot URL on every call.
type SnapshotSource struct {
	url     string
	maxSize int
	client  *http.Client

	mu       sync.Mutex
	released bool
}

// NewSnapshotSource creates a source for url. Frames wider or taller than
// maxSize are downscaled; zero keeps them as they are.
func NewSnapshotSource(url string, maxSize int) *SnapshotSource {
	return &SnapshotSource{
		url:     url,
		maxSize: maxSize,
		client:  &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone(), Timeout: 10 * time.Second},
	}
}

// CurrentFrame downloads the current snapshot.
func (s *SnapshotSource) CurrentFrame(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	released := s.released
	s.mu.Unlock()
	if released {
		return nil, ErrReleased
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return prepareFrame(data, s.maxSize)
}

// Release stops the source and drops pooled connections.
func (s *SnapshotSource) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	s.client.CloseIdleConnections()
	return nil
}

// DirectorySource replays the image files of a directory in name order,
// looping forever. Useful for demos and for testing without a camera.
type DirectorySource struct {
	files   []string
	maxSize int

	mu       sync.Mutex
	next     int
	released bool
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}

// NewDirectorySource lists the images in dir.
func NewDirectorySource(dir string, maxSize int) (*DirectorySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images in %s", dir)
	}
	slices.Sort(files)
	return &DirectorySource{files: files, maxSize: maxSize}, nil
}

// CurrentFrame returns the next file, wrapping around at the end.
func (d *DirectorySource) CurrentFrame(_ context.Context) ([]byte, error) {
	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		return nil, ErrReleased
	}
	path := d.files[d.next]
	d.next = (d.next + 1) % len(d.files)
	d.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read frame %s: %w", filepath.Base(path), err)
	}
	return prepareFrame(data, d.maxSize)
}

// Release stops the source.
func (d *DirectorySource) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = true
	return nil
}

// Len returns the number of frames in the loop.
func (d *DirectorySource) Len() int {
	return len(d.files)
}

func prepareFrame(data []byte, maxSize int) ([]byte, error) {
	if !fingerprint.IsImage(data) {
		return nil, errors.New("frame is not a supported image")
	}
	if maxSize <= 0 {
		return data, nil
	}
	return fingerprint.ResizeImage(data, maxSize, constants.SnapshotJPEGQuality)
}

// Source is what Open returns.
type Source interface {
	CurrentFrame(ctx context.Context) ([]byte, error)
	Release() error
}

// Open picks the configured source. The snapshot URL wins over the frame directory.
func Open(cfg *config.CameraConfig) (Source, error) {
	switch {
	case cfg.SnapshotURL != "":
		return NewSnapshotSource(cfg.SnapshotURL, cfg.MaxSize), nil
	case cfg.FrameDir != "":
		return NewDirectorySource(cfg.FrameDir, cfg.MaxSize)
	default:
		return nil, errors.New("no camera configured: set CAMERA_SNAPSHOT_URL or CAMERA_FRAME_DIR")
	}
}
