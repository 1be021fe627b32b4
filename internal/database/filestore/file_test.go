package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/memory-anchor/internal/database"
)

func TestStore_RoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	if _, err := store.Get(ctx, "memoryanchor_faces"); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Put(ctx, "memoryanchor_faces", []byte("v1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, "memoryanchor_faces", []byte("v2")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	got, err := store.Get(ctx, "memoryanchor_faces")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("expected v2, got %q", got)
	}

	if err := store.Delete(ctx, "memoryanchor_faces"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "memoryanchor_faces"); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
}

func TestStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir)

	for range 3 {
		if err := store.Put(context.Background(), "k", []byte("data")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the data file, got %d entries", len(entries))
	}
}

func TestStore_PathSanitizesKey(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir)

	path := store.Path("../../etc/passwd")
	if filepath.Dir(path) != dir {
		t.Errorf("key escaped directory: %s", path)
	}
	if strings.Contains(filepath.Base(path), "/") {
		t.Errorf("unexpected separator in %s", path)
	}
}

func TestNew_EmptyDir(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty dir")
	}
}
