package images

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var (
	jpegData = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	pngData  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00}
)

func TestNewDirStore_RequiresDir(t *testing.T) {
	if _, err := NewDirStore(""); err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestDirStore_SaveOpen(t *testing.T) {
	store, err := NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}

	ref, err := store.Save("person_1", jpegData)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ref != "person_1.jpg" {
		t.Errorf("expected ref person_1.jpg, got %s", ref)
	}

	rc, mime, err := store.Open("person_1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	if mime != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", mime)
	}
	got, _ := io.ReadAll(rc)
	if string(got) != string(jpegData) {
		t.Error("read data differs from saved data")
	}
}

func TestDirStore_SaveReplacesOtherFormat(t *testing.T) {
	store, _ := NewDirStore(t.TempDir())

	if _, err := store.Save("person_1", jpegData); err != nil {
		t.Fatalf("Save jpeg: %v", err)
	}
	ref, err := store.Save("person_1", pngData)
	if err != nil {
		t.Fatalf("Save png: %v", err)
	}
	if ref != "person_1.png" {
		t.Errorf("expected ref person_1.png, got %s", ref)
	}

	rc, mime, err := store.Open("person_1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rc.Close()
	if mime != "image/png" {
		t.Errorf("expected old jpeg to be gone, got %s", mime)
	}
}

func TestDirStore_Delete(t *testing.T) {
	store, _ := NewDirStore(t.TempDir())
	if _, err := store.Save("person_1", jpegData); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.Delete("person_1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := store.Open("person_1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete("person_1"); err != nil {
		t.Errorf("deleting a missing image should succeed, got %v", err)
	}
}

func TestDirStore_EmptyID(t *testing.T) {
	store, _ := NewDirStore(t.TempDir())

	if _, err := store.Save("", jpegData); err == nil {
		t.Error("expected error for empty id")
	}
	if _, _, err := store.Open(""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDirStore_IDsOutsidePlainCharset(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewDirStore(dir)

	for _, id := range []string{"sarah.banerjee", "Jiří", "person 1", "../etc/passwd", "a/b"} {
		t.Run(id, func(t *testing.T) {
			ref, err := store.Save(id, pngData)
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			if filepath.Base(ref) != ref || !strings.HasPrefix(ref, "~") {
				t.Errorf("expected hashed file name inside the store, got %q", ref)
			}
			if _, err := os.Stat(filepath.Join(dir, ref)); err != nil {
				t.Errorf("expected %s in store directory: %v", ref, err)
			}

			rc, mime, err := store.Open(id)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			rc.Close()
			if mime != "image/png" {
				t.Errorf("expected image/png, got %s", mime)
			}

			if err := store.Delete(id); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, _, err := store.Open(id); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}

func TestDirStore_HashedIDsDoNotCollide(t *testing.T) {
	store, _ := NewDirStore(t.TempDir())

	if _, err := store.Save("a.b", jpegData); err != nil {
		t.Fatalf("Save a.b: %v", err)
	}
	if _, err := store.Save("a b", pngData); err != nil {
		t.Fatalf("Save a b: %v", err)
	}

	rc, mime, err := store.Open("a.b")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rc.Close()
	if mime != "image/jpeg" {
		t.Errorf("expected a.b to keep its jpeg, got %s", mime)
	}
}
