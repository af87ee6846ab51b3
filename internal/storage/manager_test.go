// manager_test.go - Tests for the blob store
package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func createTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestNewLocalStore(t *testing.T) {
	t.Run("creates blob directory", func(t *testing.T) {
		blobDir := filepath.Join(t.TempDir(), "blobs")

		if _, err := NewLocalStore(blobDir); err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}

		if _, err := os.Stat(blobDir); os.IsNotExist(err) {
			t.Error("Expected blob directory to be created")
		}
	})

	t.Run("removes stale blobs from a previous run", func(t *testing.T) {
		blobDir := t.TempDir()
		stale := filepath.Join(blobDir, "0b6f4bd4-3f43-4e4e-9a4b-0d0c6a4e9d11")
		keep := filepath.Join(blobDir, "README")
		os.WriteFile(stale, []byte("old"), 0644)
		os.WriteFile(keep, []byte("not a blob"), 0644)

		if _, err := NewLocalStore(blobDir); err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}

		if _, err := os.Stat(stale); !os.IsNotExist(err) {
			t.Error("Expected stale blob to be removed")
		}
		if _, err := os.Stat(keep); err != nil {
			t.Error("Expected unrelated file to be kept")
		}
	})
}

func TestLocalStore_AcquireAndOpen(t *testing.T) {
	store := createTestStore(t)

	content := "%PDF-1.4 fake body"
	handle, err := store.Acquire("screen-1", "paper.pdf", "application/pdf", strings.NewReader(content))
	if err != nil {
		t.Fatalf("Failed to acquire blob: %v", err)
	}

	if handle.ID == "" {
		t.Error("Expected ID to be set")
	}
	if handle.Size != int64(len(content)) {
		t.Errorf("Expected size %d, got %d", len(content), handle.Size)
	}
	if handle.URL() != "/blobs/"+handle.ID {
		t.Errorf("Unexpected URL %q", handle.URL())
	}

	f, got, err := store.Open(handle.ID)
	if err != nil {
		t.Fatalf("Failed to open blob: %v", err)
	}
	defer f.Close()

	data, _ := io.ReadAll(f)
	if string(data) != content {
		t.Errorf("Expected content %q, got %q", content, string(data))
	}
	if got.ContentType != "application/pdf" {
		t.Errorf("Expected content type application/pdf, got %s", got.ContentType)
	}
}

func TestLocalStore_Release(t *testing.T) {
	store := createTestStore(t)

	handle, _ := store.Acquire("screen-1", "a.pdf", "application/pdf", strings.NewReader("a"))

	if err := store.Release(handle.ID); err != nil {
		t.Fatalf("Failed to release blob: %v", err)
	}

	if _, err := store.Get(handle.ID); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("Expected ErrBlobNotFound after release, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.blobDir, handle.ID)); !os.IsNotExist(err) {
		t.Error("Expected blob file to be deleted")
	}
	if err := store.Release(handle.ID); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("Expected second release to fail with ErrBlobNotFound, got %v", err)
	}
}

func TestLocalStore_ReleaseOwner(t *testing.T) {
	store := createTestStore(t)

	store.Acquire("screen-1", "a.pdf", "application/pdf", strings.NewReader("a"))
	store.Acquire("screen-1", "b.pdf", "application/pdf", strings.NewReader("b"))
	other, _ := store.Acquire("screen-2", "c.pdf", "application/pdf", strings.NewReader("c"))

	if n := store.ReleaseOwner("screen-1"); n != 2 {
		t.Errorf("Expected 2 released blobs, got %d", n)
	}
	if store.Count() != 1 {
		t.Errorf("Expected 1 remaining blob, got %d", store.Count())
	}
	if _, err := store.Get(other.ID); err != nil {
		t.Errorf("Expected other owner's blob to survive: %v", err)
	}
	if n := store.ReleaseOwner("screen-1"); n != 0 {
		t.Errorf("Expected nothing left to release, got %d", n)
	}
}

func TestLocalStore_OpenUnknown(t *testing.T) {
	store := createTestStore(t)

	if _, _, err := store.Open("does-not-exist"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("Expected ErrBlobNotFound, got %v", err)
	}
}
