package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/doc-clustering/clusterview/internal/models"
	"github.com/google/uuid"
)

// ErrBlobNotFound is returned for unknown or already released handles.
var ErrBlobNotFound = errors.New("blob not found")

// Store defines the interface for temporary blob handles.
type Store interface {
	Acquire(owner, name, contentType string, r io.Reader) (*models.BlobHandle, error)
	Get(id string) (*models.BlobHandle, error)
	Open(id string) (*os.File, *models.BlobHandle, error)
	Release(id string) error
	ReleaseOwner(owner string) int
	Count() int
}

// LocalStore implements Store using the local filesystem.
type LocalStore struct {
	mu      sync.RWMutex
	blobDir string
	blobs   map[string]*models.BlobHandle
}

// NewLocalStore creates a new LocalStore. Files left over from a previous
// run are removed, since no handle can refer to them any more.
func NewLocalStore(blobDir string) (*LocalStore, error) {
	if err := os.MkdirAll(blobDir, 0755); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}

	entries, err := os.ReadDir(blobDir)
	if err != nil {
		return nil, fmt.Errorf("reading blob directory: %w", err)
	}
	for _, e := range entries {
		if _, err := uuid.Parse(e.Name()); err == nil && !e.IsDir() {
			os.Remove(filepath.Join(blobDir, e.Name()))
		}
	}

	return &LocalStore{
		blobDir: blobDir,
		blobs:   make(map[string]*models.BlobHandle),
	}, nil
}

// Acquire copies r into a new blob owned by owner.
func (s *LocalStore) Acquire(owner, name, contentType string, r io.Reader) (*models.BlobHandle, error) {
	id := uuid.New().String()
	path := filepath.Join(s.blobDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating blob: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing blob: %w", err)
	}

	handle := &models.BlobHandle{
		ID:          id,
		Owner:       owner,
		Name:        name,
		ContentType: contentType,
		Size:        size,
		CreatedAt:   time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[id] = handle

	return handle, nil
}

// Get retrieves handle metadata by ID.
func (s *LocalStore) Get(id string) (*models.BlobHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	handle, ok := s.blobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, id)
	}

	return handle, nil
}

// Open returns the blob's file for reading. The caller closes it.
// An open file stays readable even if the handle is released meanwhile.
func (s *LocalStore) Open(id string) (*os.File, *models.BlobHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	handle, ok := s.blobs[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrBlobNotFound, id)
	}

	f, err := os.Open(filepath.Join(s.blobDir, id))
	if err != nil {
		return nil, nil, fmt.Errorf("opening blob: %w", err)
	}

	return f, handle, nil
}

// Release deletes a blob and forgets its handle.
func (s *LocalStore) Release(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrBlobNotFound, id)
	}

	return s.removeLocked(id)
}

// ReleaseOwner releases every blob held by owner and returns how many.
func (s *LocalStore) ReleaseOwner(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	released := 0
	for id, handle := range s.blobs {
		if handle.Owner != owner {
			continue
		}
		if err := s.removeLocked(id); err == nil {
			released++
		}
	}

	return released
}

// Count returns the number of live handles.
func (s *LocalStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

func (s *LocalStore) removeLocked(id string) error {
	delete(s.blobs, id)

	path := filepath.Join(s.blobDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting blob: %w", err)
	}

	return nil
}
