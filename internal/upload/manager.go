package upload

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/doc-clustering/clusterview/internal/backend"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

// ErrNoFiles is returned when a submission has an empty selection.
var ErrNoFiles = errors.New("no files selected")

// Status represents the upload status.
type Status string

const (
	StatusSending  Status = "sending"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Job records one forwarded upload.
type Job struct {
	ID          string     `json:"id"`
	FileCount   int        `json:"fileCount"`
	TotalBytes  int64      `json:"totalBytes"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Uploader is the part of the backend client the manager needs.
type Uploader interface {
	Upload(ctx context.Context, parts []backend.Part) error
}

// Manager forwards selections to the backend and keeps a record of each.
type Manager struct {
	jobs     map[string]*Job
	mu       sync.RWMutex
	uploader Uploader
}

// NewManager creates a new upload manager.
func NewManager(uploader Uploader) *Manager {
	return &Manager{
		jobs:     make(map[string]*Job),
		uploader: uploader,
	}
}

// Submit sends sel to the backend and waits for the answer. An empty
// selection fails with ErrNoFiles before any request is made.
func (m *Manager) Submit(ctx context.Context, sel *Selection) (*Job, error) {
	if sel.Len() == 0 {
		return nil, ErrNoFiles
	}

	job := &Job{
		ID:         uuid.New().String(),
		FileCount:  sel.Len(),
		TotalBytes: sel.TotalSize(),
		Status:     StatusSending,
		CreatedAt:  time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	log.Infof("[Upload %s] Sending %d files (%d bytes)", job.ID[:8], job.FileCount, job.TotalBytes)

	if err := m.uploader.Upload(ctx, sel.Parts()); err != nil {
		m.markJobError(job, err)
		return m.snapshot(job), err
	}

	m.markJobComplete(job)
	log.Infof("[Upload %s] Complete in %s", job.ID[:8], job.CompletedAt.Sub(job.CreatedAt).Round(time.Millisecond))
	return m.snapshot(job), nil
}

// GetJob retrieves a job by ID.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	cp := *job
	return &cp, true
}

func (m *Manager) snapshot(job *Job) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := *job
	return &cp
}

// markJobComplete marks job as complete (thread-safe).
func (m *Manager) markJobComplete(job *Job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusComplete
	now := time.Now()
	job.CompletedAt = &now
}

// markJobError marks job as failed (thread-safe).
func (m *Manager) markJobError(job *Job, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusError
	job.Error = err.Error()
	now := time.Now()
	job.CompletedAt = &now
	log.Warnf("[Upload %s] Error: %v", job.ID[:8], err)
}

// CleanupOldJobs removes finished jobs older than maxAge and returns how many.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for id, job := range m.jobs {
		if job.Status == StatusComplete || job.Status == StatusError {
			if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
				delete(m.jobs, id)
				removed++
			}
		}
	}
	return removed
}
