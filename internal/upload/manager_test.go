package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/doc-clustering/clusterview/internal/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingUploader struct {
	mu    sync.Mutex
	calls int
	names []string
	err   error
}

func (u *recordingUploader) Upload(_ context.Context, parts []backend.Part) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	for _, p := range parts {
		rc, err := p.Open()
		if err != nil {
			return err
		}
		io.Copy(io.Discard, rc)
		rc.Close()
		u.names = append(u.names, p.Name)
	}
	return u.err
}

func TestManager_SubmitEmptySelection(t *testing.T) {
	up := &recordingUploader{}
	m := NewManager(up)

	job, err := m.Submit(context.Background(), &Selection{})
	assert.ErrorIs(t, err, ErrNoFiles)
	assert.Nil(t, job)
	assert.Equal(t, 0, up.calls, "empty selection must not reach the backend")

	_, err = m.Submit(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFiles)
	assert.Equal(t, 0, up.calls)
}

func TestManager_SubmitSuccess(t *testing.T) {
	root := filepath.Join(t.TempDir(), "docs")
	writeFile(t, filepath.Join(root, "a.txt"), "alpha")
	writeFile(t, filepath.Join(root, "b.txt"), "beta")
	sel, err := FromDirectory(root)
	require.NoError(t, err)

	up := &recordingUploader{}
	m := NewManager(up)

	job, err := m.Submit(context.Background(), sel)
	require.NoError(t, err)

	assert.Equal(t, StatusComplete, job.Status)
	assert.Equal(t, 2, job.FileCount)
	assert.Equal(t, int64(9), job.TotalBytes)
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, []string{"docs/a.txt", "docs/b.txt"}, up.names)

	stored, ok := m.GetJob(job.ID)
	require.True(t, ok)
	assert.Equal(t, StatusComplete, stored.Status)
}

func TestManager_SubmitFailure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "docs")
	writeFile(t, filepath.Join(root, "a.txt"), "alpha")
	sel, _ := FromDirectory(root)

	up := &recordingUploader{err: errors.New("backend said no")}
	m := NewManager(up)

	job, err := m.Submit(context.Background(), sel)
	require.Error(t, err)
	require.NotNil(t, job)
	assert.Equal(t, StatusError, job.Status)
	assert.Equal(t, "backend said no", job.Error)
	assert.Equal(t, 1, up.calls, "failed upload is not retried")
}

func TestManager_CleanupOldJobs(t *testing.T) {
	m := NewManager(&recordingUploader{})

	old := time.Now().Add(-2 * time.Hour)
	recent := time.Now()
	m.jobs["old"] = &Job{ID: "old", Status: StatusComplete, CompletedAt: &old}
	m.jobs["recent"] = &Job{ID: "recent", Status: StatusError, CompletedAt: &recent}
	m.jobs["sending"] = &Job{ID: "sending", Status: StatusSending}

	assert.Equal(t, 1, m.CleanupOldJobs(time.Hour))

	_, ok := m.GetJob("old")
	assert.False(t, ok)
	_, ok = m.GetJob("recent")
	assert.True(t, ok)
	_, ok = m.GetJob("sending")
	assert.True(t, ok)
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"empty selection", ErrNoFiles, MsgNoFiles},
		{"wrapped empty selection", fmt.Errorf("submit: %w", ErrNoFiles), MsgNoFiles},
		{"backend rejected", &backend.StatusError{Method: "POST", URL: "/upload/", StatusCode: 500}, MsgUploadFailed},
		{"wrapped rejection", fmt.Errorf("upload: %w", &backend.StatusError{StatusCode: 413}), MsgUploadFailed},
		{"transport failure", errors.New("dial tcp: connection refused"), MsgUploadError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FailureMessage(tt.err))
		})
	}
}
