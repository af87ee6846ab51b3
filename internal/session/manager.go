package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/doc-clustering/clusterview/internal/backend"
	"github.com/doc-clustering/clusterview/internal/models"
	"github.com/doc-clustering/clusterview/internal/storage"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

// DefaultMaxScreens limits concurrently open screens
const DefaultMaxScreens = 32

var (
	// ErrScreenNotFound is returned for unknown or closed screen IDs.
	ErrScreenNotFound = errors.New("screen not found")
	// ErrNoSelection is returned when the viewer has nothing to act on.
	ErrNoSelection = errors.New("no file selected")
)

// Backend is the part of the clustering service a screen uses.
type Backend interface {
	ListClusters(ctx context.Context) (models.ClusterSet, error)
	Summarize(ctx context.Context, category string) error
	FetchFile(ctx context.Context, category, filename string) (*backend.File, error)
}

// Options configures a Manager.
type Options struct {
	Poll       PollConfig
	MaxScreens int
}

// Manager owns every open clusters screen. Each screen runs its own poll
// loop under a context that is cancelled when the screen is closed.
type Manager struct {
	mu      sync.RWMutex
	screens map[string]*screen
	backend Backend
	blobs   storage.Store
	opts    Options
}

type screen struct {
	state      *models.ScreenState
	ctx        context.Context
	cancel     context.CancelFunc
	stopPoll   context.CancelFunc
	changed    chan struct{}
	done       chan struct{}
	lastAccess time.Time
	watchers   int
}

// NewManager creates a new screen manager.
func NewManager(b Backend, blobs storage.Store, opts Options) *Manager {
	opts.Poll = opts.Poll.withDefaults()
	if opts.MaxScreens <= 0 {
		opts.MaxScreens = DefaultMaxScreens
	}
	return &Manager{
		screens: make(map[string]*screen),
		backend: b,
		blobs:   blobs,
		opts:    opts,
	}
}

// Open creates a screen and starts its poll loop.
func (m *Manager) Open() models.ScreenState {
	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	pollCtx, stopPoll := context.WithCancel(ctx)

	s := &screen{
		state:      models.NewScreenState(id),
		ctx:        ctx,
		cancel:     cancel,
		stopPoll:   stopPoll,
		changed:    make(chan struct{}),
		done:       make(chan struct{}),
		lastAccess: time.Now(),
	}

	m.mu.Lock()
	if len(m.screens) >= m.opts.MaxScreens {
		m.evictOldestLocked()
	}
	m.screens[id] = s
	snapshot := s.state.Clone()
	m.mu.Unlock()

	log.Infof("[Screen %s] Opened, polling every %s up to %d attempts", id[:8], m.opts.Poll.Interval, m.opts.Poll.MaxAttempts)

	go m.runPoll(pollCtx, id, s)

	return snapshot
}

// runPoll drives the screen's poll loop. ctx ends when the screen closes or
// a refresh settles the screen first.
func (m *Manager) runPoll(ctx context.Context, id string, s *screen) {
	defer close(s.done)

	result, err := Poll(ctx, m.opts.Poll, m.backend.ListClusters, func(attempt int) {
		m.update(s, func(st *models.ScreenState) {
			st.Attempts = attempt
		})
	})
	if err != nil {
		if s.ctx.Err() == nil {
			log.Debugf("[Screen %s] Poll stopped, refresh settled the screen", id[:8])
		} else {
			log.Debugf("[Screen %s] Poll cancelled: %v", id[:8], err)
		}
		return
	}

	switch result.Status {
	case models.ScreenStatusSuccess:
		log.Infof("[Screen %s] Clusters ready after %d attempts: %d categories", id[:8], result.Attempts, len(result.Clusters))
	case models.ScreenStatusError:
		log.Warnf("[Screen %s] Listing failed on attempt %d: %v", id[:8], result.Attempts, result.Err)
	case models.ScreenStatusTimeout:
		log.Warnf("[Screen %s] No clusters after %d attempts", id[:8], result.Attempts)
	}

	m.update(s, func(st *models.ScreenState) {
		if st.Status != models.ScreenStatusLoading {
			return
		}
		st.Status = result.Status
		st.Message = result.Message()
		st.Attempts = result.Attempts
		if result.Status == models.ScreenStatusSuccess {
			st.Clusters = result.Clusters
		}
	})
}

// update applies fn to the screen state and wakes waiters. It is a no-op
// once the screen has been closed, so stale results never land.
func (m *Manager) update(s *screen, fn func(st *models.ScreenState)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ctx.Err() != nil {
		return false
	}

	fn(s.state)
	s.state.Version++
	s.state.UpdatedAt = time.Now()

	close(s.changed)
	s.changed = make(chan struct{})
	return true
}

func (m *Manager) lookup(id string) (*screen, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.screens[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScreenNotFound, id)
	}
	s.lastAccess = time.Now()
	return s, nil
}

// Get returns a snapshot of a screen.
func (m *Manager) Get(id string) (models.ScreenState, error) {
	s, err := m.lookup(id)
	if err != nil {
		return models.ScreenState{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return s.state.Clone(), nil
}

// Wait blocks until the screen's version exceeds since, then returns the
// new snapshot. It fails with ErrScreenNotFound when the screen is closed.
func (m *Manager) Wait(ctx context.Context, id string, since uint64) (models.ScreenState, error) {
	s, err := m.lookup(id)
	if err != nil {
		return models.ScreenState{}, err
	}

	for {
		m.mu.RLock()
		if s.state.Version > since {
			snapshot := s.state.Clone()
			m.mu.RUnlock()
			return snapshot, nil
		}
		changed := s.changed
		m.mu.RUnlock()

		select {
		case <-ctx.Done():
			return models.ScreenState{}, ctx.Err()
		case <-s.ctx.Done():
			return models.ScreenState{}, fmt.Errorf("%w: %s", ErrScreenNotFound, id)
		case <-changed:
		}
	}
}

// Watch marks the screen as observed until release is called. Observed
// screens are never reaped by CleanupIdle.
func (m *Manager) Watch(id string) (release func(), err error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	s.watchers++
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			s.watchers--
			s.lastAccess = time.Now()
			m.mu.Unlock()
		})
	}, nil
}

// Refresh fetches the listing once and replaces the screen's clusters.
// A failure keeps the previous clusters and sets the load error message.
func (m *Manager) Refresh(ctx context.Context, id string) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	// settled is set when this refresh ends a screen that was still loading;
	// the poll loop is then stopped so it cannot overwrite the outcome.
	settled := false
	defer func() {
		if settled {
			s.stopPoll()
		}
	}()

	set, err := m.backend.ListClusters(ctx)
	if err != nil {
		log.Warnf("[Screen %s] Refresh failed: %v", id[:8], err)
		m.update(s, func(st *models.ScreenState) {
			settled = st.Status == models.ScreenStatusLoading
			st.Status = models.ScreenStatusError
			st.Message = MsgLoadFailed
		})
		return err
	}

	m.update(s, func(st *models.ScreenState) {
		st.Clusters = set
		st.Message = ""
		// An empty refresh while the loop is still polling leaves it in charge
		if st.Status != models.ScreenStatusLoading || !set.Empty() {
			settled = st.Status == models.ScreenStatusLoading
			st.Status = models.ScreenStatusSuccess
		}
	})
	return nil
}

// Summarize asks the backend for summaries of category and, on success,
// re-fetches the listing. The re-fetch outcome is reported through the
// screen state, not the returned error.
func (m *Manager) Summarize(ctx context.Context, id, category string) error {
	if _, err := m.lookup(id); err != nil {
		return err
	}

	if err := m.backend.Summarize(ctx, category); err != nil {
		log.Warnf("[Screen %s] Summarize %q failed: %v", id[:8], category, err)
		return fmt.Errorf("summarize %s: %w", category, err)
	}

	log.Infof("[Screen %s] Summaries generated for %q", id[:8], category)
	_ = m.Refresh(ctx, id)
	return nil
}

// Select dispatches a click on filename within category.
func (m *Manager) Select(ctx context.Context, id, category, filename string) (*Action, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	switch classify(filename) {
	case dispatchTextScreen:
		return &Action{Type: ActionNavigate, URL: models.TextPath(category, filename)}, nil

	case dispatchInlineText:
		f, err := m.backend.FetchFile(ctx, category, filename)
		if err != nil {
			return nil, fmt.Errorf("fetch %s/%s: %w", category, filename, err)
		}
		sel := &models.SelectedFile{
			Category:    category,
			Filename:    filename,
			Kind:        models.FileKindText,
			Content:     string(f.Data),
			OriginalURL: models.RawPath(category, filename),
		}
		if !m.replaceSelection(s, sel) {
			return nil, fmt.Errorf("%w: %s", ErrScreenNotFound, id)
		}
		return &Action{Type: ActionInline, Selected: sel}, nil

	case dispatchPDF:
		return m.selectPDF(ctx, id, s, category, filename)

	default:
		return &Action{Type: ActionOpen, URL: models.RawPath(category, filename)}, nil
	}
}

func (m *Manager) selectPDF(ctx context.Context, id string, s *screen, category, filename string) (*Action, error) {
	fallback := &Action{Type: ActionOpen, URL: models.RawPath(category, filename)}

	f, err := m.backend.FetchFile(ctx, category, filename)
	if err != nil {
		log.Warnf("[Screen %s] Fetch PDF %s/%s failed, opening in new tab: %v", id[:8], category, filename, err)
		m.replaceSelection(s, nil)
		return fallback, nil
	}

	handle, err := m.blobs.Acquire(id, filename, "application/pdf", bytes.NewReader(f.Data))
	if err != nil {
		log.Errorf("[Screen %s] Acquire blob for %s failed: %v", id[:8], filename, err)
		m.replaceSelection(s, nil)
		return fallback, nil
	}

	sel := &models.SelectedFile{
		Category:    category,
		Filename:    filename,
		Kind:        models.FileKindPDF,
		BlobID:      handle.ID,
		BlobURL:     handle.URL(),
		OriginalURL: fallback.URL,
	}
	if !m.replaceSelection(s, sel) {
		// Closed while fetching: the handle must not outlive the screen
		m.blobs.Release(handle.ID)
		return nil, fmt.Errorf("%w: %s", ErrScreenNotFound, id)
	}
	return &Action{Type: ActionInline, Selected: sel}, nil
}

// replaceSelection swaps the viewer content and releases the blob of the
// previous selection, if any.
func (m *Manager) replaceSelection(s *screen, sel *models.SelectedFile) bool {
	var previous *models.SelectedFile
	ok := m.update(s, func(st *models.ScreenState) {
		previous = st.Selected
		st.Selected = sel
	})
	if ok && previous != nil && previous.BlobID != "" {
		m.blobs.Release(previous.BlobID)
	}
	return ok
}

// CloseViewer clears the selection and releases its blob.
func (m *Manager) CloseViewer(id string) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	m.replaceSelection(s, nil)
	return nil
}

// ReportViewerFailure handles a PDF the page could not render: the selection
// is cleared and the page is told to open the original file in a new tab.
func (m *Manager) ReportViewerFailure(id string) (*Action, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	sel := s.state.Selected
	m.mu.RUnlock()
	if sel == nil {
		return nil, ErrNoSelection
	}

	log.Warnf("[Screen %s] Viewer could not render %s, opening in new tab", id[:8], sel.Filename)
	m.replaceSelection(s, nil)
	return &Action{Type: ActionOpen, URL: sel.OriginalURL}, nil
}

// Close tears a screen down: its poll loop is cancelled, waiters are woken
// and every blob it holds is released.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.screens[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrScreenNotFound, id)
	}
	delete(m.screens, id)
	s.cancel()
	m.mu.Unlock()

	released := m.blobs.ReleaseOwner(id)
	log.Infof("[Screen %s] Closed, released %d blobs", id[:8], released)
	return nil
}

// Done returns a channel closed when the screen's poll loop has exited.
func (m *Manager) Done(id string) (<-chan struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.screens[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScreenNotFound, id)
	}
	return s.done, nil
}

// CleanupIdle closes unobserved screens not accessed within maxIdle.
func (m *Manager) CleanupIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.RLock()
	var stale []string
	for id, s := range m.screens {
		if s.watchers == 0 && s.lastAccess.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	closed := 0
	for _, id := range stale {
		if m.Close(id) == nil {
			closed++
		}
	}
	return closed
}

// CloseAll closes every screen, for shutdown.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.screens))
	for id := range m.screens {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Close(id)
	}
}

// Count returns the number of open screens.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.screens)
}

// evictOldestLocked closes the least recently used unobserved screen,
// falling back to the least recently used one. Caller holds m.mu.
func (m *Manager) evictOldestLocked() {
	var oldestID string
	var oldest *screen
	for id, s := range m.screens {
		better := oldest == nil ||
			(s.watchers == 0 && oldest.watchers > 0) ||
			((s.watchers == 0) == (oldest.watchers == 0) && s.lastAccess.Before(oldest.lastAccess))
		if better {
			oldestID, oldest = id, s
		}
	}
	if oldest == nil {
		return
	}

	delete(m.screens, oldestID)
	oldest.cancel()
	m.blobs.ReleaseOwner(oldestID)
	log.Infof("[Screen %s] Evicted to stay within %d screens", oldestID[:8], m.opts.MaxScreens)
}
