// fake_backend.go - Scripted clustering backend for tests
package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/doc-clustering/clusterview/internal/backend"
	"github.com/doc-clustering/clusterview/internal/models"
)

// ErrUnavailable simulates a transport failure.
var ErrUnavailable = errors.New("connection refused")

// ListResponse is one scripted reply of the listing endpoint.
type ListResponse struct {
	Clusters models.ClusterSet
	Err      error
}

// FakeBackend implements the backend calls used by screens and uploads.
// Listing replies are consumed in order; the last one repeats.
type FakeBackend struct {
	mu           sync.Mutex
	listings     []ListResponse
	listCalls    int
	files        map[string]*backend.File
	fileErrs     map[string]error
	summarizeErr error
	summarized   []string
	onSummarize  func(category string)
	uploads      [][]string
	uploadErr    error
}

// NewFakeBackend creates a backend replying with the given listings.
func NewFakeBackend(listings ...ListResponse) *FakeBackend {
	return &FakeBackend{
		listings: listings,
		files:    make(map[string]*backend.File),
		fileErrs: make(map[string]error),
	}
}

// Clusters is a shorthand for a successful listing reply.
func Clusters(set models.ClusterSet) ListResponse {
	return ListResponse{Clusters: set}
}

// Empty is a shorthand for an empty listing reply.
func Empty() ListResponse {
	return ListResponse{Clusters: models.ClusterSet{}}
}

// Failure is a shorthand for a failed listing reply.
func Failure(err error) ListResponse {
	return ListResponse{Err: err}
}

// SetListings replaces the scripted replies and resets the cursor.
func (f *FakeBackend) SetListings(listings ...ListResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings = listings
	f.listCalls = 0
}

// AddFile registers a file body.
func (f *FakeBackend) AddFile(category, filename string, data []byte, contentType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[category+"/"+filename] = &backend.File{Data: data, ContentType: contentType}
}

// FailFile makes fetching a file return err.
func (f *FakeBackend) FailFile(category, filename string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fileErrs[category+"/"+filename] = err
}

// FailSummarize makes every summarize call return err.
func (f *FakeBackend) FailSummarize(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summarizeErr = err
}

// OnSummarize runs fn after each successful summarize call.
func (f *FakeBackend) OnSummarize(fn func(category string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSummarize = fn
}

// FailUpload makes every upload return err.
func (f *FakeBackend) FailUpload(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadErr = err
}

// ListCalls returns how many listing requests were made.
func (f *FakeBackend) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// Summarized returns the categories summarized so far.
func (f *FakeBackend) Summarized() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.summarized...)
}

// Uploads returns the part names of each upload call.
func (f *FakeBackend) Uploads() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.uploads...)
}

func (f *FakeBackend) ListClusters(ctx context.Context) (models.ClusterSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.listCalls++
	if len(f.listings) == 0 {
		return models.ClusterSet{}, nil
	}
	idx := f.listCalls - 1
	if idx >= len(f.listings) {
		idx = len(f.listings) - 1
	}
	resp := f.listings[idx]
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Clusters.Clone(), nil
}

func (f *FakeBackend) Summarize(ctx context.Context, category string) error {
	f.mu.Lock()
	err := f.summarizeErr
	hook := f.onSummarize
	if err == nil {
		f.summarized = append(f.summarized, category)
	}
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if hook != nil {
		hook(category)
	}
	return nil
}

func (f *FakeBackend) FetchFile(ctx context.Context, category, filename string) (*backend.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := category + "/" + filename
	if err, ok := f.fileErrs[key]; ok {
		return nil, err
	}
	file, ok := f.files[key]
	if !ok {
		return nil, &backend.StatusError{Method: "GET", URL: "/file/" + key, StatusCode: 404}
	}
	return &backend.File{Data: append([]byte(nil), file.Data...), ContentType: file.ContentType}, nil
}

// OpenFile serves a registered file as a streaming response.
func (f *FakeBackend) OpenFile(ctx context.Context, category, filename string) (*http.Response, error) {
	file, err := f.FetchFile(ctx, category, filename)
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	if file.ContentType != "" {
		header.Set("Content-Type", file.ContentType)
	}
	header.Set("Content-Length", strconv.Itoa(len(file.Data)))
	return &http.Response{
		StatusCode:    http.StatusOK,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(file.Data)),
		ContentLength: int64(len(file.Data)),
	}, nil
}

func (f *FakeBackend) Upload(ctx context.Context, parts []backend.Part) error {
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		rc, err := p.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", p.Name, err)
		}
		rc.Close()
		names = append(names, p.Name)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads = append(f.uploads, names)
	return nil
}
