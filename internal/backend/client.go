// Package backend is the HTTP client for the document-clustering service.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doc-clustering/clusterview/internal/models"
)

// Default configuration values.
const (
	DefaultBaseURL       = "http://localhost:8000"
	DefaultTimeout       = 30 * time.Second
	DefaultUploadTimeout = 10 * time.Minute

	// UploadField is the repeated multipart field carrying the files.
	UploadField = "files"
)

// Config holds configuration for the backend client.
type Config struct {
	// BaseURL is the clustering service base URL (default: http://localhost:8000).
	BaseURL string

	// Timeout bounds listing, summarize and file requests (default: 30s).
	Timeout time.Duration

	// UploadTimeout bounds the multipart upload request (default: 10m).
	UploadTimeout time.Duration
}

// Part is one file of an upload.
type Part struct {
	// Name is sent as the multipart filename, usually the relative path.
	Name string
	Open func() (io.ReadCloser, error)
}

// File is a fetched file body.
type File struct {
	Data        []byte
	ContentType string
}

// Client talks to the clustering backend.
type Client struct {
	client        *http.Client
	baseURL       string
	timeout       time.Duration
	uploadTimeout time.Duration
}

// NewClient creates a new backend client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UploadTimeout == 0 {
		cfg.UploadTimeout = DefaultUploadTimeout
	}

	return &Client{
		client:        &http.Client{},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		timeout:       cfg.Timeout,
		uploadTimeout: cfg.UploadTimeout,
	}
}

// BaseURL returns the configured service URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FileURL is the backend URL of a file.
func (c *Client) FileURL(category, filename string) string {
	return c.baseURL + "/file/" + models.FilePath(category, filename)
}

// Upload posts every part as a repeated "files" field. The body is streamed,
// so parts are opened one at a time while the request is in flight.
func (c *Client) Upload(ctx context.Context, parts []Part) error {
	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeParts(mw, parts))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/", pr)
	if err != nil {
		pr.Close()
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	// Unblock the writer goroutine whatever happened to the request
	pr.Close()
	if err != nil {
		return fmt.Errorf("send upload: %w", err)
	}
	defer drainClose(resp.Body)

	return checkStatus(resp)
}

func writeParts(mw *multipart.Writer, parts []Part) error {
	for _, p := range parts {
		if err := writePart(mw, p); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writePart(mw *multipart.Writer, p Part) error {
	rc, err := p.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", p.Name, err)
	}
	defer rc.Close()

	w, err := mw.CreateFormFile(UploadField, p.Name)
	if err != nil {
		return fmt.Errorf("create part %s: %w", p.Name, err)
	}
	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("copy %s: %w", p.Name, err)
	}
	return nil
}

// ListClusters fetches the current clustering result.
func (c *Client) ListClusters(ctx context.Context) (models.ClusterSet, error) {
	resp, cancel, err := c.do(ctx, http.MethodGet, "/clusters/")
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer drainClose(resp.Body)

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var listing models.ClusterListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode clusters: %w", err)
	}
	if listing.Clusters == nil {
		listing.Clusters = models.ClusterSet{}
	}
	return listing.Clusters, nil
}

// Summarize asks the backend to generate summaries for a category.
func (c *Client) Summarize(ctx context.Context, category string) error {
	resp, cancel, err := c.do(ctx, http.MethodPost, "/summarize/"+url.PathEscape(category))
	if err != nil {
		return err
	}
	defer cancel()
	defer drainClose(resp.Body)

	return checkStatus(resp)
}

// FetchFile reads a file's full body.
func (c *Client) FetchFile(ctx context.Context, category, filename string) (*File, error) {
	resp, cancel, err := c.do(ctx, http.MethodGet, "/file/"+models.FilePath(category, filename))
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer drainClose(resp.Body)

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file body: %w", err)
	}
	return &File{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}

// OpenFile streams a file. The caller must close the returned response body.
// No client-side timeout applies beyond ctx, since bodies can be large.
func (c *Client) OpenFile(ctx context.Context, category, filename string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FileURL(category, filename), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		drainClose(resp.Body)
		return nil, err
	}
	return resp, nil
}

// do issues a request bounded by the client timeout. The returned cancel
// func must be called once the body has been consumed.
func (c *Client) do(ctx context.Context, method, path string) (*http.Response, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("send request: %w", err)
	}
	return resp, cancel, nil
}

func drainClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64*1024))
	body.Close()
}
