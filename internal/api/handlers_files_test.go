package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/doc-clustering/clusterview/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestFileHandler_HandleRaw(t *testing.T) {
	f := newFixture(t)
	f.fake.AddFile("cat1", "slides.pptx", []byte("pptx-bytes"), "application/vnd.ms-powerpoint")
	f.fake.AddFile("cat 1", "raw.bin", []byte{0, 1, 2}, "")
	f.fake.FailFile("cat1", "down.pdf", testutil.ErrUnavailable)

	tests := []struct {
		name        string
		path        string
		wantStatus  int
		wantType    string
		wantBody    string
		wantErrCode string
	}{
		{
			name:       "streams body and type",
			path:       "/raw/cat1/slides.pptx",
			wantStatus: http.StatusOK,
			wantType:   "application/vnd.ms-powerpoint",
			wantBody:   "pptx-bytes",
		},
		{
			name:       "unknown type defaults to octet stream",
			path:       "/raw/cat%201/raw.bin",
			wantStatus: http.StatusOK,
			wantType:   echo.MIMEOctetStream,
			wantBody:   "\x00\x01\x02",
		},
		{
			name:        "missing file",
			path:        "/raw/cat1/nothing.txt",
			wantStatus:  http.StatusNotFound,
			wantErrCode: "NOT_FOUND",
		},
		{
			name:        "backend unreachable",
			path:        "/raw/cat1/down.pdf",
			wantStatus:  http.StatusBadGateway,
			wantErrCode: "BAD_GATEWAY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.get(tt.path)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantErrCode != "" {
				assert.Equal(t, tt.wantErrCode, decodeAPIError(t, rec).Code)
				return
			}
			assert.Equal(t, tt.wantType, rec.Header().Get(echo.HeaderContentType))
			assert.Equal(t, tt.wantBody, rec.Body.String())
			assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "inline")
		})
	}
}

func TestFileHandler_HandleRaw_BrowserErrorPage(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/raw/cat1/nothing.txt", nil)
	req.Header.Set(echo.HeaderAccept, "text/html,application/xhtml+xml")
	rec := f.do(req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error 404")
	assert.Contains(t, rec.Body.String(), "file not found: cat1/nothing.txt")
}

func TestFileHandler_HandleBlob(t *testing.T) {
	f := newFixture(t)

	handle, err := f.blobs.Acquire("screen-1", "paper.pdf", "application/pdf", strings.NewReader("%PDF-1.7"))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	rec := f.get(handle.URL())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "%PDF-1.7", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, handle.URL(), nil)
	req.Header.Set("Range", "bytes=1-3")
	rec = f.do(req)
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "PDF", rec.Body.String())

	rec = f.do(httptest.NewRequest(http.MethodHead, handle.URL(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	f.blobs.Release(handle.ID)
	rec = f.get(handle.URL())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeAPIError(t, rec).Code)
}
