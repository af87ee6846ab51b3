package web

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/doc-clustering/clusterview/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_Pages(t *testing.T) {
	r, err := NewEmbeddedRenderer()
	require.NoError(t, err)

	state := models.NewScreenState("3f0e6a4c-0000-4000-8000-000000000000")
	state.OpenedAt = time.Date(2024, 5, 1, 9, 30, 15, 0, time.UTC)
	state.Clusters = models.ClusterSet{"alpha": {Files: []string{"a.txt"}}}

	tests := []struct {
		name string
		page string
		data interface{}
		want []string
	}{
		{
			name: "upload with last attempt",
			page: PageUpload,
			data: UploadPageData{
				PageData:   PageData{Title: "Upload", Version: "1.2.3", Alert: "Failed to upload files."},
				LastUpload: &UploadSummary{FileCount: 3, TotalBytes: 1500, SubmittedAt: time.Now().Add(-3 * time.Minute)},
			},
			want: []string{`id="upload-form"`, "Failed to upload files.", "Last attempt 3 minutes ago:", "3 files", "1.5 kB", "clusterview 1.2.3"},
		},
		{
			name: "clusters",
			page: PageClusters,
			data: ClustersPageData{PageData: PageData{Flash: "Files uploaded and clustered successfully!"}, State: *state},
			want: []string{`data-screen-id="3f0e6a4c-0000-4000-8000-000000000000"`, "Loading clusters...", "Files uploaded and clustered successfully!", `"alpha"`, "Opened at 09:30:15"},
		},
		{
			name: "text content is escaped",
			page: PageText,
			data: TextPageData{Category: "cat1", Filename: "similarities.txt", Content: "<b>same</b>"},
			want: []string{"Back to Clusters", "&lt;b&gt;same&lt;/b&gt;", "similarities.txt"},
		},
		{
			name: "text error",
			page: PageText,
			data: TextPageData{Category: "cat1", Filename: "differences.txt", Error: "Failed to load text file. Please try again."},
			want: []string{"Failed to load text file. Please try again."},
		},
		{
			name: "error",
			page: PageError,
			data: ErrorPageData{StatusCode: 404, Message: "screen not found"},
			want: []string{"Error 404", "screen not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, r.Render(&buf, tt.page, tt.data, nil))
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestRenderer_UnknownPage(t *testing.T) {
	r, err := NewEmbeddedRenderer()
	require.NoError(t, err)

	var buf bytes.Buffer
	assert.Error(t, r.Render(&buf, "missing", nil, nil))
	assert.Zero(t, buf.Len())
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "1 file", plural(1, "file"))
	assert.Equal(t, "0 files", plural(0, "file"))
	assert.Equal(t, "1,200 files", plural(1200, "file"))
}

func TestRegisterStaticRoutes(t *testing.T) {
	e := echo.New()
	require.NoError(t, RegisterStaticRoutes(e))

	req := httptest.NewRequest(http.MethodGet, "/static/app.js", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "clusters-screen")
	// The page must stop once the server reports its screen closed
	assert.Contains(t, rec.Body.String(), `msg.type === "closed"`)
	assert.Contains(t, rec.Body.String(), "socket.onclose")

	req = httptest.NewRequest(http.MethodGet, "/static/missing.css", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
