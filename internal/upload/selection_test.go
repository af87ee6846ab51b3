package upload

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestFromDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "papers")
	writeFile(t, filepath.Join(root, "a.txt"), "alpha")
	writeFile(t, filepath.Join(root, "sub", "b.pdf"), "%PDF")
	writeFile(t, filepath.Join(root, ".hidden"), "skip me")
	writeFile(t, filepath.Join(root, ".git", "config"), "skip me too")

	sel, err := FromDirectory(root)
	require.NoError(t, err)

	var paths []string
	for _, f := range sel.Files() {
		paths = append(paths, f.RelativePath)
	}
	assert.Equal(t, []string{"papers/a.txt", "papers/sub/b.pdf"}, paths)
	assert.Equal(t, int64(9), sel.TotalSize())

	parts := sel.Parts()
	require.Len(t, parts, 2)
	rc, err := parts[1].Open()
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "%PDF", string(data))
}

func TestFromDirectory_Errors(t *testing.T) {
	_, err := FromDirectory(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "plain.txt")
	writeFile(t, file, "x")
	_, err = FromDirectory(file)
	assert.Error(t, err)
}

func TestFromDirectory_Empty(t *testing.T) {
	sel, err := FromDirectory(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, sel.Len())
}

func TestFromMultipart(t *testing.T) {
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	files := []struct{ name, content string }{
		{"docs/one.txt", "1"},
		{`docs\windows\2.txt`, "22"},
		{"../../etc/passwd", "333"},
	}
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.name)
		require.NoError(t, err)
		part.Write([]byte(f.content))
	}
	require.NoError(t, w.WriteField("note", "ignored"))
	other, _ := w.CreateFormFile("attachment", "other.txt")
	other.Write([]byte("not part of the selection"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	mr, err := req.MultipartReader()
	require.NoError(t, err)

	spoolDir := t.TempDir()
	sel, err := FromMultipart(mr, "files", spoolDir)
	require.NoError(t, err)

	require.Equal(t, 3, sel.Len())
	assert.Equal(t, int64(6), sel.TotalSize())

	var paths []string
	for _, f := range sel.Files() {
		paths = append(paths, f.RelativePath)
	}
	assert.Equal(t, []string{"docs/one.txt", "docs/windows/2.txt", "etc/passwd"}, paths)

	rc, err := sel.Parts()[1].Open()
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "22", string(data))

	entries, _ := os.ReadDir(spoolDir)
	assert.Len(t, entries, 3)

	require.NoError(t, sel.Close())
	entries, _ = os.ReadDir(spoolDir)
	assert.Empty(t, entries, "Close removes spooled files")
}

func TestSelection_NilSafe(t *testing.T) {
	var sel *Selection
	assert.Equal(t, 0, sel.Len())
	assert.Nil(t, sel.Files())
	assert.Empty(t, sel.Parts())
}

func TestCleanRelative(t *testing.T) {
	tests := map[string]string{
		"a/b.txt":       "a/b.txt",
		`a\b.txt`:       "a/b.txt",
		"/abs/x.txt":    "abs/x.txt",
		"a/../../x.txt": "x.txt",
		"./a//b.txt":    "a/b.txt",
	}
	for in, want := range tests {
		assert.Equal(t, want, cleanRelative(in), in)
	}
}
