package models

import "net/url"

// FileKind classifies how a clicked file is displayed.
type FileKind string

const (
	FileKindText FileKind = "text"
	FileKindPDF  FileKind = "pdf"
)

// SelectedFile is the file currently shown in a screen's inline viewer.
type SelectedFile struct {
	Category    string   `json:"category" msgpack:"category"`
	Filename    string   `json:"filename" msgpack:"filename"`
	Kind        FileKind `json:"kind" msgpack:"kind"`
	Content     string   `json:"content,omitempty" msgpack:"content,omitempty"`
	BlobID      string   `json:"blobId,omitempty" msgpack:"blobId,omitempty"`
	BlobURL     string   `json:"blobUrl,omitempty" msgpack:"blobUrl,omitempty"`
	OriginalURL string   `json:"originalUrl" msgpack:"originalUrl"`
}

// FilePath joins category and filename into an escaped path suffix.
func FilePath(category, filename string) string {
	return url.PathEscape(category) + "/" + url.PathEscape(filename)
}

// TextPath is the route of the dedicated text screen for a file.
func TextPath(category, filename string) string {
	return "/text/" + FilePath(category, filename)
}

// RawPath is the route that streams a file's raw bytes for a new tab.
func RawPath(category, filename string) string {
	return "/raw/" + FilePath(category, filename)
}

