package models

import "time"

// BlobHandle is a temporary local reference to fetched binary content.
type BlobHandle struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}

// URL is the path the blob is served from.
func (b *BlobHandle) URL() string {
	return "/blobs/" + b.ID
}
