// Package storage defines the media asset store shared by the gcs and local drivers.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrAssetNotFound is returned when an asset id does not resolve to a stored object.
var ErrAssetNotFound = errors.New("storage: asset not found")

// Upload is a file handed to Store. Size is the declared length in bytes.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// PreviewOptions controls the resolved preview URL.
type PreviewOptions struct {
	Width  int
	Height int
	TTL    time.Duration
}

// Store persists media assets grouped in logical buckets.
type Store interface {
	// Store writes the upload under bucket and returns the new asset id.
	Store(ctx context.Context, bucket string, upload Upload) (string, error)
	// PreviewURL returns a time-limited URL for the asset, or ErrAssetNotFound.
	PreviewURL(ctx context.Context, bucket, assetID string, opts PreviewOptions) (string, error)
	// Delete removes the asset. Deleting a missing asset is not an error.
	Delete(ctx context.Context, bucket, assetID string) error
	// Ping verifies the backing service is reachable.
	Ping(ctx context.Context) error
}

// ObjectName joins a logical bucket and asset id into a single object key.
func ObjectName(bucket, assetID string) string {
	return strings.Trim(bucket, "/") + "/" + assetID
}

// ValidKey reports whether a bucket or asset id is safe to use as a path segment.
func ValidKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

// NewAssetID returns a fresh asset id carrying the extension of contentType when one is known.
func NewAssetID(contentType string) string {
	id := uuid.NewString()
	if mt := mimetype.Lookup(contentType); mt != nil && mt.Extension() != "" {
		return id + mt.Extension()
	}
	return id
}
