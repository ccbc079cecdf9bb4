package gcs

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/studyabroad-backend/pkg/storage"
)

// Store adapts Client to storage.Store. Logical buckets become object prefixes
// inside the single configured GCS bucket.
type Store struct {
	client *Client
}

var _ storage.Store = (*Store)(nil)

func NewStore(client *Client) *Store {
	return &Store{client: client}
}

func (s *Store) Store(ctx context.Context, bucket string, upload storage.Upload) (string, error) {
	if !storage.ValidKey(bucket) {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	if upload.Body == nil {
		return "", errors.New("upload body is required")
	}
	assetID := storage.NewAssetID(upload.ContentType)
	if err := s.client.UploadObject(ctx, storage.ObjectName(bucket, assetID), upload.ContentType, upload.Body); err != nil {
		return "", err
	}
	return assetID, nil
}

// PreviewURL checks the object exists and returns a public or signed URL.
// GCS serves originals, so width and height are not applied.
func (s *Store) PreviewURL(ctx context.Context, bucket, assetID string, opts storage.PreviewOptions) (string, error) {
	if !storage.ValidKey(bucket) || !storage.ValidKey(assetID) {
		return "", storage.ErrAssetNotFound
	}
	object := storage.ObjectName(bucket, assetID)
	exists, err := s.client.ObjectExists(ctx, object)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", storage.ErrAssetNotFound
	}
	if s.client.publicAccess {
		return s.client.PublicURL(object), nil
	}
	return s.client.SignedReadURL(object, opts.TTL)
}

func (s *Store) Delete(ctx context.Context, bucket, assetID string) error {
	if !storage.ValidKey(bucket) || !storage.ValidKey(assetID) {
		return nil
	}
	err := s.client.DeleteObject(ctx, storage.ObjectName(bucket, assetID))
	if errors.Is(err, errObjectNotFound) {
		return nil
	}
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
