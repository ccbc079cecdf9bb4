// Package local stores media assets on the filesystem and serves them through
// HMAC-signed preview URLs.
package local

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/studyabroad-backend/pkg/storage"
)

// RoutePrefix is the path the API mounts the signed media handler on.
const RoutePrefix = "/media"

var (
	ErrInvalidSignature = errors.New("local media: invalid signature")
	ErrExpired          = errors.New("local media: url expired")
)

type Store struct {
	dir     string
	baseURL string
	secret  []byte
	now     func() time.Time
	buckets []string
}

var _ storage.Store = (*Store)(nil)

// New prepares dir and returns a store. An empty secret is replaced by a random
// one, which invalidates issued URLs on restart.
func New(dir, baseURL, secret string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("local media dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %q: %w", dir, err)
	}
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate signing secret: %w", err)
		}
	}
	return &Store{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  key,
		now:     time.Now,
	}, nil
}

func (s *Store) Store(ctx context.Context, bucket string, upload storage.Upload) (string, error) {
	if !storage.ValidKey(bucket) {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	if upload.Body == nil {
		return "", errors.New("upload body is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	bucketDir := filepath.Join(s.dir, bucket)
	if err := os.MkdirAll(bucketDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir bucket: %w", err)
	}

	assetID := storage.NewAssetID(upload.ContentType)
	tmp, err := os.CreateTemp(bucketDir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, upload.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write asset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close asset: %w", err)
	}
	if err := os.Rename(tmpName, s.path(bucket, assetID)); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("commit asset: %w", err)
	}
	return assetID, nil
}

func (s *Store) PreviewURL(ctx context.Context, bucket, assetID string, opts storage.PreviewOptions) (string, error) {
	if !storage.ValidKey(bucket) || !storage.ValidKey(assetID) {
		return "", storage.ErrAssetNotFound
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := os.Stat(s.path(bucket, assetID)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", storage.ErrAssetNotFound
		}
		return "", err
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	exp := s.now().Add(ttl).Unix()

	q := url.Values{}
	if opts.Width > 0 {
		q.Set("w", strconv.Itoa(opts.Width))
	}
	if opts.Height > 0 {
		q.Set("h", strconv.Itoa(opts.Height))
	}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", s.sign(bucket, assetID, opts.Width, opts.Height, exp))
	return fmt.Sprintf("%s%s/%s/%s?%s", s.baseURL, RoutePrefix, bucket, assetID, q.Encode()), nil
}

func (s *Store) Delete(ctx context.Context, bucket, assetID string) error {
	if !storage.ValidKey(bucket) || !storage.ValidKey(assetID) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path(bucket, assetID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Prepare creates the bucket directories up front so a read-only or missing
// volume fails at startup instead of on the first upload. Prepared buckets
// are also checked by Ping.
func (s *Store) Prepare(buckets ...string) error {
	for _, bucket := range buckets {
		if !storage.ValidKey(bucket) {
			return fmt.Errorf("invalid bucket %q", bucket)
		}
		if err := os.MkdirAll(filepath.Join(s.dir, bucket), 0o755); err != nil {
			return fmt.Errorf("mkdir bucket %q: %w", bucket, err)
		}
		s.buckets = append(s.buckets, bucket)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	for _, dir := range append([]string{s.dir}, s.bucketDirs()...) {
		info, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
	}
	return nil
}

func (s *Store) bucketDirs() []string {
	dirs := make([]string, len(s.buckets))
	for i, bucket := range s.buckets {
		dirs[i] = filepath.Join(s.dir, bucket)
	}
	return dirs
}

// Verify checks a preview URL's signature and expiry.
func (s *Store) Verify(bucket, assetID string, width, height int, exp int64, sig string) error {
	expected := s.sign(bucket, assetID, width, height, exp)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrInvalidSignature
	}
	if s.now().Unix() > exp {
		return ErrExpired
	}
	return nil
}

// Open returns the stored asset for reading.
func (s *Store) Open(bucket, assetID string) (*os.File, error) {
	if !storage.ValidKey(bucket) || !storage.ValidKey(assetID) {
		return nil, storage.ErrAssetNotFound
	}
	f, err := os.Open(s.path(bucket, assetID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.ErrAssetNotFound
	}
	return f, err
}

func (s *Store) path(bucket, assetID string) string {
	return filepath.Join(s.dir, bucket, assetID)
}

func (s *Store) sign(bucket, assetID string, width, height int, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s/%s|%d|%d|%d", bucket, assetID, width, height, exp)
	return hex.EncodeToString(mac.Sum(nil))
}
