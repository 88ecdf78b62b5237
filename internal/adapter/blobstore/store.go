// Package blobstore publishes rendered products to a gocloud blob bucket
// (gs://, file:// or mem://).
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/wildfire-analyser/internal/domain"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"
)

// Store writes products to a bucket and hands out time-limited download URLs.
type Store struct {
	bucket       *blob.Bucket
	baseURI      string
	signedURLTTL time.Duration
}

// Open opens the bucket behind storeURL. A bare path is treated as a local
// directory and created if needed.
func Open(ctx context.Context, storeURL string, signedURLTTL time.Duration) (*Store, error) {
	if !strings.Contains(storeURL, "://") {
		abs, err := filepath.Abs(storeURL)
		if err != nil {
			return nil, fmt.Errorf("resolve local store path %s: %w", storeURL, err)
		}
		storeURL = "file://" + filepath.ToSlash(abs)
	}

	openURL := storeURL
	if strings.HasPrefix(storeURL, "file://") {
		u, err := url.Parse(storeURL)
		if err != nil {
			return nil, fmt.Errorf("parse store url: %w", err)
		}
		dir := u.Path
		if u.Host == "." {
			dir = strings.TrimPrefix(dir, "/")
		}
		dir = filepath.FromSlash(dir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create local store directory %s: %w", dir, err)
		}
		// Keep temp files next to the target to avoid cross-device renames.
		q := u.Query()
		q.Set("no_tmp_dir", "true")
		u.RawQuery = q.Encode()
		openURL = u.String()
	}

	bucket, err := blob.OpenBucket(ctx, openURL)
	if err != nil {
		return nil, fmt.Errorf("open blob bucket: %w", err)
	}
	return NewStore(bucket, baseURI(storeURL), signedURLTTL), nil
}

// NewStore wraps an already opened bucket. baseURI prefixes object keys in
// reported URIs.
func NewStore(bucket *blob.Bucket, baseURI string, signedURLTTL time.Duration) *Store {
	return &Store{
		bucket:       bucket,
		baseURI:      strings.TrimSuffix(baseURI, "/"),
		signedURLTTL: signedURLTTL,
	}
}

// baseURI strips query parameters used only to open the bucket.
func baseURI(storeURL string) string {
	u, err := url.Parse(storeURL)
	if err != nil {
		return storeURL
	}
	u.RawQuery = ""
	return u.String()
}

// Put uploads a product under key.
func (s *Store) Put(ctx context.Context, key string, p domain.Product) (domain.StoredProduct, error) {
	if err := s.write(ctx, key, p.ContentType, bytes.NewReader(p.Data)); err != nil {
		return domain.StoredProduct{}, err
	}

	signed, err := s.signedURL(ctx, key)
	if err != nil {
		return domain.StoredProduct{}, err
	}

	return domain.StoredProduct{
		Kind:        p.Kind,
		Key:         key,
		URI:         s.baseURI + "/" + key,
		SignedURL:   signed,
		ContentType: p.ContentType,
		Size:        int64(len(p.Data)),
	}, nil
}

// write streams r to key. A failed write cancels the writer's context so the
// partial object is discarded instead of committed.
func (s *Store) write(ctx context.Context, key, contentType string, r io.Reader) error {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := s.bucket.NewWriter(wctx, key, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("open writer for %s: %w", key, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		cancel()
		_ = w.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	return nil
}

// signedURL returns "" when the driver cannot sign URLs.
func (s *Store) signedURL(ctx context.Context, key string) (string, error) {
	if s.signedURLTTL <= 0 {
		return "", nil
	}
	u, err := s.bucket.SignedURL(ctx, key, &blob.SignedURLOptions{
		Expiry: s.signedURLTTL,
		Method: http.MethodGet,
	})
	if gcerrors.Code(err) == gcerrors.Unimplemented {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sign url for %s: %w", key, err)
	}
	return u, nil
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// List returns the objects under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		if obj.IsDir {
			continue
		}
		out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size, ModTime: obj.ModTime})
	}
	return out, nil
}

// Close releases the bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}
