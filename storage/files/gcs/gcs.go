package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/trezcool/darasa/core"
)

const (
	uploadTimeout = 2 * time.Minute
	listTimeout   = 30 * time.Second
)

type fileStorage struct {
	client *storage.Client
	bucket string
	cdn    string
}

var _ core.FileStorage = (*fileStorage)(nil)

// NewFileStorage connects to the bucket named in conf.Storage. Credentials
// come from the ambient service account (GOOGLE_APPLICATION_CREDENTIALS).
func NewFileStorage(ctx context.Context, conf *core.Config) (*fileStorage, error) {
	client, err := storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	if err != nil {
		return nil, errors.Wrap(err, "creating storage client")
	}
	return &fileStorage{
		client: client,
		bucket: conf.Storage.Bucket,
		cdn:    conf.Storage.CDNDomain,
	}, nil
}

func (fs *fileStorage) Upload(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := fs.client.Bucket(fs.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", errors.Wrapf(err, "writing object %q", key)
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrapf(err, "closing object writer %q", key)
	}
	return fs.PublicURL(key), nil
}

func (fs *fileStorage) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	it := fs.client.Bucket(fs.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var urls []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "listing objects with prefix %q", prefix)
		}
		urls = append(urls, fs.PublicURL(attrs.Name))
	}
	return urls, nil
}

func (fs *fileStorage) PublicURL(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if fs.cdn != "" {
		return fmt.Sprintf("https://%s/%s", fs.cdn, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", fs.bucket, key)
}

func (fs *fileStorage) Close() error {
	return fs.client.Close()
}
