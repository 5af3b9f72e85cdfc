package core

import (
	"context"
	"io"
)

// FileStorage is any service that can store and list publicly reachable files.
type FileStorage interface {
	// Upload stores the content under key and returns its public URL.
	Upload(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	// ListPrefix returns the public URLs of all objects under prefix.
	ListPrefix(ctx context.Context, prefix string) ([]string, error)
	// PublicURL returns the public URL an uploaded key would be served from.
	PublicURL(key string) string
}
