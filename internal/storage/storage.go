// Package storage defines the read-only Storage interface the resource catalog
// loads its documents through, and a registry of backends.
//
// Backends register themselves with the factory from an init() function in their
// own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.CatalogConfig) (storage.Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// The server imports each backend with a blank import to trigger init().
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned (wrapped) by Download and GetMetadata when the
// requested document does not exist
var ErrNotFound = errors.New("document not found")

// Storage is a read-only view over a set of named documents
type Storage interface {
	// Download opens a document for reading. The caller closes the reader.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists checks if a document exists at the specified path
	Exists(ctx context.Context, path string) (bool, error)

	// GetMetadata retrieves document metadata without downloading it
	GetMetadata(ctx context.Context, path string) (*FileMetadata, error)
}

// FileMetadata contains metadata about a stored document
type FileMetadata struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// JoinPrefix prepends a configured key prefix to a document name
func JoinPrefix(prefix, path string) string {
	if prefix == "" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix + path
	}
	return prefix + "/" + path
}
