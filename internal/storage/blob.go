// Package storage holds question assets such as diagrams.
package storage

import (
	"errors"
	"io"
)

var ErrNotFound = errors.New("blob not found")

// BlobStore stores opaque blobs under slash-separated keys.
type BlobStore interface {
	// Put returns the canonical form of key.
	Put(key string, r io.Reader) (string, error)
	// Get returns ErrNotFound for unknown keys.
	Get(key string) (io.ReadCloser, error)
}
