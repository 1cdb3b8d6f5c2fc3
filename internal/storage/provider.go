package storage

import (
	"io"
	"time"
)

// Provider abstracts where a program's sound archives live before they
// are mirrored onto the station's disk.
type Provider interface {
	List(prefix string) ([]string, error)
	Get(key string) (*FileObject, error)
}

// FileObject is the provider-agnostic representation of a file.
type FileObject struct {
	Body          io.ReadCloser
	ContentLength int64
	LastModified  time.Time
}
