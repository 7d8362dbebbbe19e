package core

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

var ErrFileNotFound = NewNotFoundError("file")

// FileStore keeps uploaded artifacts under flat, already-sanitised names.
type FileStore interface {
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	// Open returns ErrFileNotFound when no artifact is stored under name.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Remove is a no-op for unknown names.
	Remove(ctx context.Context, name string) error
}

func IsFileNotFound(err error) bool { return errors.Is(err, ErrFileNotFound) }
