// Package logfile defines the file capability the tailer reads from, with a
// local filesystem implementation and an S3 object implementation behind the
// same interface.
package logfile

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Source selects which output stream of a job is tailed.
type Source string

const (
	Stdout Source = "stdout"
	Stderr Source = "stderr"
)

// ErrInvalidSource is returned by ParseSource for anything but stdout/stderr.
var ErrInvalidSource = errors.New("invalid log source")

// ParseSource parses a source name case-insensitively.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case Stdout:
		return Stdout, nil
	case Stderr:
		return Stderr, nil
	}
	return "", fmt.Errorf("%w: %q (valid: stdout, stderr)", ErrInvalidSource, s)
}

// File is a log file that may not exist yet.
type File interface {
	// Path returns a printable location (filesystem path or URI).
	Path() string
	// Exists reports whether the file has been created. A missing file is
	// not an error.
	Exists(ctx context.Context) (bool, error)
	// Open returns a handle positioned at the start of the file.
	Open(ctx context.Context) (Handle, error)
}

// Handle reads a file sequentially. Each Read returns the bytes written
// since the previous Read.
type Handle interface {
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// RemoteFile is implemented by files that are remote whatever the local
// mount table says, such as object storage.
type RemoteFile interface {
	File
	Remote() bool
}

// Flusher is implemented by handles that can make pending writes from a
// shared representation visible before a read.
type Flusher interface {
	Flush() error
}
