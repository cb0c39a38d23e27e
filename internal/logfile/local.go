package logfile

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
)

// Local is a file on a mounted filesystem.
type Local struct {
	path string
}

// NewLocal returns a Local for path.
func NewLocal(path string) *Local {
	return &Local{path: path}
}

func (l *Local) Path() string { return l.path }

func (l *Local) Exists(_ context.Context) (bool, error) {
	_, err := os.Stat(l.path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (l *Local) Open(_ context.Context) (Handle, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	return &localHandle{f: f}, nil
}

type localHandle struct {
	f *os.File
}

// Read reads from the current offset to EOF. The offset is kept by the
// open file, so appended data is picked up by the next call.
func (h *localHandle) Read(_ context.Context) ([]byte, error) {
	return io.ReadAll(h.f)
}

func (h *localHandle) Close() error {
	return h.f.Close()
}
