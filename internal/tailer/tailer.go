package tailer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/atikulmunna/poplog/internal/logfile"
)

// Tailer reads newly completed lines from one growing log file.
//
// A Tailer is not safe for concurrent use; the scheduler issues its calls
// one at a time.
type Tailer struct {
	file    logfile.File
	handle  logfile.Handle
	residue []byte // partial line buffer, never contains '\n'
	counter int
}

// New creates a Tailer for f. A nil f yields a Tailer that never returns lines.
func New(f logfile.File) *Tailer {
	return &Tailer{file: f}
}

// Populate returns the lines completed since the previous call.
//
// A file that does not exist yet is not an error: the result is empty and
// the next call checks again. The file is opened on the first call that
// finds it and the handle is reused afterwards. Trailing bytes without a
// terminating newline are kept and prepended to the next read.
func (t *Tailer) Populate(ctx context.Context) ([]string, error) {
	if t.file == nil {
		return nil, nil
	}

	ok, err := t.file.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", t.file.Path(), err)
	}
	if !ok {
		return nil, nil
	}

	if t.handle == nil {
		h, err := t.file.Open(ctx)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", t.file.Path(), err)
		}
		t.handle = h
	}

	if f, ok := t.handle.(logfile.Flusher); ok {
		_ = f.Flush()
	}

	data, err := t.handle.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t.file.Path(), err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	buf := make([]byte, 0, len(t.residue)+len(data))
	buf = append(append(buf, t.residue...), data...)
	parts := bytes.Split(buf, []byte{'\n'})

	lines := make([]string, 0, len(parts)-1)
	for _, p := range parts[:len(parts)-1] {
		lines = append(lines, string(p))
	}
	t.residue = bytes.Clone(parts[len(parts)-1])
	return lines, nil
}

// IncrementCounter records one completed poll cycle.
func (t *Tailer) IncrementCounter() {
	t.counter++
}

// Counter returns the number of completed poll cycles.
func (t *Tailer) Counter() int {
	return t.counter
}

// Residue returns the partial line carried to the next poll.
func (t *Tailer) Residue() string {
	return string(t.residue)
}

// TakeResidue returns the partial line and clears it. It is used once a
// job has finished and no terminating newline will follow.
func (t *Tailer) TakeResidue() string {
	r := string(t.residue)
	t.residue = nil
	return r
}

// Opened reports whether the file handle is currently open.
func (t *Tailer) Opened() bool {
	return t.handle != nil
}

// Path returns the tailed file's location, or "" when unset.
func (t *Tailer) Path() string {
	if t.file == nil {
		return ""
	}
	return t.file.Path()
}

// Destroy closes the handle if one is open. Close errors are discarded and
// repeated calls are no-ops.
func (t *Tailer) Destroy() {
	if t.handle == nil {
		return
	}
	h := t.handle
	t.handle = nil
	_ = h.Close()
}
