package durable

import (
	"errors"
	"fmt"
)

// Op names the durable operation that failed.
type Op string

const (
	OpReplace Op = "replace"
	OpAppend  Op = "append"
)

// Error kinds. Every *WriteError unwraps to exactly one of these.
var (
	// ErrInvalidInput is returned before any I/O for an empty path, a nil
	// payload or an empty line.
	ErrInvalidInput = errors.New("invalid input")
	// ErrOpen means the open/create call failed.
	ErrOpen = errors.New("open failed")
	// ErrShortWrite covers both a failed write call and one that transferred
	// fewer bytes than requested.
	ErrShortWrite = errors.New("short write")
	// ErrFlush means the data reached the file but fsync failed.
	ErrFlush = errors.New("flush failed")
)

// WriteError describes a failed replace or append.
type WriteError struct {
	Op    Op
	Path  string
	Wrote int
	Want  int
	Kind  error
	Err   error
}

func (e *WriteError) Error() string {
	msg := fmt.Sprintf("durable %s %q: %v", e.Op, e.Path, e.Kind)
	if e.Kind == ErrShortWrite {
		msg += fmt.Sprintf(" (wrote %d of %d bytes)", e.Wrote, e.Want)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the kind sentinel and the underlying OS error, so both
// errors.Is(err, ErrOpen) and errors.Is(err, fs.ErrNotExist) hold.
func (e *WriteError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
