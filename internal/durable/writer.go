// Package durable persists artifacts with crash safety: a replace writes a
// whole file, an append adds bytes to the end of one. Success is only
// reported after the bytes have been fsynced.
//
// Both operations issue exactly one write call. A write that transfers fewer
// bytes than requested is reported as ErrShortWrite and is never resumed.
// Callers serialize concurrent writers to the same path.
package durable

import (
	"errors"
	"os"
)

// FileMode is the permission used when a file is created.
const FileMode os.FileMode = 0o644

// Logger receives best-effort diagnostics on failure paths.
type Logger interface {
	Warning(format string, v ...interface{})
}

// handle is the part of an open file the writer touches.
type handle interface {
	Write(p []byte) (int, error)
	Sync() error
	Close() error
}

type openFunc func(path string, flag int, perm os.FileMode) (handle, error)

// Writer performs durable replace and append operations. The zero value is
// not usable; use NewWriter.
type Writer struct {
	log  Logger
	open openFunc
}

// NewWriter returns a Writer. log may be nil.
func NewWriter(log Logger) *Writer {
	return &Writer{log: log, open: openFile}
}

var defaultWriter = NewWriter(nil)

// WriteWhole replaces the file at path with data using the default Writer.
func WriteWhole(path string, data []byte) error {
	return defaultWriter.WriteWhole(path, data)
}

// AppendLine appends line to the file at path using the default Writer.
func AppendLine(path, line string) error {
	return defaultWriter.AppendLine(path, line)
}

// WriteWhole truncates (or creates) the file at path and writes data in a
// single call, then fsyncs. A nil data is rejected; an empty non-nil slice
// produces an empty file. Parent directories are not created.
func (w *Writer) WriteWhole(path string, data []byte) error {
	if path == "" {
		return w.fail(&WriteError{Op: OpReplace, Path: path, Kind: ErrInvalidInput, Err: errors.New("empty path")})
	}
	if data == nil {
		return w.fail(&WriteError{Op: OpReplace, Path: path, Kind: ErrInvalidInput, Err: errors.New("nil payload")})
	}
	return w.write(OpReplace, path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, data)
}

// AppendLine writes the exact bytes of line at the end of the file at path,
// creating it if needed, then fsyncs. No terminator is added: callers that
// want one include it in line.
func (w *Writer) AppendLine(path, line string) error {
	if path == "" {
		return w.fail(&WriteError{Op: OpAppend, Path: path, Kind: ErrInvalidInput, Err: errors.New("empty path")})
	}
	if line == "" {
		return w.fail(&WriteError{Op: OpAppend, Path: path, Kind: ErrInvalidInput, Err: errors.New("empty line")})
	}
	return w.write(OpAppend, path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, []byte(line))
}

func (w *Writer) write(op Op, path string, flag int, data []byte) error {
	f, err := w.open(path, flag, FileMode)
	if err != nil {
		return w.fail(&WriteError{Op: op, Path: path, Want: len(data), Kind: ErrOpen, Err: err})
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && w.log != nil {
			w.log.Warning("durable %s close %s: %v", op, path, cerr)
		}
	}()

	n, err := f.Write(data)
	if n < 0 {
		n = 0
	}
	if err != nil || n != len(data) {
		return w.fail(&WriteError{Op: op, Path: path, Wrote: n, Want: len(data), Kind: ErrShortWrite, Err: err})
	}

	if err := f.Sync(); err != nil {
		return w.fail(&WriteError{Op: op, Path: path, Wrote: n, Want: len(data), Kind: ErrFlush, Err: err})
	}
	return nil
}

func (w *Writer) fail(e *WriteError) error {
	if w.log != nil {
		w.log.Warning("durable %s failed path=%s wrote=%d want=%d: %v", e.Op, e.Path, e.Wrote, e.Want, e.Kind)
	}
	return e
}
