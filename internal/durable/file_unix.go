//go:build unix

package durable

import (
	"os"

	"golang.org/x/sys/unix"
)

// fdFile issues raw syscalls. os.File would loop over partial writes, which
// would hide a short write from the caller.
type fdFile struct {
	fd   int
	path string
}

func openFile(path string, flag int, perm os.FileMode) (handle, error) {
	for {
		fd, err := unix.Open(path, flag|unix.O_CLOEXEC, uint32(perm.Perm()))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, &os.PathError{Op: "open", Path: path, Err: err}
		}
		return &fdFile{fd: fd, path: path}, nil
	}
}

// Write performs one write(2). EINTR transfers nothing and is restarted.
func (f *fdFile) Write(p []byte) (int, error) {
	for {
		n, err := unix.Write(f.fd, p)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return n, &os.PathError{Op: "write", Path: f.path, Err: err}
		}
		return n, nil
	}
}

func (f *fdFile) Sync() error {
	for {
		err := unix.Fsync(f.fd)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return &os.PathError{Op: "fsync", Path: f.path, Err: err}
		}
		return nil
	}
}

// Close is not retried on EINTR: the descriptor is released either way.
func (f *fdFile) Close() error {
	if err := unix.Close(f.fd); err != nil {
		return &os.PathError{Op: "close", Path: f.path, Err: err}
	}
	return nil
}
