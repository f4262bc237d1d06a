//go:build !unix

package durable

import "os"

func openFile(path string, flag int, perm os.FileMode) (handle, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}
