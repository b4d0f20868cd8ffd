package fs

import (
	"errors"
	iofs "io/fs"
	"sync"
	"syscall"
)

// injectedPathErrors remembers every *PathError produced by [Chaos] so
// [IsInjected] works even after callers wrap it.
var injectedPathErrors sync.Map // map[*iofs.PathError]struct{}

// IsInjected reports whether err (or any error it wraps) was injected by
// [Chaos]. Returns false for nil.
func IsInjected(err error) bool {
	var pathErr *iofs.PathError
	if !errors.As(err, &pathErr) {
		return false
	}

	_, ok := injectedPathErrors.Load(pathErr)

	return ok
}

func injectPathError(op, path string, errno syscall.Errno) error {
	err := &iofs.PathError{Op: op, Path: path, Err: errno}
	injectedPathErrors.Store(err, struct{}{})

	return err
}
