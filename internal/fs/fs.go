// Package fs is the filesystem seam used by storage.
//
// Storage never touches package os directly. It goes through [FS] so tests can
// swap in an implementation that injects failures, and so locking and atomic
// replacement live in one place.
package fs

import (
	"io"
	"os"
)

// File is the subset of *os.File that storage and [Locker] need.
type File interface {
	io.ReadWriteCloser

	// Fd must be a real descriptor usable with flock.
	Fd() uintptr

	Stat() (os.FileInfo, error)
}

// FS abstracts the filesystem operations used by storage.
//
// Implementations must be safe for concurrent use.
type FS interface {
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	ReadFile(path string) ([]byte, error)

	// WriteFileAtomic replaces path with data so readers observe either the
	// old content or the new content, never a mix.
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error

	ReadDir(path string) ([]os.DirEntry, error)

	MkdirAll(path string, perm os.FileMode) error

	Stat(path string) (os.FileInfo, error)

	// Exists reports whether path exists. Errors other than not-exist are
	// returned so callers can tell "absent" from "unreadable".
	Exists(path string) (bool, error)

	Remove(path string) error

	RemoveAll(path string) error
}
