package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// ReadFile returns the raw content of name, relative to the root. ok is
// false when the file does not exist.
func (s *FileStorage) ReadFile(name string) (data []byte, ok bool, err error) {
	err = s.withLock(name, false, func() error {
		var readErr error

		data, readErr = s.fs.ReadFile(filepath.Join(s.root, name))

		return readErr
	})

	switch {
	case err == nil:
		return data, true, nil
	case errors.Is(err, os.ErrNotExist):
		return nil, false, nil
	case errors.Is(err, ticket.ErrLocked), errors.Is(err, ticket.ErrStorageIO):
		return nil, false, err
	default:
		return nil, false, fmt.Errorf("%w: read %s: %w", ticket.ErrStorageIO, name, err)
	}
}

// WriteFile atomically replaces name, relative to the root, creating parent
// directories.
func (s *FileStorage) WriteFile(name string, data []byte) error {
	return s.withLock(name, true, func() error {
		if err := s.fs.WriteFileAtomic(filepath.Join(s.root, name), data, filePerm); err != nil {
			return fmt.Errorf("%w: write %s: %w", ticket.ErrStorageIO, name, err)
		}

		return nil
	})
}

// RemoveFile deletes name. A missing file is not an error.
func (s *FileStorage) RemoveFile(name string) error {
	return s.withLock(name, true, func() error {
		err := s.fs.Remove(filepath.Join(s.root, name))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: remove %s: %w", ticket.ErrStorageIO, name, err)
		}

		return nil
	})
}

// RemoveDir deletes the directory name and everything below it.
func (s *FileStorage) RemoveDir(name string) error {
	if err := s.fs.RemoveAll(filepath.Join(s.root, name)); err != nil {
		return fmt.Errorf("%w: remove %s: %w", ticket.ErrStorageIO, name, err)
	}

	return nil
}

// Subdirs lists the directory names directly below name, sorted. A missing
// directory yields none.
func (s *FileStorage) Subdirs(name string) ([]string, error) {
	entries, err := s.fs.ReadDir(filepath.Join(s.root, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("%w: list %s: %w", ticket.ErrStorageIO, name, err)
	}

	var dirs []string

	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}

	slices.Sort(dirs)

	return dirs, nil
}
