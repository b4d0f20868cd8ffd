package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// Document is a YAML sidecar file under the storage root that is always
// read and rewritten as a whole (aliases, filters, hooks, time tracking).
type Document[T any] struct {
	s    *FileStorage
	name string
}

// NewDocument binds a sidecar file name, relative to the storage root, to
// its decoded type.
func NewDocument[T any](s *FileStorage, name string) *Document[T] {
	return &Document[T]{s: s, name: name}
}

// Path returns the absolute file path.
func (d *Document[T]) Path() string {
	return filepath.Join(d.s.root, d.name)
}

// Load decodes the file. A missing file yields the zero value.
func (d *Document[T]) Load() (T, error) {
	var v T

	err := d.s.withLock(d.name, false, func() error {
		var readErr error
		v, readErr = d.read()

		return readErr
	})

	return v, err
}

// Update loads the document, applies fn and writes the result back, all
// under one exclusive lock. Nothing is written when fn fails.
func (d *Document[T]) Update(fn func(*T) error) error {
	return d.s.withLock(d.name, true, func() error {
		v, err := d.read()
		if err != nil {
			return err
		}

		if err := fn(&v); err != nil {
			return err
		}

		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", d.name, err)
		}

		if err := d.s.fs.WriteFileAtomic(d.Path(), data, filePerm); err != nil {
			return fmt.Errorf("%w: write %s: %w", ticket.ErrStorageIO, d.Path(), err)
		}

		return nil
	})
}

func (d *Document[T]) read() (T, error) {
	var v T

	data, err := d.s.fs.ReadFile(d.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return v, nil
		}

		return v, fmt.Errorf("%w: read %s: %w", ticket.ErrStorageIO, d.Path(), err)
	}

	if err := yaml.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %s: %w", ticket.ErrCorrupt, d.Path(), err)
	}

	return v, nil
}
