package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

const (
	activeFile       = "active_tickets.yaml"
	legacyActiveFile = "active_ticket"
	activeLock       = "active"
)

type activeList struct {
	Active []ticket.ID `yaml:"active"`
}

// SetActive replaces the active list with id.
func (s *FileStorage) SetActive(id ticket.ID) error {
	return s.updateActive(func([]ticket.ID) []ticket.ID { return []ticket.ID{id} })
}

// GetActive returns the first active id.
//
// The id is returned even when its record has since been deleted; callers
// that need the ticket get ticket.ErrNotFound from Load.
func (s *FileStorage) GetActive() (ticket.ID, bool, error) {
	ids, err := s.GetAllActive()
	if err != nil || len(ids) == 0 {
		return ticket.ID{}, false, err
	}

	return ids[0], true, nil
}

// ClearActive empties the active list.
func (s *FileStorage) ClearActive() error {
	return s.updateActive(func([]ticket.ID) []ticket.ID { return nil })
}

// AddActive appends id unless it is already listed.
func (s *FileStorage) AddActive(id ticket.ID) error {
	return s.updateActive(func(ids []ticket.ID) []ticket.ID {
		if slices.ContainsFunc(ids, id.Equal) {
			return ids
		}

		return append(ids, id)
	})
}

// RemoveActive drops id from the list. Removing an absent id is a no-op.
func (s *FileStorage) RemoveActive(id ticket.ID) error {
	return s.updateActive(func(ids []ticket.ID) []ticket.ID {
		return slices.DeleteFunc(ids, id.Equal)
	})
}

// GetAllActive returns the active list in insertion order.
func (s *FileStorage) GetAllActive() ([]ticket.ID, error) {
	var ids []ticket.ID

	err := s.withLock(activeLock, false, func() error {
		var readErr error
		ids, _, readErr = s.readActive()

		return readErr
	})

	return ids, err
}

// readActive loads the list file, falling back to the legacy single-id
// pointer when the list file does not exist. legacy reports whether the
// fallback was used.
func (s *FileStorage) readActive() ([]ticket.ID, bool, error) {
	path := filepath.Join(s.root, activeFile)

	data, err := s.fs.ReadFile(path)
	if err == nil {
		var list activeList
		if err := yaml.Unmarshal(data, &list); err != nil {
			return nil, false, fmt.Errorf("%w: %s: %w", ticket.ErrCorrupt, path, err)
		}

		return list.Active, false, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, fmt.Errorf("%w: read %s: %w", ticket.ErrStorageIO, path, err)
	}

	legacyPath := filepath.Join(s.root, legacyActiveFile)

	data, err = s.fs.ReadFile(legacyPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("%w: read %s: %w", ticket.ErrStorageIO, legacyPath, err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, true, nil
	}

	id, err := ticket.ParseID(text)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %s: %w", ticket.ErrCorrupt, legacyPath, err)
	}

	return []ticket.ID{id}, true, nil
}

// updateActive rewrites the list under the exclusive active lock. A legacy
// pointer file is folded into the list and removed.
func (s *FileStorage) updateActive(fn func([]ticket.ID) []ticket.ID) error {
	return s.withLock(activeLock, true, func() error {
		ids, legacy, err := s.readActive()
		if err != nil {
			return err
		}

		data, err := yaml.Marshal(activeList{Active: fn(ids)})
		if err != nil {
			return fmt.Errorf("encode active list: %w", err)
		}

		path := filepath.Join(s.root, activeFile)
		if err := s.fs.WriteFileAtomic(path, data, filePerm); err != nil {
			return fmt.Errorf("%w: write %s: %w", ticket.ErrStorageIO, path, err)
		}

		if legacy {
			legacyPath := filepath.Join(s.root, legacyActiveFile)
			if err := s.fs.Remove(legacyPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: remove %s: %w", ticket.ErrStorageIO, legacyPath, err)
			}

			s.log.Debug("migrated legacy active pointer", "path", legacyPath)
		}

		return nil
	})
}
