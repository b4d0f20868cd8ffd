package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// SchemaVersion is written to project.yaml by Init.
const SchemaVersion = 1

const (
	projectFile   = "project.yaml"
	gitignoreFile = ".gitignore"
)

// ProjectState describes the project a storage root belongs to.
type ProjectState struct {
	Name          string    `yaml:"name"`
	Description   string    `yaml:"description,omitempty"`
	CreatedAt     time.Time `yaml:"created_at"`
	SchemaVersion int       `yaml:"schema_version"`
}

// Project returns the project.yaml document.
func (s *FileStorage) Project() *Document[ProjectState] {
	return NewDocument[ProjectState](s, projectFile)
}

// Init creates the storage layout and writes project.yaml. An existing
// project fails with ticket.ErrAlreadyInitialized unless force is set, in
// which case the project state is rewritten and tickets are kept.
func (s *FileStorage) Init(name, description string, force bool) error {
	exists, err := s.fs.Exists(filepath.Join(s.root, projectFile))
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ticket.ErrStorageIO, s.root, err)
	}

	if exists && !force {
		return fmt.Errorf("%w: %s", ticket.ErrAlreadyInitialized, s.root)
	}

	for _, dir := range []string{ticketsDir, locksDir} {
		path := filepath.Join(s.root, dir)
		if err := s.fs.MkdirAll(path, 0o750); err != nil {
			return fmt.Errorf("%w: mkdir %s: %w", ticket.ErrStorageIO, path, err)
		}
	}

	ignore := filepath.Join(s.root, gitignoreFile)
	if err := s.fs.WriteFileAtomic(ignore, []byte(locksDir+"/\n.history\n"), filePerm); err != nil {
		return fmt.Errorf("%w: write %s: %w", ticket.ErrStorageIO, ignore, err)
	}

	err = s.Project().Update(func(p *ProjectState) error {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = s.now().UTC()
		}

		p.Name = name
		p.Description = description
		p.SchemaVersion = SchemaVersion

		return nil
	})
	if err != nil {
		return err
	}

	s.log.Debug("project initialized", "root", s.root, "name", name)

	return nil
}
