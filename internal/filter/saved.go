package filter

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/calvinalkan/vibe-ticket/internal/storage"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// FileName is the sidecar under the storage root.
const FileName = "filters.yaml"

var (
	ErrFilterNotFound = fmt.Errorf("filter %w", ticket.ErrNotFound)
	ErrFilterExists   = fmt.Errorf("filter %w", ticket.ErrAlreadyExists)
)

// Saved is a named expression.
type Saved struct {
	Name        string    `yaml:"name" json:"name"`
	Expression  string    `yaml:"expression" json:"expression"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time `yaml:"created_at" json:"created_at"`
}

type file struct {
	Filters []Saved `yaml:"filters"`
}

// Store reads and writes filters.yaml.
type Store struct {
	doc *storage.Document[file]
}

// NewStore binds a Store to s.
func NewStore(s *storage.FileStorage) *Store {
	return &Store{doc: storage.NewDocument[file](s, FileName)}
}

// Create validates the expression and adds f.
func (st *Store) Create(f Saved) error {
	if f.Name == "" || strings.ContainsAny(f.Name, " \t/@") {
		return fmt.Errorf("%w: name %q", ErrInvalidFilter, f.Name)
	}

	if _, err := Parse(f.Expression, f.CreatedAt); err != nil {
		return err
	}

	return st.doc.Update(func(doc *file) error {
		if slices.ContainsFunc(doc.Filters, byName(f.Name)) {
			return fmt.Errorf("%w: %s", ErrFilterExists, f.Name)
		}

		doc.Filters = append(doc.Filters, f)

		return nil
	})
}

// List returns all saved filters sorted by name.
func (st *Store) List() ([]Saved, error) {
	doc, err := st.doc.Load()
	if err != nil {
		return nil, err
	}

	slices.SortFunc(doc.Filters, func(a, b Saved) int { return strings.Compare(a.Name, b.Name) })

	return doc.Filters, nil
}

// Get returns the filter called name.
func (st *Store) Get(name string) (Saved, error) {
	doc, err := st.doc.Load()
	if err != nil {
		return Saved{}, err
	}

	i := slices.IndexFunc(doc.Filters, byName(name))
	if i < 0 {
		return Saved{}, fmt.Errorf("%w: %s", ErrFilterNotFound, name)
	}

	return doc.Filters[i], nil
}

// Delete removes the filter called name.
func (st *Store) Delete(name string) error {
	return st.doc.Update(func(doc *file) error {
		n := len(doc.Filters)

		doc.Filters = slices.DeleteFunc(doc.Filters, byName(name))
		if len(doc.Filters) == n {
			return fmt.Errorf("%w: %s", ErrFilterNotFound, name)
		}

		return nil
	})
}

// Resolve parses expr. "@name" refers to a saved filter.
func (st *Store) Resolve(expr string, now time.Time) (Expr, error) {
	name, ok := strings.CutPrefix(strings.TrimSpace(expr), "@")
	if !ok {
		return Parse(expr, now)
	}

	saved, err := st.Get(name)
	if err != nil {
		return Expr{}, err
	}

	return Parse(saved.Expression, now)
}

func byName(name string) func(Saved) bool {
	return func(f Saved) bool { return f.Name == name }
}
