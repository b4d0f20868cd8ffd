// Package aliases stores named shortcuts for vt command lines.
package aliases

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/calvinalkan/vibe-ticket/internal/storage"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// FileName is the sidecar under the storage root.
const FileName = "aliases.yaml"

var (
	ErrAliasNotFound = fmt.Errorf("alias %w", ticket.ErrNotFound)
	ErrAliasExists   = fmt.Errorf("alias %w", ticket.ErrAlreadyExists)
	ErrInvalidAlias  = fmt.Errorf("%w: invalid alias", ticket.ErrInvalidInput)
)

// Alias maps a name to a command line, e.g. "mine" to "list --assignee sam".
type Alias struct {
	Name        string    `yaml:"name" json:"name"`
	Command     string    `yaml:"command" json:"command"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time `yaml:"created_at" json:"created_at"`
}

// Args splits the command line into arguments. Extra arguments are appended.
func (a Alias) Args(extra ...string) ([]string, error) {
	args, err := SplitArgs(a.Command)
	if err != nil {
		return nil, fmt.Errorf("alias %s: %w", a.Name, err)
	}

	return append(args, extra...), nil
}

type file struct {
	Aliases []Alias `yaml:"aliases"`
}

// Store reads and writes aliases.yaml.
type Store struct {
	doc      *storage.Document[file]
	reserved []string
}

// NewStore binds a Store to s. Names in reserved cannot be used as alias
// names.
func NewStore(s *storage.FileStorage, reserved []string) *Store {
	return &Store{doc: storage.NewDocument[file](s, FileName), reserved: reserved}
}

// Create validates and adds a.
func (st *Store) Create(a Alias) error {
	if a.Name == "" || strings.ContainsAny(a.Name, " \t/") {
		return fmt.Errorf("%w: name %q cannot be empty or contain spaces or slashes", ErrInvalidAlias, a.Name)
	}

	if slices.Contains(st.reserved, a.Name) {
		return fmt.Errorf("%w: %q is a command name", ErrInvalidAlias, a.Name)
	}

	if _, err := SplitArgs(a.Command); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAlias, err)
	}

	if strings.TrimSpace(a.Command) == "" {
		return fmt.Errorf("%w: empty command", ErrInvalidAlias)
	}

	return st.doc.Update(func(f *file) error {
		if slices.ContainsFunc(f.Aliases, byName(a.Name)) {
			return fmt.Errorf("%w: %s", ErrAliasExists, a.Name)
		}

		f.Aliases = append(f.Aliases, a)

		return nil
	})
}

// List returns all aliases sorted by name.
func (st *Store) List() ([]Alias, error) {
	f, err := st.doc.Load()
	if err != nil {
		return nil, err
	}

	slices.SortFunc(f.Aliases, func(a, b Alias) int { return strings.Compare(a.Name, b.Name) })

	return f.Aliases, nil
}

// Get returns the alias called name.
func (st *Store) Get(name string) (Alias, error) {
	f, err := st.doc.Load()
	if err != nil {
		return Alias{}, err
	}

	i := slices.IndexFunc(f.Aliases, byName(name))
	if i < 0 {
		return Alias{}, fmt.Errorf("%w: %s", ErrAliasNotFound, name)
	}

	return f.Aliases[i], nil
}

// Delete removes the alias called name.
func (st *Store) Delete(name string) error {
	return st.doc.Update(func(f *file) error {
		n := len(f.Aliases)

		f.Aliases = slices.DeleteFunc(f.Aliases, byName(name))
		if len(f.Aliases) == n {
			return fmt.Errorf("%w: %s", ErrAliasNotFound, name)
		}

		return nil
	})
}

func byName(name string) func(Alias) bool {
	return func(a Alias) bool { return a.Name == name }
}

// SplitArgs splits s on whitespace. Single and double quotes group words and
// a backslash escapes the next character outside single quotes.
func SplitArgs(s string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)

			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()

				inWord = false
			}
		default:
			cur.WriteRune(r)

			inWord = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}

	if escaped {
		return nil, errors.New("trailing backslash")
	}

	if inWord {
		args = append(args, cur.String())
	}

	return args, nil
}
