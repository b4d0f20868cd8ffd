package aliases_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/vibe-ticket/internal/aliases"
	"github.com/calvinalkan/vibe-ticket/internal/storage"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

func newStore(t *testing.T) *aliases.Store {
	t.Helper()

	s := storage.Open(filepath.Join(t.TempDir(), ticket.DirName))

	return aliases.NewStore(s, []string{"list", "new"})
}

func Test_SplitArgs_Handles_Quotes_And_Escapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"list --status doing", []string{"list", "--status", "doing"}},
		{`new "fix the bug" -p high`, []string{"new", "fix the bug", "-p", "high"}},
		{`search 'a "b" c'`, []string{"search", `a "b" c`}},
		{`show a\ b`, []string{"show", "a b"}},
		{`x ""`, []string{"x", ""}},
		{"  spaced   out  ", []string{"spaced", "out"}},
		{"", nil},
	}

	for _, tc := range tests {
		got, err := aliases.SplitArgs(tc.in)
		if err != nil {
			t.Errorf("SplitArgs(%q): %v", tc.in, err)

			continue
		}

		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("SplitArgs(%q) mismatch (-want +got):\n%s", tc.in, diff)
		}
	}

	for _, bad := range []string{`"open`, `'open`, `trailing\`} {
		if _, err := aliases.SplitArgs(bad); err == nil {
			t.Errorf("SplitArgs(%q): want error", bad)
		}
	}
}

func Test_Store_Rejects_Reserved_And_Malformed_Names(t *testing.T) {
	t.Parallel()

	st := newStore(t)

	for _, name := range []string{"list", "has space", "a/b", ""} {
		err := st.Create(aliases.Alias{Name: name, Command: "list"})
		if !errors.Is(err, aliases.ErrInvalidAlias) {
			t.Errorf("Create(%q): err=%v, want %v", name, err, aliases.ErrInvalidAlias)
		}
	}
}

func Test_Store_Create_Get_Expand_Delete(t *testing.T) {
	t.Parallel()

	st := newStore(t)

	if err := st.Create(aliases.Alias{Name: "mine", Command: "list --assignee sam"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := st.Create(aliases.Alias{Name: "mine", Command: "list"}); !errors.Is(err, ticket.ErrAlreadyExists) {
		t.Fatalf("duplicate: err=%v, want %v", err, ticket.ErrAlreadyExists)
	}

	a, err := st.Get("mine")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	args, err := a.Args("--limit", "5")
	if err != nil {
		t.Fatalf("Args: %v", err)
	}

	want := []string{"list", "--assignee", "sam", "--limit", "5"}
	if diff := cmp.Diff(want, args); diff != "" {
		t.Fatalf("Args mismatch (-want +got):\n%s", diff)
	}

	if err := st.Delete("mine"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := st.Get("mine"); !errors.Is(err, aliases.ErrAliasNotFound) {
		t.Fatalf("Get after delete: err=%v, want %v", err, aliases.ErrAliasNotFound)
	}
}
