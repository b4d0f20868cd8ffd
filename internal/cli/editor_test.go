package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

func Test_ResolveEditor_Splits_Arguments_When_Configured(t *testing.T) {
	t.Parallel()

	sh := lookSh(t)

	cfg := ticket.Config{Editor: sh + ` -c 'cat "$0"'`}

	got, err := resolveEditor(cfg, map[string]string{"EDITOR": "ignored"})
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{sh, "-c", `cat "$0"`}, got); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
}

func Test_ResolveEditor_Follows_Priority_When_Several_Set(t *testing.T) {
	t.Parallel()

	sh := lookSh(t)

	for _, tt := range []struct {
		name string
		cfg  string
		env  map[string]string
		want string
	}{
		{name: "config wins", cfg: sh, env: map[string]string{"VISUAL": "/nope/visual", "EDITOR": "/nope/editor"}, want: sh},
		{name: "visual before editor", env: map[string]string{"VISUAL": sh, "EDITOR": "/nope/editor"}, want: sh},
		{name: "missing binaries skipped", cfg: "/nope/config", env: map[string]string{"VISUAL": "/nope/visual", "EDITOR": sh}, want: sh},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := resolveEditor(ticket.Config{Editor: tt.cfg}, tt.env)
			if err != nil {
				t.Fatal(err)
			}

			if got, want := got[0], tt.want; got != want {
				t.Errorf("editor=%q, want=%q", got, want)
			}
		})
	}
}

func Test_ResolveEditor_Returns_ErrNoEditorFound_When_Nothing_Runs(t *testing.T) {
	// Changes PATH for the whole process.
	t.Setenv("PATH", t.TempDir())

	_, err := resolveEditor(ticket.Config{Editor: "/nope/editor"}, map[string]string{})
	if !errors.Is(err, ticket.ErrNoEditorFound) {
		t.Fatalf("err=%v, want=%v", err, ticket.ErrNoEditorFound)
	}
}

func lookSh(t *testing.T) string {
	t.Helper()

	for _, dir := range []string{"/bin", "/usr/bin"} {
		path := filepath.Join(dir, "sh")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	t.Skip("sh not found")

	return ""
}
