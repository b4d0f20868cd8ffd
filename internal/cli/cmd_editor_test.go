package cli_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calvinalkan/vibe-ticket/internal/cli"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// createMockEditor creates a mock editor script that records the file it was
// given and replaces its content with body. Returns the editor path and the
// path of the file holding the recorded argument.
func createMockEditor(t *testing.T, body string) (string, string) {
	t.Helper()

	mockDir := t.TempDir()
	mockEditor := filepath.Join(mockDir, "mock-editor")
	invokedFile := filepath.Join(mockDir, "invoked.txt")

	script := `#!/bin/sh
echo "$@" > "` + invokedFile + `"
printf '%s' '` + body + `' > "$1"
exit 0
`

	writeErr := os.WriteFile(mockEditor, []byte(script), 0o700)
	if writeErr != nil {
		t.Fatalf("failed to create mock editor: %v", writeErr)
	}

	return mockEditor, invokedFile
}

func Test_Edit_Editor_Replaces_Description_When_Editor_Writes(t *testing.T) {
	t.Parallel()

	c := cli.NewProject(t)
	c.NewTicket("notes", "-d", "before")

	editor, invoked := createMockEditor(t, "after editing")
	c.Env["EDITOR"] = editor

	cli.AssertContains(t, c.MustRun("edit", "notes", "--editor"), "Updated notes")

	var tk ticket.Ticket

	c.MustJSON(&tk, "show", "notes")

	if got, want := tk.Description, "after editing"; got != want {
		t.Errorf("description=%q, want=%q", got, want)
	}

	data, err := os.ReadFile(invoked)
	if err != nil {
		t.Fatalf("editor was not invoked: %v", err)
	}

	if !strings.HasSuffix(strings.TrimSpace(string(data)), ".md") {
		t.Errorf("editor arg=%q, want a .md file", data)
	}
}

func Test_Edit_Editor_Reports_No_Changes_When_Text_Unchanged(t *testing.T) {
	t.Parallel()

	c := cli.NewProject(t)
	c.NewTicket("notes", "-d", "same")

	editor, _ := createMockEditor(t, "same")
	c.Env["VISUAL"] = editor

	cli.AssertContains(t, c.MustRun("edit", "notes", "--editor"), "No changes to notes")
}

func Test_Edit_Editor_Prefers_Config_Editor_When_Set(t *testing.T) {
	t.Parallel()

	c := cli.NewProject(t)
	c.NewTicket("notes")

	configured, invoked := createMockEditor(t, "from config")
	env, _ := createMockEditor(t, "from env")

	c.WriteConfig(`{"editor": "` + configured + `"}`)
	c.Env["EDITOR"] = env

	c.MustRun("edit", "notes", "--editor")

	if _, err := os.Stat(invoked); err != nil {
		t.Fatalf("configured editor was not invoked: %v", err)
	}

	cli.AssertContains(t, c.MustRun("show", "notes"), "from config")
}

func Test_Edit_Editor_Fails_When_Editor_Exits_Non_Zero(t *testing.T) {
	t.Parallel()

	c := cli.NewProject(t)
	c.NewTicket("notes", "-d", "kept")

	failing := filepath.Join(t.TempDir(), "failing-editor")
	writeFile(t, failing, "#!/bin/sh\nexit 2\n")

	if err := os.Chmod(failing, 0o700); err != nil {
		t.Fatal(err)
	}

	c.Env["EDITOR"] = failing

	stderr := c.MustFail("edit", "notes", "--editor")
	cli.AssertContains(t, stderr, "external tool failed")

	cli.AssertContains(t, c.MustRun("show", "notes"), "kept")
}

func Test_Edit_Editor_Rejects_Description_Flag_When_Both_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewProject(t)
	c.NewTicket("notes")

	stderr := c.MustFail("edit", "notes", "--editor", "--description", "x")
	cli.AssertContains(t, stderr, "cannot be combined")
}
