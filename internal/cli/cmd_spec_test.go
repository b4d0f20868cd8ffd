package cli_test

import (
	"os"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/vibe-ticket/internal/cli"
	"github.com/calvinalkan/vibe-ticket/internal/specs"
)

type phaseResult struct {
	Spec    specs.Spec `json:"spec"`
	Path    string     `json:"path"`
	Created bool       `json:"created"`
}

func Test_Spec_Walks_Phases_When_Documents_Approved(t *testing.T) {
	t.Parallel()

	c := cli.NewProject(t)

	out := c.MustRun("spec", "init", "Search", "index")
	cli.AssertContains(t, out, "Created spec")
	cli.AssertContains(t, out, "Search index")

	var req phaseResult

	c.MustJSON(&req, "spec", "requirements")

	if !req.Created {
		t.Error("created=false, want=true on first open")
	}

	if got, want := req.Spec.Phase, specs.PhaseRequirements; got != want {
		t.Errorf("phase=%v, want=%v", got, want)
	}

	if _, err := os.Stat(req.Path); err != nil {
		t.Fatalf("requirements document missing: %v", err)
	}

	cli.AssertContains(t, c.MustRun("spec", "requirements"), "Opened requirements document")

	cli.AssertContains(t, c.MustRun("spec", "approve", "requirements"), "phase is now design")

	c.MustRun("spec", "design")
	c.MustRun("spec", "approve", "design", "-m", "looks right")

	var sp specs.Spec

	c.MustJSON(&sp, "spec", "show")

	if got, want := sp.Phase, specs.PhaseTasks; got != want {
		t.Errorf("phase=%v, want=%v", got, want)
	}

	if got, want := sp.Approvals[specs.PhaseDesign].Message, "looks right"; got != want {
		t.Errorf("approval message=%q, want=%q", got, want)
	}

	status := c.MustRun("spec", "status")
	cli.AssertContains(t, status, "(tasks)")
	cli.AssertContains(t, status, "approved")
	cli.AssertContains(t, status, "missing")
}

func Test_Spec_Approve_Fails_When_Document_Missing(t *testing.T) {
	t.Parallel()

	c := cli.NewProject(t)
	c.MustRun("spec", "init", "Search")

	stderr := c.MustFail("spec", "approve", "design")
	cli.AssertContains(t, stderr, "design document does not exist")
}

func Test_Spec_Approve_Fails_When_Phase_Invalid(t *testing.T) {
	t.Parallel()

	c := cli.NewProject(t)
	c.MustRun("spec", "init", "Search")

	stderr := c.MustFail("spec", "approve", "coding")
	cli.AssertContains(t, stderr, "invalid phase")
}

func Test_Spec_Export_Tickets_Creates_Open_Tasks_Once_When_Run_Twice(t *testing.T) {
	t.Parallel()

	c := cli.NewProject(t)
	c.MustRun("spec", "init", "Search", "--tags", "search")

	var tasks phaseResult

	c.MustJSON(&tasks, "spec", "tasks")

	writeFile(t, tasks.Path, `# Tasks

- [ ] Build tokenizer
- [x] Pick library
- [ ] Write query parser
`)

	var res specs.Export

	c.MustJSON(&res, "spec", "export-tickets", "-p", "high")

	slugs := make([]string, 0, len(res.Created))
	for _, tk := range res.Created {
		slugs = append(slugs, tk.Slug)

		if !slices.Contains(tk.Tags, "spec") || !slices.Contains(tk.Tags, "search") {
			t.Errorf("%s tags=%v, want spec and search", tk.Slug, tk.Tags)
		}

		if got, want := tk.Extensions.SpecID, tasks.Spec.ID; got != want {
			t.Errorf("%s spec id=%q, want=%q", tk.Slug, got, want)
		}
	}

	if diff := cmp.Diff([]string{"build-tokenizer", "write-query-parser"}, slugs); diff != "" {
		t.Errorf("created mismatch (-want +got):\n%s", diff)
	}

	out := c.MustRun("spec", "export-tickets")
	cli.AssertContains(t, out, "Created 0 ticket(s), skipped 2 already exported")

	if got, want := len(listSlugs(t, c)), 2; got != want {
		t.Errorf("tickets=%d, want=%d", got, want)
	}
}

func Test_Spec_Export_Tickets_Fails_When_No_Tasks_Document(t *testing.T) {
	t.Parallel()

	c := cli.NewProject(t)
	c.MustRun("spec", "init", "Search")

	stderr := c.MustFail("spec", "export-tickets")
	cli.AssertContains(t, stderr, "no tasks document")
}

func Test_Spec_List_Marks_Active_Spec_When_Several_Exist(t *testing.T) {
	t.Parallel()

	c := cli.NewProject(t)
	c.MustRun("spec", "init", "First")
	c.MustRun("spec", "init", "Second", "--no-activate")

	var all []specs.Spec

	c.MustJSON(&all, "spec", "list")

	if got, want := len(all), 2; got != want {
		t.Fatalf("specs=%d, want=%d", got, want)
	}

	var sp specs.Spec

	c.MustJSON(&sp, "spec", "show")

	if got, want := sp.Title, "First"; got != want {
		t.Errorf("active spec=%q, want=%q", got, want)
	}
}

func Test_Spec_Fails_When_No_Active_Spec(t *testing.T) {
	t.Parallel()

	c := cli.NewProject(t)

	stderr := c.MustFail("spec", "status")
	cli.AssertContains(t, stderr, "active spec")
}

func Test_Spec_Validate_Flags_Missing_Documents_And_Clarifications(t *testing.T) {
	t.Parallel()

	c := cli.NewProject(t)
	c.MustRun("spec", "init", "Search")

	var req phaseResult

	c.MustJSON(&req, "spec", "requirements")

	if err := os.WriteFile(req.Path, []byte("Who may search? [NEEDS CLARIFICATION]\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, code := c.Run("spec", "validate")
	if got, want := code, 0; got != want {
		t.Fatalf("exit=%d, want=%d\nstderr: %s", got, want, stderr)
	}

	cli.AssertContains(t, stdout, "requirements phase not approved")
	cli.AssertContains(t, stdout, "missing design document (design.md)")
	cli.AssertContains(t, stdout, "1 items marked [NEEDS CLARIFICATION] in requirements.md")
	cli.AssertNotContains(t, stdout, "Spec passed all checks")
	cli.AssertContains(t, stderr, "has validation issues")

	out := c.MustRun("spec", "validate", "--ambiguities")
	cli.AssertNotContains(t, out, "missing design document")
	cli.AssertContains(t, out, "[NEEDS CLARIFICATION]")

	out = c.MustRun("spec", "validate", "--complete")
	cli.AssertContains(t, out, "missing tasks document")
	cli.AssertNotContains(t, out, "[NEEDS CLARIFICATION]")
}

func Test_Spec_Validate_Writes_Report_When_Asked(t *testing.T) {
	t.Parallel()

	c := cli.NewProject(t)
	c.MustRun("spec", "init", "Search")

	for _, p := range []string{"requirements", "design", "tasks"} {
		c.MustRun("spec", p)
		c.MustRun("spec", "approve", p)
	}

	var v specs.Validation

	c.MustJSON(&v, "spec", "validate", "--report")

	if !v.Valid {
		t.Errorf("valid=false, findings=%+v", v.Findings)
	}

	if got, want := v.Ambiguities, 0; got != want {
		t.Errorf("ambiguities=%d, want=%d", got, want)
	}

	data, err := os.ReadFile(v.Report)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}

	cli.AssertContains(t, string(data), "All checks passed.")
	cli.AssertContains(t, string(data), "- tasks: approved")

	cli.AssertContains(t, c.MustRun("spec", "validate"), "Spec passed all checks")
}
