package specs_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/vibe-ticket/internal/specs"
	"github.com/calvinalkan/vibe-ticket/internal/storage"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

var now = time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *specs.Store {
	t.Helper()

	return specs.NewStore(storage.Open(filepath.Join(t.TempDir(), ticket.DirName)))
}

func Test_Store_Walks_Phases_When_Documents_Approved(t *testing.T) {
	t.Parallel()

	st := newStore(t)

	sp, err := st.Create("Login revamp", "Replace the login flow", "", []string{"auth"}, now)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if got, want := sp.Phase, specs.PhaseInitial; got != want {
		t.Fatalf("phase=%s, want=%s", got, want)
	}

	if _, err := st.Approve(sp, specs.PhaseRequirements, "", now); !errors.Is(err, ticket.ErrInvalidInput) {
		t.Fatalf("Approve without document: err=%v", err)
	}

	sp, created, err := st.OpenPhase(sp, specs.PhaseRequirements, now)
	if err != nil {
		t.Fatalf("OpenPhase: %v", err)
	}

	if !created {
		t.Error("requirements document not created")
	}

	content, err := os.ReadFile(st.DocumentPath(sp.ID, specs.PhaseRequirements))
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"# Login revamp: Requirements", "Replace the login flow", "- Tags: auth"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("requirements missing %q:\n%s", want, content)
		}
	}

	if err := os.WriteFile(st.DocumentPath(sp.ID, specs.PhaseRequirements), []byte("edited"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, created, err = st.OpenPhase(sp, specs.PhaseRequirements, now); err != nil || created {
		t.Fatalf("reopen: created=%v err=%v", created, err)
	}

	if doc, _, _ := st.Document(sp.ID, specs.PhaseRequirements); doc != "edited" {
		t.Fatalf("existing document overwritten: %q", doc)
	}

	sp, err = st.Approve(sp, specs.PhaseRequirements, "lgtm", now)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if got, want := sp.Phase, specs.PhaseDesign; got != want {
		t.Errorf("phase after approve=%s, want=%s", got, want)
	}

	loaded, err := st.Get(sp.ID[:6])
	if err != nil {
		t.Fatalf("Get(prefix): %v", err)
	}

	if diff := cmp.Diff(sp, loaded); diff != "" {
		t.Fatalf("reloaded spec mismatch (-want +got):\n%s", diff)
	}

	progress, err := st.Status(loaded)
	if err != nil {
		t.Fatal(err)
	}

	want := []specs.Progress{
		{Phase: specs.PhaseRequirements, Document: true, Approved: true},
		{Phase: specs.PhaseDesign},
		{Phase: specs.PhaseTasks},
	}

	if diff := cmp.Diff(want, progress); diff != "" {
		t.Fatalf("Status mismatch (-want +got):\n%s", diff)
	}
}

func Test_Store_Clears_Active_When_Spec_Deleted(t *testing.T) {
	t.Parallel()

	st := newStore(t)

	if _, err := st.Active(); !errors.Is(err, specs.ErrNoActiveSpec) {
		t.Fatalf("Active on empty: err=%v", err)
	}

	sp, err := st.Create("Search", "", "", nil, now)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := st.SetActive(sp.Short()); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	active, err := st.Resolve("")
	if err != nil {
		t.Fatalf("Resolve(active): %v", err)
	}

	if got, want := active.ID, sp.ID; got != want {
		t.Errorf("active=%s, want=%s", got, want)
	}

	if err := st.Delete(sp.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := st.Get(sp.ID); !errors.Is(err, specs.ErrSpecNotFound) {
		t.Errorf("Get after delete: err=%v", err)
	}

	if _, err := st.Active(); !errors.Is(err, specs.ErrNoActiveSpec) {
		t.Errorf("Active after delete: err=%v", err)
	}

	list, err := st.List()
	if err != nil {
		t.Fatal(err)
	}

	if len(list) != 0 {
		t.Fatalf("List()=%v, want empty", list)
	}
}

func Test_ParseDocumentPhase_Rejects_Non_Document_Phases(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"initial", "implementation", "plan", ""} {
		if _, err := specs.ParseDocumentPhase(in); !errors.Is(err, specs.ErrInvalidPhase) {
			t.Errorf("ParseDocumentPhase(%q): err=%v", in, err)
		}
	}

	if p, err := specs.ParseDocumentPhase(" Design "); err != nil || p != specs.PhaseDesign {
		t.Errorf("ParseDocumentPhase(Design)=%s, %v", p, err)
	}
}

func Test_ExtractTasks_Reads_Checkboxes_With_Sections(t *testing.T) {
	t.Parallel()

	src := `# Tasks

Intro text with - [ ] not a task.

## Backend

- [ ] Add ` + "`token`" + ` column
- [x] Write migration
- plain item

## Frontend

1. [ ] Build the
   login form
   - [ ] Nested validation
`

	want := []specs.Task{
		{Title: "Add token column", Section: "Backend"},
		{Title: "Write migration", Done: true, Section: "Backend"},
		{Title: "Build the login form", Section: "Frontend"},
		{Title: "Nested validation", Section: "Frontend"},
	}

	if diff := cmp.Diff(want, specs.ExtractTasks([]byte(src))); diff != "" {
		t.Fatalf("ExtractTasks mismatch (-want +got):\n%s", diff)
	}
}

func Test_Slugify_Produces_Valid_Slugs(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{
		"Add `token` column":      "add-token-column",
		"  Ünïcode & symbols!! ":  "n-code-symbols",
		"!!!":                     "task",
		strings.Repeat("ab ", 40): "ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-ab-ab",
	} {
		got := specs.Slugify(in)
		if got != want {
			t.Errorf("Slugify(%q)=%q, want=%q", in, got, want)
		}

		if err := ticket.ValidateSlug(got); err != nil {
			t.Errorf("Slugify(%q) invalid: %v", in, err)
		}
	}
}

func Test_ExportTickets_Creates_One_Ticket_Per_Open_Task(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	repo := storage.NewMemory()

	sp, err := st.Create("Login revamp", "", "", []string{"auth"}, now)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := st.ExportTickets(repo, sp, ticket.PriorityHigh, now); !errors.Is(err, ticket.ErrInvalidInput) {
		t.Fatalf("export without tasks document: err=%v", err)
	}

	sp, _, err = st.OpenPhase(sp, specs.PhaseTasks, now)
	if err != nil {
		t.Fatal(err)
	}

	doc := "## Work\n\n- [ ] Write tests\n- [x] Done already\n- [ ] Ship it\n"
	if err := os.WriteFile(st.DocumentPath(sp.ID, specs.PhaseTasks), []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	taken, err := ticket.NewBuilder("write-tests").CreatedAt(now).Build()
	if err != nil {
		t.Fatal(err)
	}

	if err := repo.Save(taken); err != nil {
		t.Fatal(err)
	}

	res, err := st.ExportTickets(repo, sp, ticket.PriorityHigh, now)
	if err != nil {
		t.Fatalf("ExportTickets: %v", err)
	}

	var got []string
	for _, tk := range res.Created {
		got = append(got, tk.Slug+"|"+tk.Title+"|"+tk.Extensions.SpecID+"|"+strings.Join(tk.Tags, ","))

		if tk.Priority != ticket.PriorityHigh {
			t.Errorf("%s priority=%s", tk.Slug, tk.Priority)
		}
	}

	want := []string{
		"write-tests-2|Write tests|" + sp.ID + "|spec,auth",
		"ship-it|Ship it|" + sp.ID + "|spec,auth",
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("created mismatch (-want +got):\n%s", diff)
	}

	again, err := st.ExportTickets(repo, sp, ticket.PriorityHigh, now)
	if err != nil {
		t.Fatal(err)
	}

	if got, want := len(again.Created), 0; got != want {
		t.Errorf("second export created=%d, want=%d", got, want)
	}

	if diff := cmp.Diff([]string{"Write tests", "Ship it"}, again.Skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}
}
