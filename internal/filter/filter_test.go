package filter_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/vibe-ticket/internal/filter"
	"github.com/calvinalkan/vibe-ticket/internal/storage"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// Wednesday.
var now = time.Date(2025, 6, 11, 15, 30, 0, 0, time.UTC)

func fixture(t *testing.T) []ticket.Ticket {
	t.Helper()

	mk := func(slug string, p ticket.Priority, s ticket.Status, assignee string, created time.Time, tags ...string) ticket.Ticket {
		tk, err := ticket.NewBuilder(slug).Priority(p).Status(s).Assignee(assignee).Tags(tags...).CreatedAt(created).Build()
		if err != nil {
			t.Fatalf("build %s: %v", slug, err)
		}

		return tk
	}

	login := mk("fix-login", ticket.PriorityHigh, ticket.StatusDoing, "sam", now.AddDate(0, 0, -1), "auth", "bug")
	login.Description = "Users cannot log in with SSO"

	docs := mk("write-docs", ticket.PriorityLow, ticket.StatusTodo, "", now.AddDate(0, 0, -10), "docs")
	docs.Extensions.Archived = true

	cache := mk("cache-layer", ticket.PriorityCritical, ticket.StatusDone, "alex", now, "perf")
	cache.ClosedAt = &now

	if _, err := cache.AddTask("measure", now); err != nil {
		t.Fatal(err)
	}

	return []ticket.Ticket{login, docs, cache}
}

func slugs(tickets []ticket.Ticket) []string {
	out := make([]string, 0, len(tickets))
	for _, tk := range tickets {
		out = append(out, tk.Slug)
	}

	return out
}

func Test_Expr_Matches_Terms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr string
		want []string
	}{
		{"", []string{"fix-login", "write-docs", "cache-layer"}},
		{"status:doing", []string{"fix-login"}},
		{"status:todo,done", []string{"write-docs", "cache-layer"}},
		{"status:wip", []string{"fix-login"}},
		{"-status:done", []string{"fix-login", "write-docs"}},
		{"priority:high,critical", []string{"fix-login", "cache-layer"}},
		{"tag:auth", []string{"fix-login"}},
		{"tags:docs,perf", []string{"write-docs", "cache-layer"}},
		{"assignee:SAM", []string{"fix-login"}},
		{"assignee:none", []string{"write-docs"}},
		{"archived:true", []string{"write-docs"}},
		{"archived:false -assignee:alex", []string{"fix-login"}},
		{"slug:cache", []string{"cache-layer"}},
		{"title:login", []string{"fix-login"}},
		{"sso", []string{"fix-login"}},
		{"-sso -docs", []string{"cache-layer"}},
		{"has:tasks", []string{"cache-layer"}},
		{"created:today", []string{"cache-layer"}},
		{"created:last-2", []string{"fix-login", "cache-layer"}},
		{"closed:today", []string{"cache-layer"}},
		{"created:2025-06-01..2025-06-10", []string{"fix-login", "write-docs"}},
		{"priority:high status:done", []string{}},
	}

	all := fixture(t)

	for _, tc := range tests {
		e, err := filter.Parse(tc.expr, now)
		if err != nil {
			t.Errorf("Parse(%q): %v", tc.expr, err)

			continue
		}

		if diff := cmp.Diff(tc.want, slugs(e.Apply(all))); diff != "" {
			t.Errorf("expr %q mismatch (-want +got):\n%s", tc.expr, diff)
		}
	}
}

func Test_Parse_Rejects_Bad_Terms(t *testing.T) {
	t.Parallel()

	for _, expr := range []string{
		"status:",
		"status:nope",
		"priority:urgent",
		"color:red",
		"archived:maybe",
		"has:cats",
		"created:someday",
		"created:2025-06-10..2025-06-01",
	} {
		_, err := filter.Parse(expr, now)
		if !errors.Is(err, filter.ErrInvalidFilter) {
			t.Errorf("Parse(%q): err=%v, want %v", expr, err, filter.ErrInvalidFilter)
		}

		if !errors.Is(err, ticket.ErrInvalidInput) {
			t.Errorf("Parse(%q): err=%v, want invalid input kind", expr, err)
		}
	}
}

func Test_ParseDateRange_Resolves_Relative_Words(t *testing.T) {
	t.Parallel()

	day := func(d int) time.Time { return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		in       string
		from, to time.Time
	}{
		{"today", day(11), day(11)},
		{"yesterday", day(10), day(10)},
		{"week", day(9), day(15)},
		{"month", day(1), day(30)},
		{"last-7", day(5), day(11)},
		{"2025-06-03", day(3), day(3)},
	}

	for _, tc := range tests {
		r, err := filter.ParseDateRange(tc.in, now)
		if err != nil {
			t.Errorf("ParseDateRange(%q): %v", tc.in, err)

			continue
		}

		if !r.From.Equal(tc.from) || !r.To.Equal(tc.to) {
			t.Errorf("ParseDateRange(%q)=%s..%s, want=%s..%s", tc.in, r.From, r.To, tc.from, tc.to)
		}
	}
}

func Test_Sort_Orders_By_Key(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key     string
		reverse bool
		want    []string
	}{
		{"created", false, []string{"write-docs", "fix-login", "cache-layer"}},
		{"created", true, []string{"cache-layer", "fix-login", "write-docs"}},
		{"priority", false, []string{"cache-layer", "fix-login", "write-docs"}},
		{"status", false, []string{"write-docs", "fix-login", "cache-layer"}},
		{"slug", false, []string{"cache-layer", "fix-login", "write-docs"}},
	}

	for _, tc := range tests {
		all := fixture(t)

		if err := filter.Sort(all, tc.key, tc.reverse); err != nil {
			t.Fatalf("Sort(%s): %v", tc.key, err)
		}

		if diff := cmp.Diff(tc.want, slugs(all)); diff != "" {
			t.Errorf("Sort(%s, reverse=%v) mismatch (-want +got):\n%s", tc.key, tc.reverse, diff)
		}
	}

	if err := filter.Sort(fixture(t), "color", false); !errors.Is(err, ticket.ErrInvalidInput) {
		t.Fatalf("Sort(color): err=%v", err)
	}
}

func Test_Store_Resolves_Saved_Filters_By_At_Name(t *testing.T) {
	t.Parallel()

	st := filter.NewStore(storage.Open(filepath.Join(t.TempDir(), ticket.DirName)))

	if err := st.Create(filter.Saved{Name: "urgent", Expression: "priority:high,critical -status:done"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := st.Create(filter.Saved{Name: "broken", Expression: "color:red"}); !errors.Is(err, filter.ErrInvalidFilter) {
		t.Fatalf("Create(broken): err=%v", err)
	}

	if err := st.Create(filter.Saved{Name: "urgent", Expression: "status:todo"}); !errors.Is(err, filter.ErrFilterExists) {
		t.Fatalf("Create(dup): err=%v", err)
	}

	e, err := st.Resolve("@urgent", now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if diff := cmp.Diff([]string{"fix-login"}, slugs(e.Apply(fixture(t)))); diff != "" {
		t.Fatalf("saved filter mismatch (-want +got):\n%s", diff)
	}

	if _, err := st.Resolve("@missing", now); !errors.Is(err, filter.ErrFilterNotFound) {
		t.Fatalf("Resolve(@missing): err=%v", err)
	}

	if err := st.Delete("urgent"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	list, err := st.List()
	if err != nil {
		t.Fatal(err)
	}

	if len(list) != 0 {
		t.Fatalf("List()=%v, want empty", list)
	}
}
