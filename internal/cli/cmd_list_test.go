package cli_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/vibe-ticket/internal/cli"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

func listSlugs(t *testing.T, c *cli.CLI, args ...string) []string {
	t.Helper()

	var tickets []ticket.Ticket

	c.MustJSON(&tickets, append([]string{"list"}, args...)...)

	slugs := make([]string, 0, len(tickets))
	for _, tk := range tickets {
		slugs = append(slugs, tk.Slug)
	}

	return slugs
}

func seedList(t *testing.T) *cli.CLI {
	t.Helper()

	c := cli.NewProject(t)
	c.NewTicket("alpha", "-p", "low", "--tags", "backend", "-a", "sam")
	c.NewTicket("beta", "-p", "critical", "--tags", "frontend")
	c.NewTicket("gamma", "-p", "high", "--tags", "backend")
	c.NewTicket("delta", "-p", "medium")

	c.MustRun("start", "beta")
	c.MustRun("close", "delta")

	return c
}

func Test_List_Filters_Tickets_When_Flags_Given(t *testing.T) {
	t.Parallel()

	c := seedList(t)

	for _, tt := range []struct {
		name string
		args []string
		want []string
	}{
		{name: "default hides done", args: nil, want: []string{"alpha", "beta", "gamma"}},
		{name: "include done", args: []string{"--include-done"}, want: []string{"alpha", "beta", "gamma", "delta"}},
		{name: "closed only", args: []string{"--closed"}, want: []string{"delta"}},
		{name: "status", args: []string{"--status", "doing"}, want: []string{"beta"}},
		{name: "priority list", args: []string{"--priority", "high,critical"}, want: []string{"beta", "gamma"}},
		{name: "tag", args: []string{"--tag", "backend"}, want: []string{"alpha", "gamma"}},
		{name: "assignee", args: []string{"--assignee", "SAM"}, want: []string{"alpha"}},
		{name: "sort priority", args: []string{"--sort", "priority"}, want: []string{"beta", "gamma", "alpha"}},
		{name: "limit", args: []string{"--limit", "2"}, want: []string{"alpha", "beta"}},
		{name: "filter expression", args: []string{"--filter", "tag:backend priority:high"}, want: []string{"gamma"}},
		{name: "negated filter", args: []string{"--filter", "-tag:backend"}, want: []string{"beta"}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if diff := cmp.Diff(tt.want, listSlugs(t, c, tt.args...)); diff != "" {
				t.Errorf("list %v mismatch (-want +got):\n%s", tt.args, diff)
			}
		})
	}
}

func Test_List_Rejects_Open_And_Closed_When_Combined(t *testing.T) {
	t.Parallel()

	c := cli.NewProject(t)
	stderr := c.MustFail("list", "--open", "--closed")

	cli.AssertContains(t, stderr, "cannot be combined")
}

func Test_List_Rejects_Unknown_Status_When_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewProject(t)
	stderr := c.MustFail("list", "--status", "waiting")

	cli.AssertContains(t, stderr, "unknown status")
	cli.AssertContains(t, stderr, "hint: valid statuses")
}

func Test_List_Prints_Empty_Message_When_No_Tickets(t *testing.T) {
	t.Parallel()

	c := cli.NewProject(t)

	if got, want := c.MustRun("list"), "No tickets found"; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}

	if got, want := c.MustRun("--json", "list"), "[]"; got != want {
		t.Errorf("json stdout=%q, want=%q", got, want)
	}
}

func Test_Board_Groups_Tickets_By_Status_When_Invoked(t *testing.T) {
	t.Parallel()

	c := seedList(t)

	var columns []struct {
		Status  ticket.Status   `json:"status"`
		Tickets []ticket.Ticket `json:"tickets"`
	}

	c.MustJSON(&columns, "board")

	got := map[ticket.Status][]string{}

	for _, col := range columns {
		for _, tk := range col.Tickets {
			got[col.Status] = append(got[col.Status], tk.Slug)
		}
	}

	want := map[ticket.Status][]string{
		ticket.StatusTodo:  {"gamma", "alpha"},
		ticket.StatusDoing: {"beta"},
		ticket.StatusDone:  {"delta"},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("board mismatch (-want +got):\n%s", diff)
	}

	out := c.MustRun("board")
	cli.AssertContains(t, out, "Todo (2)")
	cli.AssertContains(t, out, "Doing (1)")
}

func Test_Search_Finds_Tickets_When_Query_Matches(t *testing.T) {
	t.Parallel()

	c := cli.NewProject(t)
	c.NewTicket("login-form", "-d", "OAuth redirect breaks")
	c.NewTicket("signup", "--tags", "oauth")
	c.NewTicket("billing")

	var found []ticket.Ticket

	c.MustJSON(&found, "search", "oauth")

	if got, want := len(found), 2; got != want {
		t.Errorf("matches=%d, want=%d", got, want)
	}

	c.MustJSON(&found, "search", "--tags", "oauth")

	if got, want := len(found), 1; got != want {
		t.Fatalf("tag matches=%d, want=%d", got, want)
	}

	if got, want := found[0].Slug, "signup"; got != want {
		t.Errorf("slug=%q, want=%q", got, want)
	}

	cli.AssertContains(t, c.MustRun("search", "nothing-like-this"), "No tickets match")
}
