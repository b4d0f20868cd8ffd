package timetrack_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/vibe-ticket/internal/storage"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
	"github.com/calvinalkan/vibe-ticket/internal/timetrack"
)

var now = time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *timetrack.Store {
	t.Helper()

	return timetrack.NewStore(storage.Open(filepath.Join(t.TempDir(), ticket.DirName)))
}

func mustTicket(t *testing.T, slug string) ticket.Ticket {
	t.Helper()

	tk, err := ticket.NewBuilder(slug).CreatedAt(now).Build()
	if err != nil {
		t.Fatal(err)
	}

	return tk
}

func Test_ParseDuration_Accepts_Hours_And_Minutes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int
	}{
		{"1h30m", 90},
		{"2h", 120},
		{"45m", 45},
		{"45", 45},
		{"1H 5M", 65},
		{" 90 ", 90},
	}

	for _, tc := range tests {
		got, err := timetrack.ParseDuration(tc.in)
		if err != nil {
			t.Errorf("ParseDuration(%q): %v", tc.in, err)

			continue
		}

		if got != tc.want {
			t.Errorf("ParseDuration(%q)=%d, want=%d", tc.in, got, tc.want)
		}
	}
}

func Test_ParseDuration_Rejects_Zero_And_Garbage(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "0", "0m", "0h0m", "-5", "abc", "1d", "m", "1.5h"} {
		_, err := timetrack.ParseDuration(in)
		if !errors.Is(err, timetrack.ErrInvalidDuration) {
			t.Errorf("ParseDuration(%q): err=%v, want=%v", in, err, timetrack.ErrInvalidDuration)
		}

		if !errors.Is(err, ticket.ErrInvalidInput) {
			t.Errorf("ParseDuration(%q): err=%v, want invalid input kind", in, err)
		}
	}
}

func Test_ParseDuration_Rejects_Out_Of_Range_Input(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{"hours overflow int", "307445734561825861h"},
		{"minutes overflow int", "99999999999999999999m"},
		{"bare number overflows int", "99999999999999999999"},
		{"hours times sixty overflows", "153722867280912931h"},
		{"hours plus minutes overflow", "153722867280912930h59m"},
		{"over a week in hours", "169h"},
		{"over a week in minutes", "10081m"},
		{"over a week as bare number", "10081"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := timetrack.ParseDuration(tc.in)
			if !errors.Is(err, timetrack.ErrInvalidDuration) {
				t.Fatalf("ParseDuration(%q)=%d, err=%v, want=%v", tc.in, got, err, timetrack.ErrInvalidDuration)
			}

			if got != 0 {
				t.Errorf("ParseDuration(%q)=%d, want=0", tc.in, got)
			}
		})
	}
}

func Test_ParseDuration_Accepts_Exactly_One_Week(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"168h", "167h60m", "10080"} {
		got, err := timetrack.ParseDuration(in)
		if err != nil {
			t.Fatalf("ParseDuration(%q): %v", in, err)
		}

		if got != timetrack.MaxMinutes {
			t.Errorf("ParseDuration(%q)=%d, want=%d", in, got, timetrack.MaxMinutes)
		}
	}
}

func Test_Store_Log_Rejects_More_Than_A_Week(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	tk := mustTicket(t, "api")

	_, err := st.Log(tk.ID, timetrack.MaxMinutes+1, "", time.Time{}, now)
	if !errors.Is(err, timetrack.ErrInvalidDuration) {
		t.Errorf("err=%v, want=%v", err, timetrack.ErrInvalidDuration)
	}
}

func Test_FormatMinutes_Drops_Zero_Parts(t *testing.T) {
	t.Parallel()

	for in, want := range map[int]string{0: "0m", 5: "5m", 60: "1h", 125: "2h 5m"} {
		if got := timetrack.FormatMinutes(in); got != want {
			t.Errorf("FormatMinutes(%d)=%q, want=%q", in, got, want)
		}
	}
}

func Test_Store_Stop_Logs_Elapsed_Time_When_Timer_Running(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	tk := mustTicket(t, "fix-login")

	if _, err := st.Start(tk, "pairing", now); err != nil {
		t.Fatalf("Start: %v", err)
	}

	other := mustTicket(t, "other")
	if _, err := st.Start(other, "", now); !errors.Is(err, timetrack.ErrTimerRunning) {
		t.Fatalf("second Start: err=%v, want=%v", err, timetrack.ErrTimerRunning)
	}

	running, err := st.Running()
	if err != nil || running == nil {
		t.Fatalf("Running()=%v, %v", running, err)
	}

	if got, want := running.TicketSlug, "fix-login"; got != want {
		t.Errorf("slug=%q, want=%q", got, want)
	}

	e, err := st.Stop(now.Add(95*time.Minute + 40*time.Second))
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if got, want := e.Minutes, 95; got != want {
		t.Errorf("minutes=%d, want=%d", got, want)
	}

	if got, want := e.Notes, "pairing"; got != want {
		t.Errorf("notes=%q, want=%q", got, want)
	}

	if running, _ := st.Running(); running != nil {
		t.Fatalf("timer still running after Stop: %+v", running)
	}

	if _, err := st.Stop(now); !errors.Is(err, timetrack.ErrNoTimer) {
		t.Fatalf("Stop without timer: err=%v", err)
	}
}

func Test_Store_Stop_Logs_At_Least_One_Minute(t *testing.T) {
	t.Parallel()

	st := newStore(t)

	if _, err := st.Start(mustTicket(t, "quick"), "", now); err != nil {
		t.Fatal(err)
	}

	e, err := st.Stop(now.Add(10 * time.Second))
	if err != nil {
		t.Fatal(err)
	}

	if got, want := e.Minutes, 1; got != want {
		t.Errorf("minutes=%d, want=%d", got, want)
	}
}

func Test_Store_Cancel_Discards_Timer_Without_Entry(t *testing.T) {
	t.Parallel()

	st := newStore(t)

	if _, err := st.Start(mustTicket(t, "abandoned"), "", now); err != nil {
		t.Fatal(err)
	}

	if err := st.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	entries, err := st.Entries(ticket.ID{})
	if err != nil {
		t.Fatal(err)
	}

	if len(entries) != 0 {
		t.Fatalf("entries=%v, want none", entries)
	}

	if err := st.Cancel(); !errors.Is(err, timetrack.ErrNoTimer) {
		t.Fatalf("second Cancel: err=%v", err)
	}
}

func Test_Store_Report_Sums_Per_Ticket_Largest_First(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	a := mustTicket(t, "alpha")
	b := mustTicket(t, "beta")

	logs := []struct {
		id      ticket.ID
		minutes int
		date    time.Time
	}{
		{a.ID, 30, now.AddDate(0, 0, -3)},
		{b.ID, 45, now.AddDate(0, 0, -1)},
		{a.ID, 20, now},
		{b.ID, 60, now},
	}

	for _, l := range logs {
		if _, err := st.Log(l.id, l.minutes, "", l.date, now); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	if _, err := st.Log(a.ID, 0, "", now, now); !errors.Is(err, timetrack.ErrInvalidDuration) {
		t.Fatalf("Log(0): err=%v", err)
	}

	got, err := st.Report(time.Time{})
	if err != nil {
		t.Fatal(err)
	}

	want := []timetrack.Total{
		{TicketID: b.ID, Minutes: 105, Entries: 2},
		{TicketID: a.ID, Minutes: 50, Entries: 2},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Report mismatch (-want +got):\n%s", diff)
	}

	recent, err := st.Report(now.AddDate(0, 0, -2))
	if err != nil {
		t.Fatal(err)
	}

	want = []timetrack.Total{
		{TicketID: b.ID, Minutes: 105, Entries: 2},
		{TicketID: a.ID, Minutes: 20, Entries: 1},
	}

	if diff := cmp.Diff(want, recent); diff != "" {
		t.Fatalf("Report(since) mismatch (-want +got):\n%s", diff)
	}

	entries, err := st.Entries(a.ID)
	if err != nil {
		t.Fatal(err)
	}

	if got, want := len(entries), 2; got != want {
		t.Fatalf("len(entries)=%d, want=%d", got, want)
	}

	if !entries[0].Date.Before(entries[1].Date) {
		t.Errorf("entries not oldest first: %v", entries)
	}
}
