// Package timetrack records time spent on tickets: logged entries plus at
// most one running timer, kept in time_tracking.yaml.
package timetrack

import (
	"cmp"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/calvinalkan/vibe-ticket/internal/storage"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// FileName is the sidecar under the storage root.
const FileName = "time_tracking.yaml"

var (
	ErrInvalidDuration = fmt.Errorf("%w: invalid duration", ticket.ErrInvalidInput)
	ErrTimerRunning    = fmt.Errorf("timer %w", ticket.ErrAlreadyExists)
	ErrNoTimer         = fmt.Errorf("running timer %w", ticket.ErrNotFound)
)

// Entry is one block of logged work.
type Entry struct {
	ID        string    `yaml:"id" json:"id"`
	TicketID  ticket.ID `yaml:"ticket_id" json:"ticket_id"`
	Minutes   int       `yaml:"minutes" json:"minutes"`
	Notes     string    `yaml:"notes,omitempty" json:"notes,omitempty"`
	Date      time.Time `yaml:"date" json:"date"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}

// Timer is the running stopwatch.
type Timer struct {
	TicketID   ticket.ID `yaml:"ticket_id" json:"ticket_id"`
	TicketSlug string    `yaml:"ticket_slug" json:"ticket_slug"`
	StartedAt  time.Time `yaml:"started_at" json:"started_at"`
	Notes      string    `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// Elapsed returns whole minutes since the timer started.
func (t Timer) Elapsed(now time.Time) int {
	return int(now.Sub(t.StartedAt) / time.Minute)
}

type file struct {
	Entries []Entry `yaml:"entries"`
	Timer   *Timer  `yaml:"active_timer,omitempty"`
}

// Total is the logged time for one ticket.
type Total struct {
	TicketID ticket.ID `json:"ticket_id"`
	Minutes  int       `json:"minutes"`
	Entries  int       `json:"entries"`
}

// Store reads and writes time_tracking.yaml.
type Store struct {
	doc *storage.Document[file]
}

// NewStore binds a Store to s.
func NewStore(s *storage.FileStorage) *Store {
	return &Store{doc: storage.NewDocument[file](s, FileName)}
}

// Log appends an entry and returns it with its id.
func (st *Store) Log(id ticket.ID, minutes int, notes string, date, now time.Time) (Entry, error) {
	if minutes <= 0 || minutes > MaxMinutes {
		return Entry{}, fmt.Errorf("%w: %d minutes", ErrInvalidDuration, minutes)
	}

	e := Entry{
		ID:        newEntryID(now),
		TicketID:  id,
		Minutes:   minutes,
		Notes:     notes,
		Date:      cmp.Or(date, now),
		CreatedAt: now,
	}

	err := st.doc.Update(func(f *file) error {
		f.Entries = append(f.Entries, e)

		return nil
	})

	return e, err
}

// Start begins a timer. Only one timer runs at a time.
func (st *Store) Start(tk ticket.Ticket, notes string, now time.Time) (Timer, error) {
	t := Timer{TicketID: tk.ID, TicketSlug: tk.Slug, StartedAt: now, Notes: notes}

	err := st.doc.Update(func(f *file) error {
		if f.Timer != nil {
			return fmt.Errorf("%w: tracking %s since %s", ErrTimerRunning, f.Timer.TicketSlug, f.Timer.StartedAt.Format(time.Kitchen))
		}

		f.Timer = &t

		return nil
	})

	return t, err
}

// Stop ends the running timer and logs its time, rounded down to whole
// minutes with a minimum of one.
func (st *Store) Stop(now time.Time) (Entry, error) {
	var e Entry

	err := st.doc.Update(func(f *file) error {
		if f.Timer == nil {
			return ErrNoTimer
		}

		e = Entry{
			ID:        newEntryID(now),
			TicketID:  f.Timer.TicketID,
			Minutes:   max(f.Timer.Elapsed(now), 1),
			Notes:     f.Timer.Notes,
			Date:      f.Timer.StartedAt,
			CreatedAt: now,
		}

		f.Entries = append(f.Entries, e)
		f.Timer = nil

		return nil
	})

	return e, err
}

// Cancel discards the running timer without logging.
func (st *Store) Cancel() error {
	return st.doc.Update(func(f *file) error {
		if f.Timer == nil {
			return ErrNoTimer
		}

		f.Timer = nil

		return nil
	})
}

// Running returns the active timer, if any.
func (st *Store) Running() (*Timer, error) {
	f, err := st.doc.Load()
	if err != nil {
		return nil, err
	}

	return f.Timer, nil
}

// Entries returns entries oldest first. A zero id returns entries for every
// ticket.
func (st *Store) Entries(id ticket.ID) ([]Entry, error) {
	f, err := st.doc.Load()
	if err != nil {
		return nil, err
	}

	out := f.Entries
	if !id.IsZero() {
		out = slices.DeleteFunc(out, func(e Entry) bool { return !e.TicketID.Equal(id) })
	}

	slices.SortStableFunc(out, func(a, b Entry) int { return a.Date.Compare(b.Date) })

	return out, nil
}

// Report sums entries per ticket, largest first. Entries dated before since
// are ignored when since is set.
func (st *Store) Report(since time.Time) ([]Total, error) {
	entries, err := st.Entries(ticket.ID{})
	if err != nil {
		return nil, err
	}

	byTicket := make(map[ticket.ID]*Total)

	var totals []*Total

	for _, e := range entries {
		if !since.IsZero() && e.Date.Before(since) {
			continue
		}

		t, ok := byTicket[e.TicketID]
		if !ok {
			t = &Total{TicketID: e.TicketID}
			byTicket[e.TicketID] = t
			totals = append(totals, t)
		}

		t.Minutes += e.Minutes
		t.Entries++
	}

	out := make([]Total, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}

	slices.SortStableFunc(out, func(a, b Total) int { return cmp.Compare(b.Minutes, a.Minutes) })

	return out, nil
}

func newEntryID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

var durationPattern = regexp.MustCompile(`^(?:(\d+)h)?\s*(?:(\d+)m)?$`)

// MaxMinutes caps a single entry at one week.
const MaxMinutes = 7 * 24 * 60

// ParseDuration reads "1h30m", "2h", "45m" or a bare number of minutes.
// The result is in (0, MaxMinutes].
func ParseDuration(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if n, err := strconv.Atoi(s); err == nil {
		return checkMinutes(s, n)
	}

	m := durationPattern.FindStringSubmatch(s)
	if s == "" || m == nil {
		return 0, fmt.Errorf("%w: %q (use 1h30m, 2h, 45m or minutes)", ErrInvalidDuration, s)
	}

	hours, err := strconv.Atoi(cmp.Or(m[1], "0"))
	if err != nil {
		return 0, fmt.Errorf("%w: %q: hours out of range", ErrInvalidDuration, s)
	}

	mins, err := strconv.Atoi(cmp.Or(m[2], "0"))
	if err != nil {
		return 0, fmt.Errorf("%w: %q: minutes out of range", ErrInvalidDuration, s)
	}

	if hours > (math.MaxInt-mins)/60 {
		return 0, fmt.Errorf("%w: %q is longer than %s", ErrInvalidDuration, s, FormatMinutes(MaxMinutes))
	}

	return checkMinutes(s, hours*60+mins)
}

func checkMinutes(s string, n int) (int, error) {
	switch {
	case n <= 0:
		return 0, fmt.Errorf("%w: %q must be positive", ErrInvalidDuration, s)
	case n > MaxMinutes:
		return 0, fmt.Errorf("%w: %q is longer than %s", ErrInvalidDuration, s, FormatMinutes(MaxMinutes))
	}

	return n, nil
}

// FormatMinutes renders minutes as "2h 5m", "2h" or "5m".
func FormatMinutes(minutes int) string {
	h, m := minutes/60, minutes%60

	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}
