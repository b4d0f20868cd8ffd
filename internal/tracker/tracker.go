// Package tracker holds the ticket operations shared by the CLI and the MCP
// server: reference resolution, creation, status transitions, edits and
// tasks. Every mutation is saved through a [storage.Repository] and announced
// on an [events.Bus].
package tracker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/calvinalkan/vibe-ticket/internal/events"
	"github.com/calvinalkan/vibe-ticket/internal/storage"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// ErrAmbiguousRef is returned when a reference matches several tickets.
var ErrAmbiguousRef = fmt.Errorf("%w: ambiguous ticket reference", ticket.ErrInvalidInput)

const minPrefixLen = 4

// Service runs ticket operations against one repository.
type Service struct {
	repo storage.Repository
	bus  *events.Bus
	now  func() time.Time
	log  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLogger sets the logger that receives subscriber failures.
func WithLogger(log *slog.Logger) Option { return func(s *Service) { s.log = log } }

// New returns a Service. A nil bus gets a private one with no subscribers.
func New(repo storage.Repository, bus *events.Bus, opts ...Option) *Service {
	if bus == nil {
		bus = events.New()
	}

	s := &Service{
		repo: repo,
		bus:  bus,
		now:  time.Now,
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Repo returns the underlying repository.
func (s *Service) Repo() storage.Repository { return s.repo }

// Now returns the service clock.
func (s *Service) Now() time.Time { return s.now() }

// Resolve finds the ticket ref names. An empty ref means the active ticket.
// Otherwise ref may be a full id, an id prefix of at least four characters,
// a slug, or a slug without its timestamp prefix.
func (s *Service) Resolve(ref string) (ticket.Ticket, error) {
	ref = strings.TrimSpace(ref)

	if ref == "" {
		id, ok, err := s.repo.GetActive()
		if err != nil {
			return ticket.Ticket{}, fmt.Errorf("read active ticket: %w", err)
		}

		if !ok {
			return ticket.Ticket{}, ticket.ErrNoActiveTicket
		}

		t, err := s.repo.Load(id)
		if err != nil {
			return ticket.Ticket{}, fmt.Errorf("load active ticket %s: %w", id.Short(), err)
		}

		return t, nil
	}

	if id, err := ticket.ParseID(ref); err == nil {
		return s.repo.Load(id)
	}

	all, err := s.repo.LoadAll()
	if err != nil {
		return ticket.Ticket{}, fmt.Errorf("load tickets: %w", err)
	}

	var loose []ticket.Ticket

	for _, t := range all {
		if t.Slug == ref {
			return t, nil
		}

		if trimSlugPrefix(t.Slug) == ref || (len(ref) >= minPrefixLen && strings.HasPrefix(t.ID.String(), ref)) {
			loose = append(loose, t)
		}
	}

	switch len(loose) {
	case 0:
		return ticket.Ticket{}, fmt.Errorf("%w: %s", ticket.ErrTicketNotFound, ref)
	case 1:
		return loose[0], nil
	default:
		slugs := make([]string, 0, len(loose))
		for _, t := range loose {
			slugs = append(slugs, t.Slug)
		}

		return ticket.Ticket{}, fmt.Errorf("%w: %q matches %s", ErrAmbiguousRef, ref, strings.Join(slugs, ", "))
	}
}

var slugPrefix = regexp.MustCompile(`^\d{12}-`)

func trimSlugPrefix(slug string) string {
	return slugPrefix.ReplaceAllString(slug, "")
}

// Active returns the tickets on the active list, skipping ids whose record
// no longer exists.
func (s *Service) Active() ([]ticket.Ticket, error) {
	ids, err := s.repo.GetAllActive()
	if err != nil {
		return nil, err
	}

	out := make([]ticket.Ticket, 0, len(ids))

	for _, id := range ids {
		t, err := s.repo.Load(id)
		if err != nil {
			s.log.Debug("skipping stale active ticket", "id", id.String(), "err", err)

			continue
		}

		out = append(out, t)
	}

	return out, nil
}

// commit saves next. When the status differs from prev the save is wrapped
// in pre and post status events; kinds are published after the save.
func (s *Service) commit(ctx context.Context, prev, next ticket.Ticket, kinds ...events.Kind) error {
	changed := prev.Status != next.Status

	if changed {
		err := s.bus.Publish(ctx, events.Event{
			Kind:   events.BeforeStatusChange,
			Ticket: prev,
			From:   prev.Status,
			To:     next.Status,
			At:     s.now(),
		})
		if err != nil {
			return err
		}
	}

	if err := s.repo.Save(next); err != nil {
		return fmt.Errorf("save ticket %s: %w", next.Slug, err)
	}

	if changed {
		s.notify(ctx, events.Event{Kind: events.StatusChanged, Ticket: next, From: prev.Status, To: next.Status})
	}

	for _, k := range kinds {
		s.notify(ctx, events.Event{Kind: k, Ticket: next})
	}

	return nil
}

func (s *Service) notify(ctx context.Context, e events.Event) {
	e.At = s.now()

	if err := s.bus.Publish(ctx, e); err != nil {
		s.log.Warn("event subscriber failed", "event", string(e.Kind), "ticket", e.Ticket.Slug, "err", err)
	}
}
