// Package events carries ticket lifecycle notifications from command
// handlers to hooks, the log, and the MCP server.
//
// There is no package-level bus. cli.Run builds one [Bus] per process and
// hands it to everything that publishes or subscribes.
package events

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// Kind names an event. Pre kinds are published before the change is saved
// and may veto it; the others after.
type Kind string

const (
	Created            Kind = "post_create"
	Updated            Kind = "post_edit"
	Started            Kind = "post_start"
	BeforeStatusChange Kind = "pre_status_change"
	StatusChanged      Kind = "post_status_change"
	BeforeClose        Kind = "pre_close"
	Closed             Kind = "post_close"
)

// Kinds lists every event kind in lifecycle order.
var Kinds = []Kind{Created, Updated, Started, BeforeStatusChange, StatusChanged, BeforeClose, Closed}

// ParseKind accepts the names in [Kinds], ignoring case and allowing
// dashes for underscores.
func ParseKind(s string) (Kind, bool) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")

	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}

	return "", false
}

// IsPre reports whether k is published before the change it describes.
func (k Kind) IsPre() bool { return k == BeforeStatusChange || k == BeforeClose }

// Event is one notification. Ticket is a snapshot; for pre kinds it is the
// state before the change.
type Event struct {
	Kind   Kind          `json:"event"`
	Ticket ticket.Ticket `json:"ticket"`
	From   ticket.Status `json:"from,omitempty"`
	To     ticket.Status `json:"to,omitempty"`
	At     time.Time     `json:"at"`
}

// Handler receives events. An error from a pre event handler aborts the
// operation; errors from other events are reported but change nothing.
type Handler func(ctx context.Context, e Event) error

// Bus fans events out to subscribers synchronously, in subscription order.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]Handler
	ord  []int
}

// New returns a Bus with no subscribers.
func New() *Bus {
	return &Bus{subs: make(map[int]Handler)}
}

// Subscribe registers fn and returns a func that removes it.
func (b *Bus) Subscribe(fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	b.subs[id] = fn
	b.ord = append(b.ord, id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		delete(b.subs, id)
		b.ord = slices.DeleteFunc(b.ord, func(o int) bool { return o == id })
	}
}

// Publish delivers e to every subscriber. For pre kinds delivery stops at the
// first error, which is returned. For other kinds every subscriber runs and
// the errors are joined.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	var errs []error

	for _, fn := range b.snapshot() {
		err := fn(ctx, e)
		if err == nil {
			continue
		}

		if e.Kind.IsPre() {
			return err
		}

		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (b *Bus) snapshot() []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Handler, 0, len(b.subs))

	for _, id := range b.ord {
		if fn, ok := b.subs[id]; ok {
			out = append(out, fn)
		}
	}

	return out
}
