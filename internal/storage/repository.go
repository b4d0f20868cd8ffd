// Package storage persists tickets and the active-ticket list.
//
// [FileStorage] keeps one YAML file per ticket under <root>/tickets and guards
// every operation with an advisory lock under <root>/.locks. [Memory] is an
// in-process implementation of the same interfaces.
package storage

import "github.com/calvinalkan/vibe-ticket/internal/ticket"

// Predicate selects tickets for Find and Count.
type Predicate func(*ticket.Ticket) bool

// TicketRepository persists tickets.
type TicketRepository interface {
	// Save creates or overwrites the record for t.ID.
	Save(t ticket.Ticket) error

	// Load fails with ticket.ErrNotFound for an unknown id and
	// ticket.ErrCorrupt for an unreadable record. Empty Tags, Tasks and
	// Custom load back as nil; see ticket.Ticket.Compact.
	Load(id ticket.ID) (ticket.Ticket, error)

	// LoadAll returns every ticket ordered by creation time.
	LoadAll() ([]ticket.Ticket, error)

	// Delete fails with ticket.ErrNotFound when nothing is stored for id.
	Delete(id ticket.ID) error

	Exists(id ticket.ID) (bool, error)

	// Find returns the subset of LoadAll matching pred, in LoadAll order.
	Find(pred Predicate) ([]ticket.Ticket, error)

	Count(pred Predicate) (int, error)
}

// ActiveRepository tracks the tickets currently being worked on. The list
// is canonical; the single active ticket is its first entry.
type ActiveRepository interface {
	// SetActive replaces the list with exactly id.
	SetActive(id ticket.ID) error

	// GetActive returns the first entry. ok is false when the list is empty.
	GetActive() (id ticket.ID, ok bool, err error)

	ClearActive() error

	// AddActive appends id unless already present.
	AddActive(id ticket.ID) error

	RemoveActive(id ticket.ID) error

	GetAllActive() ([]ticket.ID, error)
}

// Repository is both capability sets.
type Repository interface {
	TicketRepository
	ActiveRepository
}

var (
	_ Repository = (*FileStorage)(nil)
	_ Repository = (*Memory)(nil)
)
