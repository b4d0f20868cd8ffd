package storage

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// Memory is a Repository held in process memory. Records are copied on the
// way in and out, so callers never share state with the store.
type Memory struct {
	mu      sync.Mutex
	tickets map[ticket.ID]ticket.Ticket
	active  []ticket.ID
}

// NewMemory returns an empty Memory.
func NewMemory() *Memory {
	return &Memory{tickets: make(map[ticket.ID]ticket.Ticket)}
}

func (m *Memory) Save(t ticket.Ticket) error {
	if t.ID.IsZero() {
		return fmt.Errorf("%w: ticket has no id", ticket.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := t.Clone()
	c.Compact()
	m.tickets[t.ID] = c

	return nil
}

func (m *Memory) Load(id ticket.ID) (ticket.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[id]
	if !ok {
		return ticket.Ticket{}, fmt.Errorf("%w: %s", ticket.ErrTicketNotFound, id)
	}

	return t.Clone(), nil
}

func (m *Memory) LoadAll() ([]ticket.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]ticket.Ticket, 0, len(m.tickets))
	for _, t := range m.tickets {
		all = append(all, t.Clone())
	}

	slices.SortFunc(all, func(a, b ticket.Ticket) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), a.ID.Compare(b.ID))
	})

	return all, nil
}

func (m *Memory) Delete(id ticket.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tickets[id]; !ok {
		return fmt.Errorf("%w: %s", ticket.ErrTicketNotFound, id)
	}

	delete(m.tickets, id)

	return nil
}

func (m *Memory) Exists(id ticket.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.tickets[id]

	return ok, nil
}

func (m *Memory) Find(pred Predicate) ([]ticket.Ticket, error) {
	all, _ := m.LoadAll()

	return filter(all, pred), nil
}

func (m *Memory) Count(pred Predicate) (int, error) {
	found, _ := m.Find(pred)

	return len(found), nil
}

func (m *Memory) SetActive(id ticket.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = []ticket.ID{id}

	return nil
}

func (m *Memory) GetActive() (ticket.ID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.active) == 0 {
		return ticket.ID{}, false, nil
	}

	return m.active[0], true, nil
}

func (m *Memory) ClearActive() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = nil

	return nil
}

func (m *Memory) AddActive(id ticket.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.ContainsFunc(m.active, id.Equal) {
		m.active = append(m.active, id)
	}

	return nil
}

func (m *Memory) RemoveActive(id ticket.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = slices.DeleteFunc(m.active, id.Equal)

	return nil
}

func (m *Memory) GetAllActive() ([]ticket.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.active), nil
}
