package ticket

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// shortLen is the length of the display prefix returned by Short.
const shortLen = 8

// ID identifies a ticket. It wraps a random (v4) UUID and is immutable.
// The zero value means "unset".
type ID struct{ u uuid.UUID }

// TaskID identifies a task within a ticket.
type TaskID struct{ u uuid.UUID }

// NewID returns a fresh random ticket id.
func NewID() ID { return ID{uuid.New()} }

// NewTaskID returns a fresh random task id.
func NewTaskID() TaskID { return TaskID{uuid.New()} }

// ParseID parses the canonical textual form of a ticket id.
func ParseID(s string) (ID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ID{}, err
	}

	return ID{u}, nil
}

// ParseTaskID parses the canonical textual form of a task id.
func ParseTaskID(s string) (TaskID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return TaskID{}, err
	}

	return TaskID{u}, nil
}

func parseUUID(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.UUID{}, fmt.Errorf("%w: empty", ErrMalformedID)
	}

	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("%w %q: %w", ErrMalformedID, s, err)
	}

	return u, nil
}

func (id ID) String() string { return id.u.String() }
func (id ID) Short() string { return id.u.String()[:shortLen] }
func (id ID) IsZero() bool { return id.u == uuid.Nil }
func (id ID) Compare(o ID) int { return bytes.Compare(id.u[:], o.u[:]) }
func (id TaskID) String() string { return id.u.String() }
func (id TaskID) Short() string { return id.u.String()[:shortLen] }
func (id TaskID) IsZero() bool { return id.u == uuid.Nil }

func (id TaskID) Compare(o TaskID) int { return bytes.Compare(id.u[:], o.u[:]) }

func (id ID) Equal(o ID) bool { return id.u == o.u }
func (id TaskID) Equal(o TaskID) bool { return id.u == o.u }

func (id ID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}

	*id = parsed

	return nil
}

func (id TaskID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *TaskID) UnmarshalText(b []byte) error {
	parsed, err := ParseTaskID(string(b))
	if err != nil {
		return err
	}

	*id = parsed

	return nil
}
