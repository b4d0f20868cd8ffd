package ticket

import (
	"fmt"
	"strings"
)

// Status is the workflow state of a ticket.
type Status string

const (
	StatusTodo    Status = "todo"
	StatusDoing   Status = "doing"
	StatusReview  Status = "review"
	StatusBlocked Status = "blocked"
	StatusDone    Status = "done"
)

// Statuses lists every status in board column order.
var Statuses = []Status{StatusTodo, StatusDoing, StatusReview, StatusBlocked, StatusDone}

// ParseStatus accepts the canonical names plus common aliases
// (in-progress, wip, completed, closed, reviewing).
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "todo":
		return StatusTodo, nil
	case "doing", "in-progress", "in_progress", "wip":
		return StatusDoing, nil
	case "review", "reviewing":
		return StatusReview, nil
	case "blocked":
		return StatusBlocked, nil
	case "done", "completed", "closed":
		return StatusDone, nil
	default:
		return "", fmt.Errorf("%w %q (want todo|doing|review|blocked|done)", ErrInvalidStatus, s)
	}
}

// IsActive reports whether work is underway (doing or review).
func (s Status) IsActive() bool { return s == StatusDoing || s == StatusReview }

// CanStart reports whether start is allowed from s.
func (s Status) CanStart() bool { return s == StatusTodo || s == StatusBlocked }

// Title is the display name.
func (s Status) Title() string {
	switch s {
	case StatusTodo:
		return "Todo"
	case StatusDoing:
		return "Doing"
	case StatusReview:
		return "Review"
	case StatusBlocked:
		return "Blocked"
	case StatusDone:
		return "Done"
	default:
		return string(s)
	}
}

func (s Status) String() string { return string(s) }

func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}

// Priority orders tickets; higher values are more urgent.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// DefaultPriority is used when neither flags nor config pick one.
const DefaultPriority = PriorityMedium

// Priorities lists every priority from least to most urgent.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// ParsePriority accepts low|medium|high|critical, case-insensitively.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "medium", "med":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "critical", "crit":
		return PriorityCritical, nil
	default:
		return 0, fmt.Errorf("%w %q (want low|medium|high|critical)", ErrInvalidPriority, s)
	}
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Valid reports whether p is one of the four known priorities.
func (p Priority) Valid() bool { return p >= PriorityLow && p <= PriorityCritical }

func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPriority, int(p))
	}

	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	parsed, err := ParsePriority(string(b))
	if err != nil {
		return err
	}

	*p = parsed

	return nil
}
