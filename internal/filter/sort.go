package filter

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// SortKeys lists the values accepted by Sort.
var SortKeys = []string{"created", "priority", "status", "slug", "title"}

// Sort orders tickets in place by key. Priority sorts highest first and
// status in workflow order; ties keep creation order.
func Sort(tickets []ticket.Ticket, key string, reverse bool) error {
	var by func(a, b *ticket.Ticket) int

	switch key {
	case "", "created":
		by = func(a, b *ticket.Ticket) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case "priority":
		by = func(a, b *ticket.Ticket) int { return cmp.Compare(b.Priority, a.Priority) }
	case "status":
		by = func(a, b *ticket.Ticket) int {
			return cmp.Compare(slices.Index(ticket.Statuses, a.Status), slices.Index(ticket.Statuses, b.Status))
		}
	case "slug":
		by = func(a, b *ticket.Ticket) int { return strings.Compare(a.Slug, b.Slug) }
	case "title":
		by = func(a, b *ticket.Ticket) int { return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)) }
	default:
		return fmt.Errorf("%w: sort key %q (valid: %s)", ticket.ErrInvalidInput, key, strings.Join(SortKeys, ", "))
	}

	slices.SortStableFunc(tickets, func(a, b ticket.Ticket) int {
		c := by(&a, &b)
		if reverse {
			return -c
		}

		return c
	})

	return nil
}
