// Package filter parses ticket filter expressions and stores named ones.
//
// An expression is a whitespace separated list of terms, all of which must
// match:
//
//	status:todo,doing priority:high tag:auth -assignee:sam login
//
// A term is key:value[,value...]; the values of one term are alternatives.
// A leading "-" negates the term. A term without a key matches words in the
// title or description, case-insensitively.
package filter

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// ErrInvalidFilter is returned for expressions that do not parse.
var ErrInvalidFilter = fmt.Errorf("%w: invalid filter", ticket.ErrInvalidInput)

// Keys lists the supported term keys.
var Keys = []string{"status", "priority", "tag", "assignee", "archived", "slug", "title", "has", "created", "closed"}

type term struct {
	negate bool
	match  func(t *ticket.Ticket) bool
}

// Expr is a parsed expression. The zero value matches every ticket.
type Expr struct {
	src   string
	terms []term
}

// Parse parses s relative to now (used by date terms).
func Parse(s string, now time.Time) (Expr, error) {
	e := Expr{src: strings.TrimSpace(s)}

	for _, field := range strings.Fields(s) {
		tm, err := parseTerm(field, now)
		if err != nil {
			return Expr{}, err
		}

		e.terms = append(e.terms, tm)
	}

	return e, nil
}

func (e Expr) String() string { return e.src }

// IsZero reports whether e has no terms.
func (e Expr) IsZero() bool { return len(e.terms) == 0 }

// Match reports whether t satisfies every term.
func (e Expr) Match(t *ticket.Ticket) bool {
	for _, tm := range e.terms {
		if tm.match(t) == tm.negate {
			return false
		}
	}

	return true
}

// Apply returns the tickets matching e, preserving order.
func (e Expr) Apply(tickets []ticket.Ticket) []ticket.Ticket {
	out := make([]ticket.Ticket, 0, len(tickets))

	for i := range tickets {
		if e.Match(&tickets[i]) {
			out = append(out, tickets[i])
		}
	}

	return out
}

func parseTerm(field string, now time.Time) (term, error) {
	tm := term{}

	if strings.HasPrefix(field, "-") && len(field) > 1 {
		tm.negate = true
		field = field[1:]
	}

	key, value, ok := strings.Cut(field, ":")
	if !ok {
		word := strings.ToLower(field)
		tm.match = func(t *ticket.Ticket) bool {
			return strings.Contains(strings.ToLower(t.Title), word) ||
				strings.Contains(strings.ToLower(t.Description), word)
		}

		return tm, nil
	}

	key = strings.ToLower(key)
	if key == "tags" {
		key = "tag"
	}

	values := slices.DeleteFunc(strings.Split(value, ","), func(v string) bool { return v == "" })
	if len(values) == 0 {
		return term{}, fmt.Errorf("%w: %q has no value", ErrInvalidFilter, field)
	}

	match, err := matcher(key, values, now)
	if err != nil {
		return term{}, fmt.Errorf("%w: %q: %w", ErrInvalidFilter, field, err)
	}

	tm.match = match

	return tm, nil
}

//nolint:cyclop,funlen // one case per key
func matcher(key string, values []string, now time.Time) (func(*ticket.Ticket) bool, error) {
	switch key {
	case "status":
		want := make([]ticket.Status, 0, len(values))

		for _, v := range values {
			s, err := ticket.ParseStatus(v)
			if err != nil {
				return nil, err
			}

			want = append(want, s)
		}

		return func(t *ticket.Ticket) bool { return slices.Contains(want, t.Status) }, nil

	case "priority":
		want := make([]ticket.Priority, 0, len(values))

		for _, v := range values {
			p, err := ticket.ParsePriority(v)
			if err != nil {
				return nil, err
			}

			want = append(want, p)
		}

		return func(t *ticket.Ticket) bool { return slices.Contains(want, t.Priority) }, nil

	case "tag":
		return func(t *ticket.Ticket) bool {
			return slices.ContainsFunc(values, t.HasTag)
		}, nil

	case "assignee":
		return func(t *ticket.Ticket) bool {
			for _, v := range values {
				if v == "none" && t.Assignee == "" || strings.EqualFold(v, t.Assignee) {
					return true
				}
			}

			return false
		}, nil

	case "archived":
		if len(values) != 1 {
			return nil, errors.New("archived takes one value")
		}

		want, err := strconv.ParseBool(values[0])
		if err != nil {
			return nil, fmt.Errorf("archived: %w", err)
		}

		return func(t *ticket.Ticket) bool { return t.Extensions.Archived == want }, nil

	case "slug", "title":
		return func(t *ticket.Ticket) bool {
			field := t.Slug
			if key == "title" {
				field = t.Title
			}

			for _, v := range values {
				if strings.Contains(strings.ToLower(field), strings.ToLower(v)) {
					return true
				}
			}

			return false
		}, nil

	case "has":
		for _, v := range values {
			if !slices.Contains([]string{"tasks", "assignee", "spec", "worktree", "open-tasks"}, v) {
				return nil, fmt.Errorf("has: unknown value %q", v)
			}
		}

		return func(t *ticket.Ticket) bool {
			return slices.ContainsFunc(values, func(v string) bool { return has(t, v) })
		}, nil

	case "created", "closed":
		ranges := make([]DateRange, 0, len(values))

		for _, v := range values {
			r, err := ParseDateRange(v, now)
			if err != nil {
				return nil, err
			}

			ranges = append(ranges, r)
		}

		return func(t *ticket.Ticket) bool {
			at := &t.CreatedAt
			if key == "closed" {
				at = t.ClosedAt
			}

			if at == nil {
				return false
			}

			return slices.ContainsFunc(ranges, func(r DateRange) bool { return r.Contains(*at) })
		}, nil
	}

	return nil, fmt.Errorf("unknown key %q (valid: %s)", key, strings.Join(Keys, ", "))
}

func has(t *ticket.Ticket, what string) bool {
	switch what {
	case "tasks":
		return len(t.Tasks) > 0
	case "open-tasks":
		done, total := t.TaskProgress()

		return done < total
	case "assignee":
		return t.Assignee != ""
	case "spec":
		return t.Extensions.SpecID != ""
	case "worktree":
		return t.Extensions.Worktree != ""
	}

	return false
}
