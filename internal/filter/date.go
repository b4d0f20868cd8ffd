package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar days in the local zone of the
// time it was parsed against.
type DateRange struct {
	From, To time.Time // midnight of the first and last day
}

// Contains reports whether t falls on a day in r.
func (r DateRange) Contains(t time.Time) bool {
	day := midnight(t.In(r.From.Location()))

	return !day.Before(r.From) && !day.After(r.To)
}

// ParseDateRange accepts today, yesterday, week, month, last-N (the last N
// days including today), YYYY-MM-DD and YYYY-MM-DD..YYYY-MM-DD.
func ParseDateRange(s string, now time.Time) (DateRange, error) {
	s = strings.TrimSpace(s)
	today := midnight(now)

	switch s {
	case "today":
		return DateRange{today, today}, nil
	case "yesterday":
		y := today.AddDate(0, 0, -1)

		return DateRange{y, y}, nil
	case "week", "this-week":
		offset := (int(today.Weekday()) + 6) % 7
		start := today.AddDate(0, 0, -offset)

		return DateRange{start, start.AddDate(0, 0, 6)}, nil
	case "month", "this-month":
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())

		return DateRange{start, start.AddDate(0, 1, -1)}, nil
	}

	if n, ok := strings.CutPrefix(s, "last-"); ok {
		days, err := strconv.Atoi(n)
		if err != nil || days < 1 {
			return DateRange{}, fmt.Errorf("invalid day count in %q", s)
		}

		return DateRange{today.AddDate(0, 0, 1-days), today}, nil
	}

	if from, to, ok := strings.Cut(s, ".."); ok {
		start, err := parseDay(from, now.Location())
		if err != nil {
			return DateRange{}, err
		}

		end, err := parseDay(to, now.Location())
		if err != nil {
			return DateRange{}, err
		}

		if end.Before(start) {
			return DateRange{}, fmt.Errorf("range %q ends before it starts", s)
		}

		return DateRange{start, end}, nil
	}

	day, err := parseDay(s, now.Location())
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid date %q: use today, yesterday, week, month, last-N, YYYY-MM-DD or YYYY-MM-DD..YYYY-MM-DD", s)
	}

	return DateRange{day, day}, nil
}

// ParseDay parses YYYY-MM-DD in the zone of now. Relative words are accepted
// too and resolve to the first day of their range.
func ParseDay(s string, now time.Time) (time.Time, error) {
	r, err := ParseDateRange(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}

	return r.From, nil
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}

	return t, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
