// Package exchange converts tickets to and from portable files: JSON, YAML
// and CSV in both directions, Markdown for export only.
package exchange

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/calvinalkan/vibe-ticket/internal/storage"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// Format names a file format.
type Format string

const (
	JSON     Format = "json"
	YAML     Format = "yaml"
	CSV      Format = "csv"
	Markdown Format = "markdown"
)

// Formats lists every export format.
var Formats = []Format{JSON, YAML, CSV, Markdown}

var ErrUnknownFormat = fmt.Errorf("%w: unknown format", ticket.ErrInvalidInput)

var csvHeader = []string{"id", "slug", "title", "description", "priority", "status", "tags", "assignee", "created_at"}

// ParseFormat accepts json, yaml/yml, csv and markdown/md.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	default:
		return "", fmt.Errorf("%w %q (want json|yaml|csv|markdown)", ErrUnknownFormat, s)
	}
}

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) (Format, bool) {
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))

	return f, err == nil
}

// Detect sniffs data: a JSON array or object, then YAML, then CSV with a
// header row.
func Detect(data []byte) (Format, error) {
	trimmed := bytes.TrimSpace(data)

	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') && json.Valid(trimmed) {
		return JSON, nil
	}

	if bytes.HasPrefix(trimmed, []byte(strings.Join(csvHeader[:2], ","))) {
		return CSV, nil
	}

	var sniff []map[string]any
	if yaml.Unmarshal(trimmed, &sniff) == nil && len(sniff) > 0 {
		return YAML, nil
	}

	if bytes.Contains(trimmed, []byte(",")) && bytes.Count(trimmed, []byte("\n")) > 0 {
		return CSV, nil
	}

	return "", fmt.Errorf("%w: cannot detect format, content must be JSON, YAML or CSV", ErrUnknownFormat)
}

// Export writes tickets to w. now stamps the Markdown header.
func Export(w io.Writer, f Format, tickets []ticket.Ticket, now time.Time) error {
	if tickets == nil {
		tickets = []ticket.Ticket{}
	}

	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(tickets)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(tickets); err != nil {
			return err
		}

		return enc.Close()
	case CSV:
		return writeCSV(w, tickets)
	case Markdown:
		return writeMarkdown(w, tickets, now)
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, f)
	}
}

func writeCSV(w io.Writer, tickets []ticket.Ticket) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, t := range tickets {
		err := cw.Write([]string{
			t.ID.String(),
			t.Slug,
			t.Title,
			t.Description,
			t.Priority.String(),
			t.Status.String(),
			strings.Join(t.Tags, ","),
			t.Assignee,
			t.CreatedAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

func writeMarkdown(w io.Writer, tickets []ticket.Ticket, now time.Time) error {
	var b strings.Builder

	b.WriteString("# Tickets Export\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", now.UTC().Format("2006-01-02 15:04:05 UTC"))

	for _, t := range tickets {
		fmt.Fprintf(&b, "## %s - %s\n\n", t.Slug, t.Title)
		fmt.Fprintf(&b, "- **ID**: %s\n", t.ID)
		fmt.Fprintf(&b, "- **Status**: %s\n", t.Status)
		fmt.Fprintf(&b, "- **Priority**: %s\n", t.Priority)

		if len(t.Tags) > 0 {
			fmt.Fprintf(&b, "- **Tags**: %s\n", strings.Join(t.Tags, ", "))
		}

		if t.Assignee != "" {
			fmt.Fprintf(&b, "- **Assignee**: %s\n", t.Assignee)
		}

		if t.Description != "" {
			fmt.Fprintf(&b, "\n### Description\n\n%s\n", t.Description)
		}

		if len(t.Tasks) > 0 {
			b.WriteString("\n### Tasks\n\n")

			for _, task := range t.Tasks {
				mark := " "
				if task.Completed {
					mark = "x"
				}

				fmt.Fprintf(&b, "- [%s] %s\n", mark, task.Title)
			}
		}

		b.WriteString("\n---\n\n")
	}

	_, err := io.WriteString(w, b.String())

	return err
}

// Parse decodes tickets from data. Missing ids are generated and missing
// creation times set to now. Every ticket is validated.
func Parse(data []byte, f Format, now time.Time) ([]ticket.Ticket, error) {
	var (
		tickets []ticket.Ticket
		err     error
	)

	switch f {
	case JSON:
		err = json.Unmarshal(data, &tickets)
	case YAML:
		err = yaml.Unmarshal(data, &tickets)
	case CSV:
		tickets, err = readCSV(data, now)
	case Markdown:
		return nil, fmt.Errorf("%w: markdown cannot be imported", ticket.ErrInvalidInput)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, f)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ticket.ErrInvalidInput, f, err)
	}

	for i := range tickets {
		t := &tickets[i]

		if t.ID.IsZero() {
			t.ID = ticket.NewID()
		}

		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}

		if t.Status == "" {
			t.Status = ticket.StatusTodo
		}

		if t.Priority == 0 {
			t.Priority = ticket.DefaultPriority
		}

		if err := ticket.ValidateSlug(t.Slug); err != nil {
			return nil, fmt.Errorf("ticket %d: %w", i+1, err)
		}

		if err := ticket.ValidateTitle(t.Title); err != nil {
			return nil, fmt.Errorf("ticket %d (%s): %w", i+1, t.Slug, err)
		}
	}

	return tickets, Validate(tickets)
}

func readCSV(data []byte, now time.Time) ([]ticket.Ticket, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	if _, ok := col["slug"]; !ok {
		return nil, errors.New("header has no slug column")
	}

	var tickets []ticket.Ticket

	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, err
		}

		field := func(name string) string {
			if i, ok := col[name]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}

			return ""
		}

		b := ticket.NewBuilder(field("slug")).
			Title(field("title")).
			Description(field("description")).
			Assignee(field("assignee")).
			Tags(ticket.ParseTags(field("tags"))...).
			CreatedAt(now)

		if s := field("id"); s != "" {
			id, err := ticket.ParseID(s)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}

			b.ID(id)
		}

		if s := field("priority"); s != "" {
			p, err := ticket.ParsePriority(s)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}

			b.Priority(p)
		}

		if s := field("status"); s != "" {
			st, err := ticket.ParseStatus(s)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}

			b.Status(st)
		}

		if s := field("created_at"); s != "" {
			created, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, fmt.Errorf("line %d: created_at %q: %w", line, s, err)
			}

			b.CreatedAt(created)
		}

		t, err := b.Build()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		tickets = append(tickets, t)
	}

	return tickets, nil
}

// Validate rejects empty input and duplicate ids or slugs within tickets.
func Validate(tickets []ticket.Ticket) error {
	if len(tickets) == 0 {
		return fmt.Errorf("%w: no tickets found in import data", ticket.ErrInvalidInput)
	}

	ids := make(map[ticket.ID]bool, len(tickets))
	slugs := make(map[string]bool, len(tickets))

	for _, t := range tickets {
		if ids[t.ID] {
			return fmt.Errorf("%w: id %s appears twice", ticket.ErrAlreadyExists, t.ID)
		}

		if slugs[t.Slug] {
			return fmt.Errorf("%w: %s appears twice", ticket.ErrDuplicateSlug, t.Slug)
		}

		ids[t.ID] = true
		slugs[t.Slug] = true
	}

	return nil
}

// Result reports what Import did, or would do on a dry run.
type Result struct {
	Imported []ticket.Ticket `json:"imported"`
	Skipped  []Skip          `json:"skipped"`
	DryRun   bool            `json:"dry_run"`
}

// Skip is a ticket Import left alone.
type Skip struct {
	Ticket ticket.Ticket `json:"ticket"`
	Reason string        `json:"reason"`
}

// Import saves tickets whose id and slug are not yet taken in repo. With
// dryRun nothing is written.
func Import(repo storage.TicketRepository, tickets []ticket.Ticket, dryRun bool) (Result, error) {
	res := Result{DryRun: dryRun}

	existing, err := repo.LoadAll()
	if err != nil {
		return res, fmt.Errorf("load tickets: %w", err)
	}

	ids := make(map[ticket.ID]bool, len(existing))
	slugs := make(map[string]bool, len(existing))

	for _, t := range existing {
		ids[t.ID] = true
		slugs[t.Slug] = true
	}

	for _, t := range tickets {
		switch {
		case ids[t.ID]:
			res.Skipped = append(res.Skipped, Skip{Ticket: t, Reason: "id exists"})

			continue
		case slugs[t.Slug]:
			res.Skipped = append(res.Skipped, Skip{Ticket: t, Reason: "slug exists"})

			continue
		}

		if !dryRun {
			if err := repo.Save(t); err != nil {
				return res, fmt.Errorf("save %s: %w", t.Slug, err)
			}
		}

		res.Imported = append(res.Imported, t)
	}

	return res, nil
}
