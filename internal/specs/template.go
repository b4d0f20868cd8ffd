package specs

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

var templates = template.Must(template.New("specs").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`
{{- define "header" -}}
# {{.Title}}: {{.Heading}}

- Spec: {{.ID}}
- Date: {{.Date}}
{{- if .TicketID}}
- Ticket: {{.TicketID}}
{{- end}}
{{- if .Tags}}
- Tags: {{join .Tags ", "}}
{{- end}}
{{end}}

{{- define "requirements" -}}
{{template "header" .}}
## Overview

{{if .Description}}{{.Description}}{{else}}Describe the problem this specification solves.{{end}}

## User Stories

- As a <role>, I want <capability> so that <benefit>.

## Acceptance Criteria

1. WHEN <condition> THEN the system SHALL <behavior>.

## Out of Scope

-
{{end}}

{{- define "design" -}}
{{template "header" .}}
## Architecture

Describe the components involved and how they interact.

## Data Model

## Interfaces

## Error Handling

## Testing Strategy
{{end}}

{{- define "tasks" -}}
{{template "header" .}}
Each unchecked item becomes a ticket with ` + "`vt spec export-tickets`" + `.

## Implementation

- [ ] Set up the skeleton for {{.Title}}
- [ ] Implement the core behavior
- [ ] Write tests

## Rollout

- [ ] Update documentation
{{end}}
`))

type templateData struct {
	Spec

	Heading string
	Date    string
}

// Render produces the initial document for a phase.
func Render(p Phase, sp Spec, now time.Time) (string, error) {
	headings := map[Phase]string{
		PhaseRequirements: "Requirements",
		PhaseDesign:       "Design",
		PhaseTasks:        "Tasks",
	}

	heading, ok := headings[p]
	if !ok {
		return "", fmt.Errorf("%w %q: no document", ErrInvalidPhase, p)
	}

	var b strings.Builder

	data := templateData{Spec: sp, Heading: heading, Date: now.Format("2006-01-02")}
	if err := templates.ExecuteTemplate(&b, string(p), data); err != nil {
		return "", fmt.Errorf("render %s: %w", p, err)
	}

	return b.String(), nil
}
