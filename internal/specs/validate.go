package specs

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

// ClarificationMarker flags an open question inside a phase document.
const ClarificationMarker = "[NEEDS CLARIFICATION]"

// ReportName is the validation report written next to the phase documents.
const ReportName = "validation-report.md"

// Level grades a validation finding.
type Level string

const (
	LevelOK      Level = "ok"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Checks selects what Validate examines. The zero value selects both.
type Checks struct {
	Complete    bool
	Ambiguities bool
}

// Finding is one validation result.
type Finding struct {
	Phase   Phase  `json:"phase,omitempty"`
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Validation is the outcome of Validate. Valid is false when any finding is
// an error.
type Validation struct {
	Spec        Spec       `json:"spec"`
	Findings    []Finding  `json:"findings"`
	Progress    []Progress `json:"progress"`
	Ambiguities int        `json:"ambiguities"`
	Valid       bool       `json:"valid"`
	Report      string     `json:"report,omitempty"`
}

// Validate checks the phase documents of sp.
//
// The completeness check reports a missing document as an error and an
// unapproved one as a warning. The ambiguity check counts
// ClarificationMarker in every existing document; any marker is an error.
func (st *Store) Validate(sp Spec, c Checks) (Validation, error) {
	if !c.Complete && !c.Ambiguities {
		c = Checks{Complete: true, Ambiguities: true}
	}

	progress, err := st.Status(sp)
	if err != nil {
		return Validation{}, err
	}

	v := Validation{Spec: sp, Progress: progress, Valid: true}

	if c.Complete {
		for _, p := range progress {
			v.add(completeness(p))
		}
	}

	if c.Ambiguities {
		if err := st.countAmbiguities(&v); err != nil {
			return Validation{}, err
		}
	}

	return v, nil
}

func completeness(p Progress) Finding {
	switch {
	case !p.Document:
		return Finding{Phase: p.Phase, Level: LevelError, Message: fmt.Sprintf("missing %s document (%s)", p.Phase, p.Phase.DocumentName())}
	case !p.Approved:
		return Finding{Phase: p.Phase, Level: LevelWarning, Message: fmt.Sprintf("%s phase not approved", p.Phase)}
	default:
		return Finding{Phase: p.Phase, Level: LevelOK, Message: fmt.Sprintf("%s phase complete", p.Phase)}
	}
}

func (st *Store) countAmbiguities(v *Validation) error {
	for _, p := range DocumentPhases {
		content, ok, err := st.Document(v.Spec.ID, p)
		if err != nil {
			return err
		}

		if !ok {
			continue
		}

		n := strings.Count(content, ClarificationMarker)
		if n == 0 {
			continue
		}

		v.Ambiguities += n
		v.add(Finding{Phase: p, Level: LevelError, Message: fmt.Sprintf("%d items marked %s in %s", n, ClarificationMarker, p.DocumentName())})
	}

	if v.Ambiguities == 0 {
		v.add(Finding{Level: LevelOK, Message: "no ambiguities found"})
	}

	return nil
}

func (v *Validation) add(f Finding) {
	v.Findings = append(v.Findings, f)

	if f.Level == LevelError {
		v.Valid = false
	}
}

// ReportPath is the absolute path of the validation report for id.
func (st *Store) ReportPath(id string) string {
	return filepath.Join(st.s.Root(), specsDir, id, ReportName)
}

// WriteReport renders v as markdown into the spec directory and returns v
// with Report set to the written path.
func (st *Store) WriteReport(v Validation, now time.Time) (Validation, error) {
	var b strings.Builder

	if err := reportTemplate.Execute(&b, reportData{Validation: v, Generated: now.Format(time.RFC3339)}); err != nil {
		return v, fmt.Errorf("render validation report: %w", err)
	}

	if err := st.s.WriteFile(path.Join(specsDir, v.Spec.ID, ReportName), []byte(b.String())); err != nil {
		return v, err
	}

	v.Report = st.ReportPath(v.Spec.ID)

	return v, nil
}

type reportData struct {
	Validation

	Generated string
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"date": func(t time.Time) string { return t.Format("2006-01-02") },
}).Parse(`# Validation Report: {{.Spec.Title}}

- Spec: {{.Spec.ID}}
- Phase: {{.Spec.Phase}}
- Created: {{date .Spec.CreatedAt}}
- Updated: {{date .Spec.UpdatedAt}}

## Results
{{range .Findings}}
- [{{.Level}}] {{.Message}}
{{- end}}

## Progress
{{range .Progress}}
- {{.Phase}}: {{if .Approved}}approved{{else if .Document}}in progress{{else}}not started{{end}}
{{- end}}

## Summary

{{if .Valid}}All checks passed.{{else}}Resolve the error findings above, then run ` + "`vt spec validate`" + ` again.{{end}}

---
Generated {{.Generated}}
`))
