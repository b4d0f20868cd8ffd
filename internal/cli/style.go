package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// envMap adapts the env map handed to Run to termenv.Environ so color
// detection never reads the process environment.
type envMap map[string]string

func (e envMap) Environ() []string {
	out := make([]string, 0, len(e))
	for k, v := range e {
		out = append(out, k+"="+v)
	}

	return out
}

func (e envMap) Getenv(key string) string { return e[key] }

// styles renders terminal output. With the Ascii profile every style is a
// no-op and output is plain text.
type styles struct {
	renderer *lipgloss.Renderer
	color    bool

	slug    lipgloss.Style
	id      lipgloss.Style
	faint   lipgloss.Style
	header  lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
}

// colorProfile picks the profile for mode (auto|always|never). NO_COLOR and
// --no-color win over everything.
func colorProfile(w io.Writer, env map[string]string, mode string, noColor bool) termenv.Profile {
	switch {
	case noColor || env["NO_COLOR"] != "" || mode == "never":
		return termenv.Ascii
	case mode == "always":
		return termenv.ANSI256
	default:
		return termenv.NewOutput(w, termenv.WithEnvironment(envMap(env))).EnvColorProfile()
	}
}

func newStyles(w io.Writer, env map[string]string, mode string, noColor bool) *styles {
	r := lipgloss.NewRenderer(w, termenv.WithEnvironment(envMap(env)))

	profile := colorProfile(w, env, mode, noColor)
	r.SetColorProfile(profile)

	return &styles{
		renderer: r,
		color:    profile != termenv.Ascii,
		slug:     r.NewStyle().Bold(true),
		id:       r.NewStyle().Foreground(lipgloss.Color("244")),
		faint:    r.NewStyle().Faint(true),
		header:   r.NewStyle().Bold(true).Underline(true),
		success:  r.NewStyle().Foreground(lipgloss.Color("2")),
		warning:  r.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

var statusColors = map[ticket.Status]lipgloss.Color{
	ticket.StatusTodo:    "7",
	ticket.StatusDoing:   "4",
	ticket.StatusReview:  "5",
	ticket.StatusBlocked: "1",
	ticket.StatusDone:    "2",
}

var priorityColors = map[ticket.Priority]lipgloss.Color{
	ticket.PriorityLow:      "8",
	ticket.PriorityMedium:   "7",
	ticket.PriorityHigh:     "3",
	ticket.PriorityCritical: "1",
}

func (s *styles) status(st ticket.Status) string {
	return s.renderer.NewStyle().Foreground(statusColors[st]).Render(string(st))
}

func (s *styles) priority(p ticket.Priority) string {
	st := s.renderer.NewStyle().Foreground(priorityColors[p])
	if p == ticket.PriorityCritical {
		st = st.Bold(true)
	}

	return st.Render(p.String())
}

// pad right-pads text to width visible cells. Escape codes are not counted.
func pad(text string, width int) string {
	if n := lipgloss.Width(text); n < width {
		return text + strings.Repeat(" ", width-n)
	}

	return text
}
