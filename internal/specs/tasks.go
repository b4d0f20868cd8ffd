package specs

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/calvinalkan/vibe-ticket/internal/storage"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// Task is one checkbox item of a tasks document.
type Task struct {
	Title   string `json:"title"`
	Done    bool   `json:"done"`
	Section string `json:"section,omitempty"`
}

var taskParser = goldmark.New(goldmark.WithExtensions(extension.TaskList))

// ExtractTasks returns every checkbox list item in src, in document order,
// with the nearest heading above it as Section.
func ExtractTasks(src []byte) []Task {
	doc := taskParser.Parser().Parse(text.NewReader(src))

	var (
		tasks   []Task
		section string
	)

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			if node.Level > 1 {
				section = plainText(node, src)
			}

			return ast.WalkSkipChildren, nil
		case *extast.TaskCheckBox:
			title := plainText(node.Parent(), src)
			if title != "" {
				tasks = append(tasks, Task{Title: title, Done: node.IsChecked, Section: section})
			}
		}

		return ast.WalkContinue, nil
	})

	return tasks
}

func plainText(n ast.Node, src []byte) string {
	var b strings.Builder

	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(src))

			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		}

		return ast.WalkContinue, nil
	})

	return strings.Join(strings.Fields(b.String()), " ")
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

const maxSlugLen = 50

// Slugify turns a task title into a ticket slug.
func Slugify(title string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}

	if s == "" {
		s = "task"
	}

	return s
}

// Export is the outcome of ExportTickets.
type Export struct {
	Created []ticket.Ticket `json:"created"`
	Skipped []string        `json:"skipped"`
}

// ExportTickets creates a ticket for every unchecked task in the spec's tasks
// document. Tasks already exported for this spec, matched by title, are
// skipped, and slugs that are taken get a numeric suffix.
func (st *Store) ExportTickets(repo storage.TicketRepository, sp Spec, priority ticket.Priority, now time.Time) (Export, error) {
	var res Export

	content, ok, err := st.Document(sp.ID, PhaseTasks)
	if err != nil {
		return res, err
	}

	if !ok {
		return res, fmt.Errorf("%w: spec %s has no tasks document, run `vt spec tasks` first", ticket.ErrInvalidInput, sp.Short())
	}

	existing, err := repo.LoadAll()
	if err != nil {
		return res, err
	}

	slugs := make(map[string]bool, len(existing))
	exported := make(map[string]bool)

	for _, t := range existing {
		slugs[t.Slug] = true

		if t.Extensions.SpecID == sp.ID {
			exported[t.Title] = true
		}
	}

	for _, task := range ExtractTasks([]byte(content)) {
		if task.Done {
			continue
		}

		title := truncate(task.Title, ticket.MaxTitleLen)

		if exported[title] {
			res.Skipped = append(res.Skipped, title)

			continue
		}

		slug := Slugify(title)
		for i := 2; slugs[slug]; i++ {
			slug = fmt.Sprintf("%s-%d", Slugify(title), i)
		}

		b := ticket.NewBuilder(slug).
			Title(title).
			Description(taskDescription(sp, task)).
			Priority(priority).
			Tags(append([]string{"spec"}, sp.Tags...)...).
			SpecID(sp.ID).
			CreatedAt(now)

		t, err := b.Build()
		if err != nil {
			return res, fmt.Errorf("task %q: %w", task.Title, err)
		}

		if err := repo.Save(t); err != nil {
			return res, fmt.Errorf("save %s: %w", slug, err)
		}

		slugs[slug] = true
		exported[title] = true
		res.Created = append(res.Created, t)
	}

	return res, nil
}

func taskDescription(sp Spec, task Task) string {
	desc := "From spec " + sp.Title + " (" + sp.Short() + ")"
	if task.Section != "" {
		desc += ", section " + task.Section
	}

	return desc + "."
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n])
}
