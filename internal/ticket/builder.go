package ticket

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxTitleLen bounds ticket titles, in runes.
const MaxTitleLen = 200

// SlugTimeLayout is the prefix layout the new command puts in front of slugs.
const SlugTimeLayout = "200601021504"

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidateSlug accepts lowercase letters, digits and single hyphens between
// them (for example "fix-login-bug").
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("%w: slug is empty", ErrInvalidSlug)
	}

	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("%w %q: use lowercase letters, numbers and hyphens", ErrInvalidSlug, slug)
	}

	return nil
}

// ValidateTitle rejects empty and overlong titles.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is empty", ErrInvalidTitle)
	}

	if n := len([]rune(title)); n > MaxTitleLen {
		return fmt.Errorf("%w: %d characters, max %d", ErrInvalidTitle, n, MaxTitleLen)
	}

	return nil
}

// PrefixSlug prepends the creation timestamp, e.g. 202601021504-fix-login.
func PrefixSlug(slug string, now time.Time) string {
	return now.Format(SlugTimeLayout) + "-" + slug
}

// TitleFromSlug turns "fix-login-bug" into "Fix Login Bug".
func TitleFromSlug(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })

	return cases.Title(language.Und).String(strings.Join(words, " "))
}

// ParseTags splits a comma separated list, trimming blanks and dropping
// empty entries.
func ParseTags(s string) []string {
	var tags []string

	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			tags = append(tags, part)
		}
	}

	return tags
}

// Builder assembles a new Ticket. Zero-valued optional fields get defaults in
// Build: status todo, priority medium, title derived from the slug.
type Builder struct {
	t   Ticket
	now time.Time
}

// NewBuilder starts a ticket with a fresh id and the given slug.
func NewBuilder(slug string) *Builder {
	return &Builder{t: Ticket{ID: NewID(), Slug: slug}}
}

func (b *Builder) ID(id ID) *Builder { b.t.ID = id; return b }
func (b *Builder) Title(s string) *Builder { b.t.Title = s; return b }
func (b *Builder) Description(s string) *Builder { b.t.Description = s; return b }
func (b *Builder) Priority(p Priority) *Builder { b.t.Priority = p; return b }
func (b *Builder) Status(s Status) *Builder { b.t.Status = s; return b }
func (b *Builder) Assignee(s string) *Builder { b.t.Assignee = s; return b }
func (b *Builder) Tags(tags ...string) *Builder { b.t.AddTags(tags...); return b }
func (b *Builder) Extensions(e Extensions) *Builder { b.t.Extensions = e; return b }
func (b *Builder) CreatedAt(now time.Time) *Builder { b.now = now; return b }
func (b *Builder) SpecID(specID string) *Builder { b.t.Extensions.SpecID = specID; return b }

// Build validates and returns the ticket.
func (b *Builder) Build() (Ticket, error) {
	t := b.t

	if err := ValidateSlug(t.Slug); err != nil {
		return Ticket{}, err
	}

	if t.Title == "" {
		t.Title = TitleFromSlug(t.Slug)
	}

	if err := ValidateTitle(t.Title); err != nil {
		return Ticket{}, err
	}

	if t.Priority == 0 {
		t.Priority = DefaultPriority
	}

	if !t.Priority.Valid() {
		return Ticket{}, fmt.Errorf("%w: %d", ErrInvalidPriority, int(t.Priority))
	}

	if t.Status == "" {
		t.Status = StatusTodo
	}

	t.CreatedAt = b.now
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	if t.Status == StatusDoing {
		t.StartedAt = timePtr(t.CreatedAt)
	}

	t.Compact()

	return t, nil
}
