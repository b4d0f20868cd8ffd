package cli

import (
	"context"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
	"github.com/calvinalkan/vibe-ticket/internal/tracker"
)

// NewCmd returns the new command.
func NewCmd(a *app) *Command {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	fs.StringP("title", "t", "", "Title [default: derived from slug]")
	fs.StringP("description", "d", "", "Description text, or - to read stdin")
	fs.StringP("priority", "p", "", "Priority: low|medium|high|critical [default: config default_priority]")
	fs.String("tags", "", "Comma separated tags")
	fs.StringP("assignee", "a", "", "Assignee [default: config default_assignee]")
	fs.Bool("start", false, "Start the ticket right away")
	fs.Bool("no-prefix", false, "Do not prefix the slug with the creation time")

	return &Command{
		Flags:   fs,
		Usage:   "new <slug> [flags]",
		Short:   "Create a ticket",
		Aliases: []string{"create"},
		Long: `Create a ticket. The slug is prefixed with the creation time
(YYYYMMDDHHMM-) unless --no-prefix is given; either form resolves later.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := requireArgs("new", args, 1, "slug"); err != nil {
				return err
			}

			return execNew(ctx, o, a, fs, args[0])
		},
	}
}

func execNew(ctx context.Context, o *IO, a *app, fs *flag.FlagSet, slug string) error {
	for _, name := range []string{"title", "description", "priority", "assignee"} {
		v, _ := fs.GetString(name)
		if fs.Changed(name) && strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: --%s", errEmptyValue, name)
		}
	}

	if err := ticket.ValidateSlug(slug); err != nil {
		return err
	}

	title, _ := fs.GetString("title")
	if title == "" {
		title = ticket.TitleFromSlug(slug)
	}

	description, _ := fs.GetString("description")
	if description == "-" {
		data, err := a.readStdin()
		if err != nil {
			return err
		}

		description = data
	}

	priority := a.defaultPriority()

	if raw, _ := fs.GetString("priority"); raw != "" {
		p, err := ticket.ParsePriority(raw)
		if err != nil {
			return err
		}

		priority = p
	}

	assignee, _ := fs.GetString("assignee")
	if !fs.Changed("assignee") {
		assignee = a.cfg.DefaultAssignee
	}

	tags, _ := fs.GetString("tags")
	start, _ := fs.GetBool("start")

	if noPrefix, _ := fs.GetBool("no-prefix"); !noPrefix {
		slug = ticket.PrefixSlug(slug, a.now())
	}

	svc, err := a.service()
	if err != nil {
		return err
	}

	t, err := svc.Create(ctx, tracker.CreateInput{
		Slug:        slug,
		Title:       title,
		Description: description,
		Priority:    priority,
		Assignee:    assignee,
		Tags:        ticket.ParseTags(tags),
		Start:       start,
	})
	if err != nil {
		return err
	}

	if start {
		t = a.prepareGit(ctx, o, t, false, a.cfg.WorktreesEnabled())
	}

	if a.json {
		return o.JSON(t)
	}

	o.Println("Created", a.styles.slug.Render(t.Slug), a.styles.id.Render("("+t.ID.Short()+")"))

	if start {
		o.Println("Started", t.Slug)
	}

	return nil
}
