package cli

import (
	"context"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
	"github.com/calvinalkan/vibe-ticket/internal/tracker"
)

// EditCmd returns the edit command.
func EditCmd(a *app) *Command {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	fs.String("title", "", "New title")
	fs.String("description", "", "New description, or - to read stdin")
	fs.String("priority", "", "New priority")
	fs.String("status", "", "New status (bypasses the workflow)")
	fs.String("add-tags", "", "Comma separated tags to add")
	fs.String("remove-tags", "", "Comma separated tags to remove")
	fs.String("assignee", "", "New assignee; empty clears it")
	fs.StringArray("set", nil, "Custom field key=value; empty value deletes (repeatable)")
	fs.Bool("editor", false, "Edit the description in $EDITOR")

	return &Command{
		Flags: fs,
		Usage: "edit [ref] [flags]",
		Short: "Change ticket fields",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			ref, err := refArg("edit", args)
			if err != nil {
				return err
			}

			return execEdit(ctx, o, a, fs, ref)
		},
	}
}

func execEdit(ctx context.Context, o *IO, a *app, fs *flag.FlagSet, ref string) error {
	p, err := a.patchFromFlags(fs)
	if err != nil {
		return err
	}

	svc, err := a.service()
	if err != nil {
		return err
	}

	if useEditor, _ := fs.GetBool("editor"); useEditor {
		if p.Description != nil {
			return fmt.Errorf("%w: --editor and --description", errExclusiveFlags)
		}

		t, err := svc.Resolve(ref)
		if err != nil {
			return err
		}

		text, err := a.editText(ctx, t.Slug, t.Description)
		if err != nil {
			return err
		}

		if text = strings.TrimRight(text, "\n"); text != t.Description {
			p.Description = &text
		}

		if p.IsZero() {
			o.Println("No changes to", t.Slug)

			return nil
		}

		ref = t.ID.String()
	}

	t, err := svc.Update(ctx, ref, p)
	if err != nil {
		return err
	}

	if a.json {
		return o.JSON(t)
	}

	o.Println("Updated", a.styles.slug.Render(t.Slug))

	return nil
}

// patchFromFlags builds an update from the flags that were given.
func (a *app) patchFromFlags(fs *flag.FlagSet) (tracker.Patch, error) {
	var p tracker.Patch

	if fs.Changed("title") {
		title, _ := fs.GetString("title")
		p.Title = &title
	}

	if fs.Changed("description") {
		desc, _ := fs.GetString("description")
		if desc == "-" {
			data, err := a.readStdin()
			if err != nil {
				return p, err
			}

			desc = data
		}

		p.Description = &desc
	}

	if fs.Changed("priority") {
		raw, _ := fs.GetString("priority")

		pr, err := ticket.ParsePriority(raw)
		if err != nil {
			return p, err
		}

		p.Priority = &pr
	}

	if fs.Changed("status") {
		raw, _ := fs.GetString("status")

		st, err := ticket.ParseStatus(raw)
		if err != nil {
			return p, err
		}

		p.Status = &st
	}

	if fs.Changed("assignee") {
		assignee, _ := fs.GetString("assignee")
		p.Assignee = &assignee
	}

	if raw, _ := fs.GetString("add-tags"); raw != "" {
		p.AddTags = ticket.ParseTags(raw)
	}

	if raw, _ := fs.GetString("remove-tags"); raw != "" {
		p.RemoveTags = ticket.ParseTags(raw)
	}

	if fs.Lookup("set") != nil {
		pairs, _ := fs.GetStringArray("set")

		for _, pair := range pairs {
			k, v, ok := strings.Cut(pair, "=")
			if !ok || strings.TrimSpace(k) == "" {
				return p, fmt.Errorf("%w: --set wants key=value, got %q", ticket.ErrInvalidInput, pair)
			}

			if p.Set == nil {
				p.Set = make(map[string]string)
			}

			p.Set[strings.TrimSpace(k)] = v
		}
	}

	return p, nil
}
