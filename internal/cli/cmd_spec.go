package cli

import (
	"context"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/specs"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// SpecCmd returns the spec command group.
func SpecCmd(a *app) *Command {
	return Group("spec", "Spec-driven development workflow",
		`A spec walks through requirements, design and tasks documents, each
approved before the next. The tasks document's checkboxes become tickets
with "vt spec export-tickets". Commands take an optional spec reference (id
or id prefix) and default to the active spec.`,
		specInitCmd(a),
		specListCmd(a),
		specShowCmd(a),
		specPhaseCmd(a, specs.PhaseRequirements, "Write the requirements document"),
		specPhaseCmd(a, specs.PhaseDesign, "Write the design document"),
		specPhaseCmd(a, specs.PhaseTasks, "Write the tasks document"),
		specApproveCmd(a),
		specStatusCmd(a),
		specValidateCmd(a),
		specActivateCmd(a),
		specDeleteCmd(a),
		specExportCmd(a),
	)
}

func specInitCmd(a *app) *Command {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.StringP("description", "d", "", "What the spec is about")
	fs.StringP("ticket", "t", "", "Ticket the spec belongs to")
	fs.String("tags", "", "Comma separated tags")
	fs.Bool("no-activate", false, "Do not make the new spec active")

	return &Command{
		Flags: fs,
		Usage: "init <title...> [flags]",
		Short: "Create a spec",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return &usageError{cmd: "spec init", err: fmt.Errorf("%w: title", errMissingArg)}
			}

			desc, _ := fs.GetString("description")
			ref, _ := fs.GetString("ticket")
			tags, _ := fs.GetString("tags")
			noActivate, _ := fs.GetBool("no-activate")

			var ticketID string

			if fs.Changed("ticket") {
				svc, err := a.service()
				if err != nil {
					return err
				}

				t, err := svc.Resolve(ref)
				if err != nil {
					return err
				}

				ticketID = t.ID.String()
			}

			st, err := a.specs()
			if err != nil {
				return err
			}

			sp, err := st.Create(strings.Join(args, " "), desc, ticketID, ticket.ParseTags(tags), a.now())
			if err != nil {
				return err
			}

			if !noActivate {
				if sp, err = st.SetActive(sp.ID); err != nil {
					return err
				}
			}

			if a.json {
				return o.JSON(sp)
			}

			o.Printf("Created spec %s %s\n", a.styles.id.Render(sp.Short()), a.styles.slug.Render(sp.Title))
			o.Println("Next: vt spec requirements")

			return nil
		},
	}
}

func specListCmd(a *app) *Command {
	return &Command{
		Flags:   flag.NewFlagSet("list", flag.ContinueOnError),
		Usage:   "list",
		Short:   "List specs",
		Aliases: []string{"ls"},
		Exec: func(_ context.Context, o *IO, _ []string) error {
			st, err := a.specs()
			if err != nil {
				return err
			}

			all, err := st.List()
			if err != nil {
				return err
			}

			if a.json {
				if all == nil {
					all = []specs.Spec{}
				}

				return o.JSON(all)
			}

			if len(all) == 0 {
				o.Println("No specs")

				return nil
			}

			activeID := ""
			if active, err := st.Active(); err == nil {
				activeID = active.ID
			}

			now := a.now()

			for _, sp := range all {
				marker := "  "
				if sp.ID == activeID {
					marker = a.styles.success.Render("* ")
				}

				o.Printf("%s%s  %s  %s  %s\n", marker, a.styles.id.Render(sp.Short()), pad(string(sp.Phase), 14),
					sp.Title, a.styles.faint.Render("("+ago(sp.UpdatedAt, now)+")"))
			}

			return nil
		},
	}
}

func specShowCmd(a *app) *Command {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.String("document", "", "Print one document: requirements|design|tasks")

	return &Command{
		Flags: fs,
		Usage: "show [ref] [flags]",
		Short: "Show a spec",
		Exec: func(_ context.Context, o *IO, args []string) error {
			ref, err := refArg("spec show", args)
			if err != nil {
				return err
			}

			st, err := a.specs()
			if err != nil {
				return err
			}

			sp, err := st.Resolve(ref)
			if err != nil {
				return err
			}

			if raw, _ := fs.GetString("document"); raw != "" {
				p, err := specs.ParseDocumentPhase(raw)
				if err != nil {
					return err
				}

				content, ok, err := st.Document(sp.ID, p)
				if err != nil {
					return err
				}

				if !ok {
					return fmt.Errorf("%w: spec %s has no %s document", ticket.ErrNotFound, sp.Short(), p)
				}

				o.Printf("%s", content)

				return nil
			}

			if a.json {
				return o.JSON(sp)
			}

			o.Println(a.styles.slug.Render(sp.Title))
			o.Println()
			o.Printf("%-9s %s\n", "ID:", sp.ID)
			o.Printf("%-9s %s\n", "Phase:", sp.Phase)

			if sp.TicketID != "" {
				o.Printf("%-9s %s\n", "Ticket:", a.ticketLabel(sp.TicketID))
			}

			if len(sp.Tags) > 0 {
				o.Printf("%-9s %s\n", "Tags:", strings.Join(sp.Tags, ", "))
			}

			o.Printf("%-9s %s\n", "Created:", sp.CreatedAt.Local().Format(a.cfg.Output.DateFormat))
			o.Printf("%-9s %s\n", "Updated:", sp.UpdatedAt.Local().Format(a.cfg.Output.DateFormat))

			if sp.Description != "" {
				o.Println()
				o.Println(sp.Description)
			}

			return nil
		},
	}
}

// ticketLabel renders a ticket id as its slug when the ticket still exists.
func (a *app) ticketLabel(id string) string {
	parsed, err := ticket.ParseID(id)
	if err != nil {
		return id
	}

	return a.slugFor(parsed)
}

func specPhaseCmd(a *app, phase specs.Phase, short string) *Command {
	name := string(phase)

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Bool("editor", false, "Open the document in $EDITOR")

	return &Command{
		Flags: fs,
		Usage: name + " [ref] [flags]",
		Short: short,
		Long: short + `. The document is created from a template the first
time and the spec moves into the ` + name + ` phase.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			ref, err := refArg("spec "+name, args)
			if err != nil {
				return err
			}

			st, err := a.specs()
			if err != nil {
				return err
			}

			sp, err := st.Resolve(ref)
			if err != nil {
				return err
			}

			sp, created, err := st.OpenPhase(sp, phase, a.now())
			if err != nil {
				return err
			}

			path := st.DocumentPath(sp.ID, phase)

			if useEditor, _ := fs.GetBool("editor"); useEditor {
				if err := a.runEditor(ctx, path); err != nil {
					return err
				}
			}

			if a.json {
				return o.JSON(map[string]any{"spec": sp, "path": path, "created": created})
			}

			verb := "Opened"
			if created {
				verb = "Created"
			}

			o.Printf("%s %s document: %s\n", verb, name, path)

			return nil
		},
	}
}

func specApproveCmd(a *app) *Command {
	fs := flag.NewFlagSet("approve", flag.ContinueOnError)
	fs.StringP("message", "m", "", "Approval note")

	return &Command{
		Flags: fs,
		Usage: "approve <phase> [ref] [flags]",
		Short: "Approve a phase document",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return &usageError{cmd: "spec approve", err: fmt.Errorf("%w: phase", errMissingArg)}
			}

			phase, err := specs.ParseDocumentPhase(args[0])
			if err != nil {
				return err
			}

			ref, err := refArg("spec approve", args[1:])
			if err != nil {
				return err
			}

			msg, _ := fs.GetString("message")

			st, err := a.specs()
			if err != nil {
				return err
			}

			sp, err := st.Resolve(ref)
			if err != nil {
				return err
			}

			sp, err = st.Approve(sp, phase, msg, a.now())
			if err != nil {
				return err
			}

			if a.json {
				return o.JSON(sp)
			}

			o.Printf("Approved %s of %s; phase is now %s\n", phase, sp.Short(), sp.Phase)

			return nil
		},
	}
}

func specStatusCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("status", flag.ContinueOnError),
		Usage: "status [ref]",
		Short: "Show phase progress",
		Exec: func(_ context.Context, o *IO, args []string) error {
			ref, err := refArg("spec status", args)
			if err != nil {
				return err
			}

			st, err := a.specs()
			if err != nil {
				return err
			}

			sp, err := st.Resolve(ref)
			if err != nil {
				return err
			}

			progress, err := st.Status(sp)
			if err != nil {
				return err
			}

			if a.json {
				return o.JSON(map[string]any{"spec": sp, "progress": progress})
			}

			o.Printf("%s %s (%s)\n", a.styles.id.Render(sp.Short()), a.styles.slug.Render(sp.Title), sp.Phase)

			for _, p := range progress {
				state := a.styles.faint.Render("missing")

				switch {
				case p.Approved:
					state = a.styles.success.Render("approved")
				case p.Document:
					state = a.styles.warning.Render("draft")
				}

				o.Printf("  %-13s %s\n", p.Phase, state)
			}

			return nil
		},
	}
}

func specValidateCmd(a *app) *Command {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.Bool("complete", false, "Check that every phase document exists and is approved")
	fs.Bool("ambiguities", false, "Check documents for "+specs.ClarificationMarker+" markers")
	fs.Bool("report", false, "Write "+specs.ReportName+" into the spec directory")

	return &Command{
		Flags: fs,
		Usage: "validate [ref] [flags]",
		Short: "Check a spec for missing, unapproved or unclear documents",
		Long: `Check a spec for missing, unapproved or unclear documents. Without
--complete or --ambiguities both checks run. Issues are reported as
warnings; the exit code stays 0.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			ref, err := refArg("spec validate", args)
			if err != nil {
				return err
			}

			complete, _ := fs.GetBool("complete")
			ambiguities, _ := fs.GetBool("ambiguities")
			report, _ := fs.GetBool("report")

			st, err := a.specs()
			if err != nil {
				return err
			}

			sp, err := st.Resolve(ref)
			if err != nil {
				return err
			}

			v, err := st.Validate(sp, specs.Checks{Complete: complete, Ambiguities: ambiguities})
			if err != nil {
				return err
			}

			if report {
				if v, err = st.WriteReport(v, a.now()); err != nil {
					return err
				}
			}

			if !v.Valid {
				o.Warn("spec "+sp.Short()+" has validation issues", "resolve the errors and run `vt spec validate` again")
			}

			if a.json {
				return o.JSON(v)
			}

			o.Printf("Validation of %s %s\n", a.styles.id.Render(sp.Short()), a.styles.slug.Render(sp.Title))

			for _, f := range v.Findings {
				mark := a.styles.success.Render("ok  ")

				switch f.Level {
				case specs.LevelWarning:
					mark = a.styles.warning.Render("warn")
				case specs.LevelError:
					mark = a.styles.warning.Render("FAIL")
				case specs.LevelOK:
				}

				o.Printf("  %s %s\n", mark, f.Message)
			}

			if v.Report != "" {
				o.Println("Report:", v.Report)
			}

			if v.Valid {
				o.Println(a.styles.success.Render("Spec passed all checks"))
			}

			return nil
		},
	}
}

func specActivateCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("activate", flag.ContinueOnError),
		Usage: "activate <ref>",
		Short: "Make a spec the active one",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := requireArgs("spec activate", args, 1, "spec reference"); err != nil {
				return err
			}

			st, err := a.specs()
			if err != nil {
				return err
			}

			sp, err := st.SetActive(args[0])
			if err != nil {
				return err
			}

			o.Println("Active spec:", sp.Short(), sp.Title)

			return nil
		},
	}
}

func specDeleteCmd(a *app) *Command {
	return &Command{
		Flags:   flag.NewFlagSet("delete", flag.ContinueOnError),
		Usage:   "delete <ref>",
		Short:   "Delete a spec and its documents",
		Aliases: []string{"rm"},
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := requireArgs("spec delete", args, 1, "spec reference"); err != nil {
				return err
			}

			st, err := a.specs()
			if err != nil {
				return err
			}

			if err := st.Delete(args[0]); err != nil {
				return err
			}

			o.Println("Deleted spec", args[0])

			return nil
		},
	}
}

func specExportCmd(a *app) *Command {
	fs := flag.NewFlagSet("export-tickets", flag.ContinueOnError)
	fs.StringP("priority", "p", "", "Priority of the created tickets [default: config default_priority]")

	return &Command{
		Flags: fs,
		Usage: "export-tickets [ref] [flags]",
		Short: "Create tickets from the tasks document",
		Exec: func(_ context.Context, o *IO, args []string) error {
			ref, err := refArg("spec export-tickets", args)
			if err != nil {
				return err
			}

			priority := a.defaultPriority()

			if raw, _ := fs.GetString("priority"); raw != "" {
				if priority, err = ticket.ParsePriority(raw); err != nil {
					return err
				}
			}

			st, err := a.specs()
			if err != nil {
				return err
			}

			sp, err := st.Resolve(ref)
			if err != nil {
				return err
			}

			svc, err := a.service()
			if err != nil {
				return err
			}

			res, err := st.ExportTickets(svc.Repo(), sp, priority, a.now())
			if err != nil {
				return err
			}

			if a.json {
				if res.Created == nil {
					res.Created = []ticket.Ticket{}
				}

				if res.Skipped == nil {
					res.Skipped = []string{}
				}

				return o.JSON(res)
			}

			for _, t := range res.Created {
				o.Println(" +", t.Slug)
			}

			o.Printf("Created %d ticket(s), skipped %d already exported\n", len(res.Created), len(res.Skipped))

			return nil
		},
	}
}
