package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/exchange"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// ExportCmd returns the export command.
func ExportCmd(a *app) *Command {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.StringP("format", "f", "", "json|yaml|csv|markdown [default: from --output extension, else json]")
	fs.StringP("output", "o", "", "Write to file instead of stdout")
	fs.Bool("include-archived", false, "Include archived tickets")
	fs.String("filter", "", "Only tickets matching a filter expression or @saved filter")

	return &Command{
		Flags: fs,
		Usage: "export [flags]",
		Short: "Export tickets",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return &usageError{cmd: "export", err: errTooManyArgs}
			}

			return execExport(o, a, fs)
		},
	}
}

func execExport(o *IO, a *app, fs *flag.FlagSet) error {
	output, _ := fs.GetString("output")
	rawFormat, _ := fs.GetString("format")
	archived, _ := fs.GetBool("include-archived")
	rawFilter, _ := fs.GetString("filter")

	format := exchange.JSON

	if rawFormat != "" {
		f, err := exchange.ParseFormat(rawFormat)
		if err != nil {
			return err
		}

		format = f
	} else if f, ok := exchange.FormatFromPath(output); ok {
		format = f
	}

	expr, err := a.expression(rawFilter)
	if err != nil {
		return err
	}

	svc, err := a.service()
	if err != nil {
		return err
	}

	tickets, err := svc.Repo().Find(func(t *ticket.Ticket) bool {
		return (archived || !t.Extensions.Archived) && expr.Match(t)
	})
	if err != nil {
		return err
	}

	if output == "" {
		return exchange.Export(o.Out(), format, tickets, a.now())
	}

	var buf bytes.Buffer
	if err := exchange.Export(&buf, format, tickets, a.now()); err != nil {
		return err
	}

	if err := atomic.WriteFile(output, &buf); err != nil {
		return fmt.Errorf("%w: write %s: %w", ticket.ErrStorageIO, output, err)
	}

	if a.json {
		return o.JSON(map[string]any{"output": output, "format": format, "count": len(tickets)})
	}

	o.Printf("Exported %d ticket(s) to %s (%s)\n", len(tickets), output, format)

	return nil
}

// ImportCmd returns the import command.
func ImportCmd(a *app) *Command {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.StringP("format", "f", "", "json|yaml|csv [default: from extension or content]")
	fs.Bool("dry-run", false, "Report what would be imported without writing")

	return &Command{
		Flags: fs,
		Usage: "import <file|-> [flags]",
		Short: "Import tickets from a file",
		Long: `Import tickets exported by vt export. Tickets whose id or slug
already exists are skipped and reported.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := requireArgs("import", args, 1, "file"); err != nil {
				return err
			}

			rawFormat, _ := fs.GetString("format")
			dryRun, _ := fs.GetBool("dry-run")

			return execImport(o, a, args[0], rawFormat, dryRun)
		},
	}
}

func execImport(o *IO, a *app, path, rawFormat string, dryRun bool) error {
	var (
		data []byte
		err  error
	)

	if path == "-" {
		var text string

		text, err = a.readStdin()
		data = []byte(text)
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			err = fmt.Errorf("%w: read %s: %w", ticket.ErrStorageIO, path, err)
		}
	}

	if err != nil {
		return err
	}

	var format exchange.Format

	switch f, ok := exchange.FormatFromPath(path); {
	case rawFormat != "":
		format, err = exchange.ParseFormat(rawFormat)
	case ok:
		format = f
	default:
		format, err = exchange.Detect(data)
	}

	if err != nil {
		return err
	}

	tickets, err := exchange.Parse(data, format, a.now())
	if err != nil {
		return err
	}

	svc, err := a.service()
	if err != nil {
		return err
	}

	res, err := exchange.Import(svc.Repo(), tickets, dryRun)
	if err != nil {
		return err
	}

	if a.json {
		if res.Imported == nil {
			res.Imported = []ticket.Ticket{}
		}

		if res.Skipped == nil {
			res.Skipped = []exchange.Skip{}
		}

		return o.JSON(res)
	}

	verb := "Imported"
	if dryRun {
		verb = "Would import"
	}

	for _, t := range res.Imported {
		o.Println(" +", t.Slug)
	}

	for _, s := range res.Skipped {
		o.Printf(" - %s (%s)\n", s.Ticket.Slug, s.Reason)
	}

	o.Printf("%s %d ticket(s), skipped %d\n", verb, len(res.Imported), len(res.Skipped))

	return nil
}
