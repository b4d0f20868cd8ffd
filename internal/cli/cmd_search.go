package cli

import (
	"context"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/tracker"
)

// SearchCmd returns the search command.
func SearchCmd(a *app) *Command {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.Bool("title", false, "Search titles and slugs")
	fs.Bool("description", false, "Search descriptions")
	fs.Bool("tags", false, "Search tags")
	fs.Bool("regex", false, "Treat the query as a regular expression")
	fs.Bool("include-archived", false, "Include archived tickets")

	return &Command{
		Flags: fs,
		Usage: "search <query...> [flags]",
		Short: "Find tickets by text",
		Long: `Search slugs, titles, descriptions and tags case-insensitively.
Restrict the fields with --title, --description and --tags.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return &usageError{cmd: "search", err: errMissingArg}
			}

			opts := tracker.SearchOptions{}
			opts.Title, _ = fs.GetBool("title")
			opts.Description, _ = fs.GetBool("description")
			opts.Tags, _ = fs.GetBool("tags")
			opts.Regex, _ = fs.GetBool("regex")
			archived, _ := fs.GetBool("include-archived")

			svc, err := a.service()
			if err != nil {
				return err
			}

			found, err := svc.Search(strings.Join(args, " "), opts)
			if err != nil {
				return err
			}

			if !archived {
				kept := found[:0]

				for _, t := range found {
					if !t.Extensions.Archived {
						kept = append(kept, t)
					}
				}

				found = kept
			}

			if len(found) == 0 && !a.json {
				o.Println("No tickets match", strings.Join(args, " "))

				return nil
			}

			return a.printTickets(o, found)
		},
	}
}

