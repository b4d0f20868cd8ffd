package cli

import (
	"context"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/storage"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// InitCmd returns the init command.
func InitCmd(a *app) *Command {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.String("name", "", "Project name [default: directory name]")
	fs.String("description", "", "Project description")
	fs.Bool("force", false, "Rewrite project metadata of an existing project")

	return &Command{
		Flags: fs,
		Usage: "init [flags]",
		Short: "Create a project in the current directory",
		Long: `Create the ` + ticket.DirName + ` directory in the working directory.

Existing tickets are kept with --force; only project.yaml is rewritten.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return &usageError{cmd: "init", err: errTooManyArgs}
			}

			name, _ := fs.GetString("name")
			description, _ := fs.GetString("description")
			force, _ := fs.GetBool("force")

			return execInit(o, a, name, description, force)
		},
	}
}

func execInit(o *IO, a *app, name, description string, force bool) error {
	dir := a.cfg.EffectiveCwd
	if name == "" {
		name = filepath.Base(dir)
	}

	root := filepath.Join(dir, ticket.DirName)

	s := storage.Open(root, storage.WithLogger(a.log), storage.WithClock(a.now), storage.WithLockTimeout(a.cfg.LockWait))
	if err := s.Init(name, description, force); err != nil {
		return err
	}

	if a.json {
		return o.JSON(map[string]string{"root": dir, "name": name, "storage": root})
	}

	o.Println("Initialized project", name, "in", root)

	return nil
}
