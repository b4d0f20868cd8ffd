package cli

import (
	"context"
	"fmt"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// ConfigCmd returns the config command group.
func ConfigCmd(a *app) *Command {
	return Group("config", "Show or change configuration",
		`Configuration is JSON with comments. Later sources win:
defaults, the global file ($XDG_CONFIG_HOME/vt/config.json), the project
file (`+ticket.DirName+`/`+ticket.ConfigFileName+`) and -c <file>.`,
		configShowCmd(a),
		configGetCmd(a),
		configSetCmd(a),
	)
}

func configShowCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("show", flag.ContinueOnError),
		Usage: "show",
		Short: "Show the effective configuration and its sources",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			cfg := a.cfg

			if a.json {
				values := make(map[string]string, len(ticket.ConfigKeys))
				for _, key := range ticket.ConfigKeys {
					values[key], _ = ticket.GetConfigValue(cfg, key)
				}

				return o.JSON(map[string]any{
					"effective_cwd":  cfg.EffectiveCwd,
					"project_root":   cfg.ProjectRoot,
					"values":         values,
					"global_config":  cfg.Sources.Global,
					"project_config": cfg.Sources.Project,
				})
			}

			o.Println("effective_cwd=" + cfg.EffectiveCwd)

			if cfg.ProjectRoot != "" {
				o.Println("project_root=" + cfg.ProjectRoot)
			}

			for _, key := range ticket.ConfigKeys {
				v, _ := ticket.GetConfigValue(cfg, key)
				o.Println(key + "=" + v)
			}

			o.Println("")
			o.Println("# sources")

			if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
				o.Println("(defaults only)")
			} else {
				if cfg.Sources.Global != "" {
					o.Println("global_config=" + cfg.Sources.Global)
				}

				if cfg.Sources.Project != "" {
					o.Println("project_config=" + cfg.Sources.Project)
				}
			}

			return nil
		},
	}
}

func configGetCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("get", flag.ContinueOnError),
		Usage: "get <key>",
		Short: "Print one effective value",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := requireArgs("config get", args, 1, "key"); err != nil {
				return err
			}

			v, err := ticket.GetConfigValue(a.cfg, args[0])
			if err != nil {
				return err
			}

			if a.json {
				return o.JSON(map[string]string{"key": args[0], "value": v})
			}

			o.Println(v)

			return nil
		},
	}
}

func configSetCmd(a *app) *Command {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	fs.Bool("global", false, "Write the global config instead of the project one")

	return &Command{
		Flags: fs,
		Usage: "set <key> <value> [flags]",
		Short: "Write a value to a config file",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := requireArgs("config set", args, 2, "key and value"); err != nil {
				return err
			}

			global, _ := fs.GetBool("global")

			var path string

			switch {
			case global:
				path = ticket.GlobalConfigPath(a.env)
				if path == "" {
					return fmt.Errorf("%w: neither XDG_CONFIG_HOME nor HOME is set", ticket.ErrInvalidInput)
				}
			case a.cfg.Initialized():
				path = filepath.Join(a.cfg.StorageDir, ticket.ConfigFileName)
			default:
				return fmt.Errorf("%w: use --global outside a project", ticket.ErrNotInitialized)
			}

			if err := ticket.SetConfigValue(path, args[0], args[1]); err != nil {
				return err
			}

			o.Printf("Set %s=%s in %s\n", args[0], args[1], path)

			return nil
		},
	}
}
