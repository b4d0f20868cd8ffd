package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// Version is reported by --version and to MCP clients.
var Version = "dev"

// maxAliasDepth bounds alias expansion. Aliases may only expand to builtin
// commands.
const maxAliasDepth = 1

// Run is the main entry point. Returns exit code.
//
// Cancellation: the first signal on sigCh cancels the command context so
// long-running commands (mcp serve, interactive, hooks) stop.
func Run(stdin io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	if env == nil {
		env = map[string]string{}
	}

	o := NewIO(out, errOut)

	globals := flag.NewFlagSet("vt", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(io.Discard)

	flagCwd := globals.StringP("cwd", "C", "", "Run as if started in `dir`")
	flagConfig := globals.StringP("config", "c", "", "Use specified config `file`")
	flagJSON := globals.Bool("json", false, "Print machine-readable JSON")
	flagNoColor := globals.Bool("no-color", false, "Disable colored output")
	flagVerbose := globals.BoolP("verbose", "v", false, "Log debug output to stderr")
	flagHelp := globals.BoolP("help", "h", false, "Show help")
	flagVersion := globals.Bool("version", false, "Print version")

	if len(args) > 0 {
		args = args[1:]
	}

	if err := globals.Parse(args); err != nil {
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		printUsage(errOut, globals, builtinCommands(&app{}))

		return 1
	}

	if *flagCwd == "" && globals.Changed("cwd") {
		o.ErrPrintln("error: --cwd cannot be empty")

		return 1
	}

	if *flagVersion {
		o.Println("vt", Version)

		return 0
	}

	rest := globals.Args()

	if *flagHelp || len(rest) == 0 {
		printUsage(out, globals, builtinCommands(&app{}))

		return 0
	}

	cfg, err := ticket.LoadConfig(ticket.LoadConfigInput{
		WorkDirOverride: *flagCwd,
		ConfigPath:      *flagConfig,
		Env:             env,
	})
	if err != nil {
		printError(o, err, *flagJSON)

		return 1
	}

	a := &app{
		cfg:     cfg,
		env:     env,
		stdin:   stdin,
		stderr:  errOut,
		log:     newLogger(errOut, *flagVerbose),
		styles:  newStyles(out, env, cfg.Output.Color, *flagNoColor || *flagJSON),
		json:    *flagJSON,
		noColor: *flagNoColor,
		verbose: *flagVerbose,
		now:     time.Now,
	}
	a.commands = builtinCommands(a)

	if err := a.dispatch(ctx, o, rest); err != nil {
		printError(o, err, a.json)
		o.Finish()

		return 1
	}

	o.Finish()

	return 0
}

// dispatch runs a builtin command, or expands a user alias.
func (a *app) dispatch(ctx context.Context, o *IO, args []string) error {
	name := args[0]

	if name == "help" {
		if len(args) > 1 {
			if cmd := a.lookup(args[1]); cmd != nil {
				cmd.PrintHelp(o)

				return nil
			}
		}

		printUsage(o.Out(), nil, a.commands)

		return nil
	}

	if cmd := a.lookup(name); cmd != nil {
		return cmd.Run(ctx, o, args[1:])
	}

	if expanded, ok, err := a.expandAlias(name, args[1:]); err != nil {
		return err
	} else if ok {
		a.aliasDepth++
		defer func() { a.aliasDepth-- }()

		return a.dispatch(ctx, o, expanded)
	}

	return &unknownCommandError{name: name, guess: closestName(name, a.reservedNames(), "")}
}

// expandAlias returns the arguments a user alias called name stands for.
// Without a project there are no aliases.
func (a *app) expandAlias(name string, extra []string) ([]string, bool, error) {
	if !a.cfg.Initialized() {
		return nil, false, nil
	}

	st, err := a.aliases()
	if err != nil {
		return nil, false, err
	}

	al, err := st.Get(name)
	if err != nil {
		if errors.Is(err, ticket.ErrNotFound) {
			return nil, false, nil
		}

		return nil, false, err
	}

	if a.aliasDepth >= maxAliasDepth {
		return nil, false, fmt.Errorf("%w: alias %s expands to another alias", ticket.ErrInvalidInput, name)
	}

	args, err := al.Args(extra...)
	if err != nil {
		return nil, false, err
	}

	if len(args) == 0 {
		return nil, false, fmt.Errorf("%w: alias %s has an empty command", ticket.ErrInvalidInput, name)
	}

	return args, true, nil
}

// builtinCommands returns every command in help order.
func builtinCommands(a *app) []*Command {
	return []*Command{
		InitCmd(a),
		NewCmd(a),
		ListCmd(a),
		ShowCmd(a),
		EditCmd(a),
		StartCmd(a),
		ReviewCmd(a),
		ApproveCmd(a),
		RequestChangesCmd(a),
		BlockCmd(a),
		ReopenCmd(a),
		CloseCmd(a),
		HandoffCmd(a),
		ActiveCmd(a),
		CheckCmd(a),
		BoardCmd(a),
		TaskCmd(a),
		ArchiveCmd(a),
		UnarchiveCmd(a),
		SearchCmd(a),
		ExportCmd(a),
		ImportCmd(a),
		BulkCmd(a),
		AliasCmd(a),
		FilterCmd(a),
		HookCmd(a),
		TimeCmd(a),
		SpecCmd(a),
		WorktreeCmd(a),
		ConfigCmd(a),
		InteractiveCmd(a),
		MCPCmd(a),
	}
}

func printUsage(w io.Writer, globals *flag.FlagSet, commands []*Command) {
	fprintln(w, `vt - file-backed ticket tracker

Usage: vt [global flags] <command> [flags] [args]`)

	if globals != nil {
		fprintln(w)
		fprintln(w, "Global flags:")
		fprintln(w, strings.TrimRight(globals.FlagUsages(), "\n"))
	}

	fprintln(w)
	fprintln(w, "Commands:")

	for _, c := range commands {
		fprintln(w, c.HelpLine())
	}

	fprintln(w)
	fprintln(w, "Run 'vt <command> --help' for command flags.")
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}
