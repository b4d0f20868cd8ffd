package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command defines a CLI command with unified help generation.
type Command struct {
	// Flags defines command-specific flags.
	// The FlagSet name is not used - command identity comes from Usage.
	Flags *flag.FlagSet

	// Usage is the freeform usage string shown after "vt" in help.
	// Includes the command name and arguments/flags.
	// Examples: "show [ref]", "new <slug> [flags]", "list [flags]"
	Usage string

	// Short is a one-line description for the global help listing.
	Short string

	// Long is the full description shown in command help.
	// If empty, Short is used instead.
	Long string

	// Aliases are alternative names accepted by the dispatcher.
	Aliases []string

	// Exec runs the command after flags are parsed.
	Exec func(ctx context.Context, o *IO, args []string) error

	parent string
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

// Matches reports whether name is the command name or one of its aliases.
func (c *Command) Matches(name string) bool {
	return c.Name() == name || slices.Contains(c.Aliases, name)
}

func (c *Command) fullUsage() string {
	if c.parent != "" {
		return c.parent + " " + c.Usage
	}

	return c.Usage
}

// HelpLine returns the short help line for the main usage display.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-28s %s", c.Usage, c.Short)
}

// PrintHelp prints the full help output for "vt <cmd> --help".
func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage: vt", c.fullUsage())
	o.Println()

	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	o.Println(desc)

	if len(c.Aliases) > 0 {
		o.Println()
		o.Println("Aliases:", strings.Join(c.Aliases, ", "))
	}

	if c.Flags != nil && c.Flags.HasFlags() {
		o.Println()
		o.Println("Flags:")

		var buf strings.Builder
		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		o.Printf("%s", buf.String())
	}
}

// Run parses flags and executes the command.
func (c *Command) Run(ctx context.Context, o *IO, args []string) error {
	c.Flags.SetOutput(&strings.Builder{}) // discard pflag output

	err := c.Flags.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(o)
			return nil
		}

		return &usageError{cmd: c.fullUsage(), err: err}
	}

	return c.Exec(ctx, o, c.Flags.Args())
}

// Group returns a command that dispatches its first argument to one of subs.
func Group(usage, short, long string, subs ...*Command) *Command {
	fs := flag.NewFlagSet(usage, flag.ContinueOnError)
	fs.SetInterspersed(false)

	g := &Command{Flags: fs, Usage: usage + " <command>", Short: short}

	var b strings.Builder

	b.WriteString(long)
	b.WriteString("\n\nCommands:\n")

	for _, sub := range subs {
		sub.parent = usage
		b.WriteString(sub.HelpLine())
		b.WriteString("\n")
	}

	g.Long = strings.TrimRight(strings.TrimLeft(b.String(), "\n"), "\n")

	g.Exec = func(ctx context.Context, o *IO, args []string) error {
		if len(args) == 0 {
			return &usageError{cmd: g.Usage, err: errMissingSubcommand}
		}

		for _, sub := range subs {
			if sub.Matches(args[0]) {
				return sub.Run(ctx, o, args[1:])
			}
		}

		names := make([]string, 0, len(subs))
		for _, sub := range subs {
			names = append(names, sub.Name())
		}

		return &unknownCommandError{name: usage + " " + args[0], guess: closestName(args[0], names, usage+" ")}
	}

	return g
}

// refArg returns the optional single ticket reference of a command.
func refArg(cmd string, args []string) (string, error) {
	switch len(args) {
	case 0:
		return "", nil
	case 1:
		return args[0], nil
	default:
		return "", &usageError{cmd: cmd, err: fmt.Errorf("%w: %s", errTooManyArgs, strings.Join(args[1:], " "))}
	}
}

// requireArgs checks that exactly n positional arguments were given.
func requireArgs(cmd string, args []string, n int, what string) error {
	if len(args) < n {
		return &usageError{cmd: cmd, err: fmt.Errorf("%w: %s", errMissingArg, what)}
	}

	if len(args) > n {
		return &usageError{cmd: cmd, err: fmt.Errorf("%w: %s", errTooManyArgs, strings.Join(args[n:], " "))}
	}

	return nil
}
