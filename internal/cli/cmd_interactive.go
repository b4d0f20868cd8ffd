package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/calvinalkan/vibe-ticket/internal/aliases"
)

const historyFile = ".history"

// InteractiveCmd returns the interactive command.
func InteractiveCmd(a *app) *Command {
	return &Command{
		Flags:   flag.NewFlagSet("interactive", flag.ContinueOnError),
		Usage:   "interactive",
		Short:   "Run vt commands in a shell",
		Aliases: []string{"i"},
		Long: `Read vt commands line by line, without the leading "vt". Tab
completes command names and history is kept in the project directory.
Type exit or press Ctrl-D to leave.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return &usageError{cmd: "interactive", err: errTooManyArgs}
			}

			return a.repl(ctx, o)
		},
	}
}

// lineReader yields input lines; ok is false at end of input.
type lineReader interface {
	ReadLine(prompt string) (line string, ok bool, err error)
	Close() error
}

type scannerReader struct{ s *bufio.Scanner }

func (r scannerReader) ReadLine(string) (string, bool, error) {
	if !r.s.Scan() {
		return "", false, r.s.Err()
	}

	return r.s.Text(), true, nil
}

func (scannerReader) Close() error { return nil }

type linerReader struct {
	state   *liner.State
	history string
}

func (r *linerReader) ReadLine(prompt string) (string, bool, error) {
	line, err := r.state.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("read input: %w", err)
	}

	if strings.TrimSpace(line) != "" {
		r.state.AppendHistory(line)
	}

	return line, true, nil
}

func (r *linerReader) Close() error {
	if r.history != "" {
		if f, err := os.Create(r.history); err == nil {
			_, _ = r.state.WriteHistory(f)
			_ = f.Close()
		}
	}

	return r.state.Close()
}

// newLineReader uses liner on a terminal and a plain scanner otherwise, so
// piped scripts work.
func (a *app) newLineReader() lineReader {
	f, ok := a.stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return scannerReader{s: bufio.NewScanner(a.stdin)}
	}

	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	state.SetCompleter(a.complete)

	r := &linerReader{state: state}

	if a.cfg.Initialized() {
		r.history = filepath.Join(a.cfg.StorageDir, historyFile)

		if h, err := os.Open(r.history); err == nil {
			_, _ = state.ReadHistory(h)
			_ = h.Close()
		}
	}

	return r
}

// complete returns command and alias names starting with line.
func (a *app) complete(line string) []string {
	names := a.reservedNames()

	if st, err := a.aliases(); err == nil {
		if all, err := st.List(); err == nil {
			for _, al := range all {
				names = append(names, al.Name)
			}
		}
	}

	names = append(names, "exit", "quit")
	slices.Sort(names)

	var out []string

	for _, n := range slices.Compact(names) {
		if strings.HasPrefix(n, line) {
			out = append(out, n)
		}
	}

	return out
}

func (a *app) repl(ctx context.Context, o *IO) error {
	if a.stdin == nil {
		return fmt.Errorf("%w: interactive needs stdin", errMissingArg)
	}

	r := a.newLineReader()
	defer func() { _ = r.Close() }()

	for ctx.Err() == nil {
		line, ok, err := r.ReadLine("vt> ")
		if err != nil {
			return err
		}

		if !ok {
			break
		}

		args, err := aliases.SplitArgs(strings.TrimSpace(line))
		if err != nil {
			printError(o, err, a.json)

			continue
		}

		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "exit", "quit":
			return nil
		case "interactive", "i":
			o.ErrPrintln("error: already interactive")

			continue
		}

		// Flag sets keep parsed values, so every line gets fresh commands.
		a.commands = builtinCommands(a)

		lineIO := NewIO(o.Out(), a.stderr)
		if err := a.dispatch(ctx, lineIO, args); err != nil {
			printError(lineIO, err, a.json)
		}

		lineIO.Finish()
	}

	return nil
}
