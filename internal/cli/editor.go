package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/calvinalkan/vibe-ticket/internal/aliases"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// resolveEditor returns the editor command line split into arguments.
// Priority: config editor -> $VISUAL -> $EDITOR -> zed -> vi -> nano.
// Configured editors may carry arguments, e.g. "code --wait".
func resolveEditor(cfg ticket.Config, env map[string]string) ([]string, error) {
	for _, candidate := range []string{cfg.Editor, env["VISUAL"], env["EDITOR"]} {
		if candidate == "" {
			continue
		}

		args, err := aliases.SplitArgs(candidate)
		if err != nil || len(args) == 0 {
			continue
		}

		if _, err := exec.LookPath(args[0]); err == nil {
			return args, nil
		}
	}

	for _, name := range []string{"zed", "vi", "nano"} {
		if _, err := exec.LookPath(name); err == nil {
			if name == "zed" {
				return []string{name, "-n", "-w"}, nil
			}

			return []string{name}, nil
		}
	}

	return nil, ticket.ErrNoEditorFound
}

// runEditor opens path and waits for the editor to exit.
func (a *app) runEditor(ctx context.Context, path string) error {
	argv, err := resolveEditor(a.cfg, a.env)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, argv[0], append(argv[1:], path)...)
	cmd.Dir = filepath.Dir(path)
	cmd.Env = environ(a.env)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = a.stderr

	a.log.Debug("running editor", "argv", argv, "path", path)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: editor %s: %w", ticket.ErrExternalTool, argv[0], err)
	}

	return nil
}

// editText lets the user edit text in a temporary markdown file and returns
// the result.
func (a *app) editText(ctx context.Context, name, text string) (string, error) {
	f, err := os.CreateTemp("", "vt-"+name+"-*.md")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %w", ticket.ErrStorageIO, err)
	}

	path := f.Name()
	defer func() { _ = os.Remove(path) }()

	_, err = f.WriteString(text)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return "", fmt.Errorf("%w: write temp file: %w", ticket.ErrStorageIO, err)
	}

	if err := a.runEditor(ctx, path); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read temp file: %w", ticket.ErrStorageIO, err)
	}

	return string(data), nil
}
