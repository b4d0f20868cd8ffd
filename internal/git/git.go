// Package git shells out to the git binary for branch and worktree handling.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

// ErrNotRepo is returned when Dir is not inside a git work tree.
var ErrNotRepo = fmt.Errorf("%w: not a git repository", ticket.ErrExternalTool)

// Repo runs git commands in Dir.
type Repo struct {
	Dir string
	Env []string // appended to the process environment when set
}

// New returns a Repo rooted at dir.
func New(dir string) *Repo { return &Repo{Dir: dir} }

// Worktree is one entry of `git worktree list --porcelain`.
type Worktree struct {
	Path     string `json:"path"`
	Head     string `json:"head"`
	Branch   string `json:"branch,omitempty"`
	Bare     bool   `json:"bare,omitempty"`
	Detached bool   `json:"detached,omitempty"`
	Locked   bool   `json:"locked,omitempty"`
	Prunable bool   `json:"prunable,omitempty"`
}

func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Dir

	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}

		return "", fmt.Errorf("%w: git %s: %s", ticket.ErrExternalTool, args[0], msg)
	}

	return stdout.String(), nil
}

// IsRepo reports whether Dir is inside a git work tree.
func (r *Repo) IsRepo(ctx context.Context) bool {
	out, err := r.run(ctx, "rev-parse", "--is-inside-work-tree")

	return err == nil && strings.TrimSpace(out) == "true"
}

// CurrentBranch returns the checked out branch, or "HEAD" when detached.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	if !r.IsRepo(ctx) {
		return "", ErrNotRepo
	}

	out, err := r.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out), nil
}

// CreateBranch creates and checks out branch in Dir.
func (r *Repo) CreateBranch(ctx context.Context, branch string) error {
	_, err := r.run(ctx, "checkout", "-b", branch)

	return err
}

// AddWorktree creates a worktree at path on a new branch.
func (r *Repo) AddWorktree(ctx context.Context, path, branch string) error {
	_, err := r.run(ctx, "worktree", "add", "-b", branch, path)

	return err
}

// Worktrees lists every worktree of the repository, the main one first.
func (r *Repo) Worktrees(ctx context.Context) ([]Worktree, error) {
	out, err := r.run(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}

	return ParseWorktrees(out), nil
}

// RemoveWorktree deletes the worktree at path. force discards local changes.
func (r *Repo) RemoveWorktree(ctx context.Context, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}

	_, err := r.run(ctx, append(args, path)...)

	return err
}

// Prune drops administrative entries of worktrees that no longer exist.
func (r *Repo) Prune(ctx context.Context) error {
	_, err := r.run(ctx, "worktree", "prune")

	return err
}

// HasChanges reports uncommitted changes in the work tree at path.
func (r *Repo) HasChanges(ctx context.Context, path string) (bool, error) {
	out, err := r.run(ctx, "-C", path, "status", "--porcelain")
	if err != nil {
		return false, err
	}

	return strings.TrimSpace(out) != "", nil
}

// ParseWorktrees reads porcelain output: blank-line separated blocks of
// "key value" lines.
func ParseWorktrees(out string) []Worktree {
	var (
		list []Worktree
		cur  *Worktree
	)

	flush := func() {
		if cur != nil {
			list = append(list, *cur)
			cur = nil
		}
	}

	for line := range strings.Lines(out) {
		line = strings.TrimRight(line, "\r\n")

		key, value, _ := strings.Cut(line, " ")

		switch key {
		case "":
			flush()
		case "worktree":
			flush()

			cur = &Worktree{Path: value}
		}

		if cur == nil {
			continue
		}

		switch key {
		case "HEAD":
			cur.Head = value
		case "branch":
			cur.Branch = strings.TrimPrefix(value, "refs/heads/")
		case "bare":
			cur.Bare = true
		case "detached":
			cur.Detached = true
		case "locked":
			cur.Locked = true
		case "prunable":
			cur.Prunable = true
		}
	}

	flush()

	return list
}

// BranchName is the branch a ticket works on.
func BranchName(prefix, slug string) string { return prefix + slug }

// WorktreePath places a ticket's worktree under base, relative to the
// project root unless absolute.
func WorktreePath(projectRoot, base, prefix, slug string) string {
	if !filepath.IsAbs(base) {
		base = filepath.Join(projectRoot, base)
	}

	return filepath.Join(base, prefix+slug)
}

// IsNotRepo reports whether err means git found no repository.
func IsNotRepo(err error) bool {
	return errors.Is(err, ErrNotRepo) || (err != nil && strings.Contains(err.Error(), "not a git repository"))
}
