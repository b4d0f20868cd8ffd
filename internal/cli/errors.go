package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xrash/smetrics"

	"github.com/calvinalkan/vibe-ticket/internal/aliases"
	"github.com/calvinalkan/vibe-ticket/internal/filter"
	"github.com/calvinalkan/vibe-ticket/internal/git"
	"github.com/calvinalkan/vibe-ticket/internal/hooks"
	"github.com/calvinalkan/vibe-ticket/internal/specs"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
	"github.com/calvinalkan/vibe-ticket/internal/timetrack"
	"github.com/calvinalkan/vibe-ticket/internal/tracker"
)

var (
	errMissingArg        = fmt.Errorf("%w: missing argument", ticket.ErrInvalidInput)
	errTooManyArgs       = fmt.Errorf("%w: unexpected arguments", ticket.ErrInvalidInput)
	errMissingSubcommand = fmt.Errorf("%w: missing subcommand", ticket.ErrInvalidInput)
	errEmptyValue        = fmt.Errorf("%w: empty value not allowed", ticket.ErrInvalidInput)
	errExclusiveFlags    = fmt.Errorf("%w: flags cannot be combined", ticket.ErrInvalidInput)
)

// usageError is a malformed invocation of cmd.
type usageError struct {
	cmd string
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

// unknownCommandError names a command that neither a builtin nor an alias
// provides.
type unknownCommandError struct {
	name  string
	guess string
}

func (e *unknownCommandError) Error() string { return "unknown command: " + e.name }

func (e *unknownCommandError) Unwrap() error { return ticket.ErrInvalidInput }

// minSimilarity is the Jaro-Winkler score a command name needs to be offered
// as a correction.
const minSimilarity = 0.8

// closestName returns prefix+candidate for the candidate most similar to
// name, or "" when none is close enough.
func closestName(name string, candidates []string, prefix string) string {
	best, bestScore := "", 0.0

	for _, c := range candidates {
		score := smetrics.JaroWinkler(name, c, 0.7, 4)
		if score > bestScore {
			best, bestScore = c, score
		}
	}

	if bestScore < minSimilarity {
		return ""
	}

	return prefix + best
}

// Suggestions returns hint lines for err, most specific first.
func Suggestions(err error) []string {
	var (
		usage   *usageError
		unknown *unknownCommandError
	)

	switch {
	case errors.As(err, &unknown):
		if unknown.guess != "" {
			return []string{fmt.Sprintf("did you mean `vt %s`?", unknown.guess)}
		}

		return []string{"run `vt --help` to list commands"}
	case errors.As(err, &usage):
		return []string{fmt.Sprintf("run `vt %s --help` for usage", strings.Fields(usage.cmd)[0])}
	case errors.Is(err, ticket.ErrNotInitialized):
		return []string{"run `vt init` to create a project in this directory", "or pass -C <dir> to use another project"}
	case errors.Is(err, ticket.ErrNoActiveTicket):
		return []string{"pass a ticket reference", "or run `vt start <ref>` to make a ticket active"}
	case errors.Is(err, tracker.ErrAmbiguousRef):
		return []string{"use the full slug or a longer id prefix"}
	case errors.Is(err, ticket.ErrDuplicateSlug):
		return []string{"choose another slug, or drop --no-prefix to get a timestamped one"}
	case errors.Is(err, ticket.ErrAlreadyInitialized):
		return []string{"use `vt init --force` to rewrite the project metadata"}
	case errors.Is(err, ticket.ErrInvalidTransition):
		return []string{"run `vt show <ref>` to check the current status"}
	case errors.Is(err, ticket.ErrInvalidSlug):
		return []string{"slugs use lowercase letters, digits and single dashes, e.g. fix-login-bug"}
	case errors.Is(err, ticket.ErrInvalidPriority):
		return []string{"valid priorities: low, medium, high, critical (or 1-4)"}
	case errors.Is(err, ticket.ErrInvalidStatus):
		return []string{"valid statuses: todo, doing, review, blocked, done"}
	case errors.Is(err, filter.ErrInvalidFilter):
		return []string{"filter terms look like status:todo,doing tag:auth -assignee:sam"}
	case errors.Is(err, timetrack.ErrInvalidDuration):
		return []string{"durations look like 1h30m, 2h, 45m or a number of minutes"}
	case errors.Is(err, timetrack.ErrNoTimer):
		return []string{"run `vt time start [ref]` first"}
	case errors.Is(err, ticket.ErrTicketNotFound):
		return []string{"run `vt list --include-done --archived` to see every ticket"}
	case errors.Is(err, ticket.ErrTaskNotFound):
		return []string{"run `vt task list` to see task numbers"}
	case errors.Is(err, aliases.ErrAliasNotFound):
		return []string{"run `vt alias list` to see aliases"}
	case errors.Is(err, filter.ErrFilterNotFound):
		return []string{"run `vt filter list` to see saved filters"}
	case errors.Is(err, hooks.ErrHookNotFound):
		return []string{"run `vt hook list` to see hooks"}
	case errors.Is(err, specs.ErrNoActiveSpec):
		return []string{"pass a spec reference or run `vt spec activate <ref>`"}
	case errors.Is(err, specs.ErrSpecNotFound):
		return []string{"run `vt spec list` to see specs"}
	case errors.Is(err, hooks.ErrHookAborted):
		return []string{"fix the hook or disable it with `vt hook disable <name>`"}
	case errors.Is(err, git.ErrNotRepo):
		return []string{"run the command inside a git repository, or disable git.worktree_enabled"}
	case errors.Is(err, ticket.ErrNoEditorFound):
		return []string{"set one with `vt config set editor <command>` or export EDITOR"}
	case errors.Is(err, ticket.ErrLocked):
		return []string{"another vt process holds the lock; retry, or raise lock_timeout"}
	case errors.Is(err, ticket.ErrCorrupt):
		return []string{"run `vt check --detailed` to list unreadable tickets"}
	case errors.Is(err, ticket.ErrStorageIO):
		return []string{"check permissions of the .vibe-ticket directory; the operation can be retried"}
	case errors.Is(err, ticket.ErrConfigInvalid), errors.Is(err, ticket.ErrConfigFileRead):
		return []string{"run `vt config show` after fixing the file"}
	}

	return nil
}

type errorPayload struct {
	Error       string   `json:"error"`
	Kind        string   `json:"kind"`
	Suggestions []string `json:"suggestions"`
}

// printError reports err on stderr, or on stdout as JSON in JSON mode.
func printError(o *IO, err error, asJSON bool) {
	hints := Suggestions(err)

	if asJSON {
		if hints == nil {
			hints = []string{}
		}

		if jsonErr := o.JSON(errorPayload{Error: err.Error(), Kind: ticket.Kind(err), Suggestions: hints}); jsonErr == nil {
			return
		}
	}

	o.ErrPrintln("error:", err)

	for _, h := range hints {
		o.ErrPrintln("hint:", h)
	}
}
