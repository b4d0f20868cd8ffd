package ticket

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this module wraps at most one of these,
// so callers branch with errors.Is instead of matching messages.
var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotInitialized = errors.New("project not initialized")
	ErrNoActiveTicket = errors.New("no active ticket")
	ErrStorageIO      = errors.New("storage i/o")
	ErrCorrupt        = errors.New("corrupt record")
	ErrLocked         = errors.New("storage locked")
	ErrExternalTool   = errors.New("external tool failed")
)

// Specific errors. Each wraps its kind.
var (
	ErrTicketNotFound     = fmt.Errorf("ticket %w", ErrNotFound)
	ErrTaskNotFound       = fmt.Errorf("task %w", ErrNotFound)
	ErrDuplicateSlug      = fmt.Errorf("slug %w", ErrAlreadyExists)
	ErrMalformedID        = fmt.Errorf("%w: malformed identifier", ErrInvalidInput)
	ErrInvalidStatus      = fmt.Errorf("%w: unknown status", ErrInvalidInput)
	ErrInvalidPriority    = fmt.Errorf("%w: unknown priority", ErrInvalidInput)
	ErrInvalidSlug        = fmt.Errorf("%w: invalid slug", ErrInvalidInput)
	ErrInvalidTitle       = fmt.Errorf("%w: invalid title", ErrInvalidInput)
	ErrInvalidTransition  = fmt.Errorf("%w: status transition not allowed", ErrInvalidInput)
	ErrAlreadyInitialized = fmt.Errorf("project %w", ErrAlreadyExists)
)

// Config errors.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrNoEditorFound      = errors.New("no editor found (set config.editor, $VISUAL or $EDITOR)")
)

// IsRetryable reports whether err is transient: an I/O failure or a lock
// held past the timeout. Not-found and corrupt errors are structural.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageIO) || errors.Is(err, ErrLocked)
}

// Kind returns a short machine-readable name for the error kind of err, or
// "error" when err carries none.
func Kind(err error) string {
	kinds := []struct {
		err  error
		name string
	}{
		{ErrNotFound, "not_found"},
		{ErrAlreadyExists, "already_exists"},
		{ErrInvalidInput, "invalid_input"},
		{ErrNotInitialized, "not_initialized"},
		{ErrNoActiveTicket, "no_active_ticket"},
		{ErrStorageIO, "storage_io"},
		{ErrCorrupt, "storage_corrupt"},
		{ErrLocked, "storage_locked"},
		{ErrExternalTool, "external_tool"},
	}

	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}

	return "error"
}
