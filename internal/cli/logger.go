package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/calvinalkan/vibe-ticket/internal/events"
)

// newLogger logs to w as text when w is a terminal and as JSON otherwise.
// Only warnings are shown unless verbose is set.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelWarn}
	if verbose {
		opts.Level = slog.LevelDebug
	}

	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, opts))
	}

	return slog.New(slog.NewJSONHandler(w, opts))
}

// logEvents returns a bus subscriber that traces every event at debug level.
func logEvents(log *slog.Logger) events.Handler {
	return func(ctx context.Context, e events.Event) error {
		attrs := []any{"event", string(e.Kind), "ticket", e.Ticket.Slug}
		if e.From != "" {
			attrs = append(attrs, "from", string(e.From), "to", string(e.To))
		}

		log.DebugContext(ctx, "ticket event", attrs...)

		return nil
	}
}
