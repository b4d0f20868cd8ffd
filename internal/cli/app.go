package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/calvinalkan/vibe-ticket/internal/aliases"
	"github.com/calvinalkan/vibe-ticket/internal/events"
	"github.com/calvinalkan/vibe-ticket/internal/filter"
	"github.com/calvinalkan/vibe-ticket/internal/git"
	"github.com/calvinalkan/vibe-ticket/internal/hooks"
	"github.com/calvinalkan/vibe-ticket/internal/specs"
	"github.com/calvinalkan/vibe-ticket/internal/storage"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
	"github.com/calvinalkan/vibe-ticket/internal/timetrack"
	"github.com/calvinalkan/vibe-ticket/internal/tracker"
)

// app carries what commands share for one invocation. Storage, the event bus
// and the ticket service are built on first use so commands that need no
// project, like init and config, work outside one.
type app struct {
	cfg     ticket.Config
	env     map[string]string
	stdin   io.Reader
	stderr  io.Writer
	log     *slog.Logger
	styles  *styles
	json    bool
	noColor bool
	verbose bool
	now     func() time.Time

	// commands is the builtin command table, set by Run.
	commands []*Command

	// aliasDepth guards against aliases expanding to other aliases.
	aliasDepth int

	store *storage.FileStorage
	bus   *events.Bus
	svc   *tracker.Service
}

// storage opens the project storage.
func (a *app) storage() (*storage.FileStorage, error) {
	if !a.cfg.Initialized() {
		return nil, fmt.Errorf("%w: no %s directory in %s or any parent", ticket.ErrNotInitialized, ticket.DirName, a.cfg.EffectiveCwd)
	}

	if a.store == nil {
		a.store = storage.Open(a.cfg.StorageDir,
			storage.WithLockTimeout(a.cfg.LockWait),
			storage.WithLogger(a.log),
			storage.WithClock(a.now),
		)
	}

	return a.store, nil
}

// events returns the bus, wiring the hook runner and the event log on first
// use.
func (a *app) events() (*events.Bus, error) {
	s, err := a.storage()
	if err != nil {
		return nil, err
	}

	if a.bus == nil {
		a.bus = events.New()

		runner := hooks.NewRunner(hooks.NewStore(s), a.cfg.ProjectRoot, environ(a.env), a.stderr, a.log)
		a.bus.Subscribe(runner.Handle)
		a.bus.Subscribe(logEvents(a.log))
	}

	return a.bus, nil
}

// service returns the ticket service bound to the project storage.
func (a *app) service() (*tracker.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}

	s, err := a.storage()
	if err != nil {
		return nil, err
	}

	bus, err := a.events()
	if err != nil {
		return nil, err
	}

	a.svc = tracker.New(s, bus, tracker.WithClock(a.now), tracker.WithLogger(a.log))

	return a.svc, nil
}

func (a *app) aliases() (*aliases.Store, error) {
	s, err := a.storage()
	if err != nil {
		return nil, err
	}

	return aliases.NewStore(s, a.reservedNames()), nil
}

func (a *app) filters() (*filter.Store, error) {
	s, err := a.storage()
	if err != nil {
		return nil, err
	}

	return filter.NewStore(s), nil
}

func (a *app) hooks() (*hooks.Store, error) {
	s, err := a.storage()
	if err != nil {
		return nil, err
	}

	return hooks.NewStore(s), nil
}

func (a *app) timeStore() (*timetrack.Store, error) {
	s, err := a.storage()
	if err != nil {
		return nil, err
	}

	return timetrack.NewStore(s), nil
}

func (a *app) specs() (*specs.Store, error) {
	s, err := a.storage()
	if err != nil {
		return nil, err
	}

	return specs.NewStore(s), nil
}

func (a *app) git() *git.Repo {
	root := a.cfg.ProjectRoot
	if root == "" {
		root = a.cfg.EffectiveCwd
	}

	return git.New(root)
}

// defaultPriority is the configured priority for new tickets.
func (a *app) defaultPriority() ticket.Priority {
	p, err := ticket.ParsePriority(a.cfg.DefaultPriority)
	if err != nil {
		return ticket.DefaultPriority
	}

	return p
}

// expression resolves a filter expression, where "@name" names a saved
// filter.
func (a *app) expression(expr string) (filter.Expr, error) {
	if expr == "" {
		return filter.Expr{}, nil
	}

	st, err := a.filters()
	if err != nil {
		return filter.Expr{}, err
	}

	return st.Resolve(expr, a.now())
}

// reservedNames are the builtin command names and their aliases.
func (a *app) reservedNames() []string {
	var names []string

	for _, c := range a.commands {
		names = append(names, c.Name())
		names = append(names, c.Aliases...)
	}

	return append(names, "help")
}

func (a *app) lookup(name string) *Command {
	for _, c := range a.commands {
		if c.Matches(name) {
			return c
		}
	}

	return nil
}

// readStdin returns all of stdin, trimmed.
func (a *app) readStdin() (string, error) {
	if a.stdin == nil {
		return "", nil
	}

	data, err := io.ReadAll(a.stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

// environ turns the env map back into KEY=VALUE pairs for child processes.
func environ(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}

	return out
}
