package storage

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/calvinalkan/vibe-ticket/internal/fs"
	"github.com/calvinalkan/vibe-ticket/internal/ticket"
)

const (
	ticketsDir = "tickets"
	locksDir   = ".locks"
	recordExt  = ".yaml"
	filePerm   = 0o600

	loadConcurrency = 8
)

// FileStorage is the on-disk Repository.
//
// Layout under root:
//
//	tickets/<uuid>.yaml    one record per ticket
//	active_tickets.yaml    ordered active list
//	.locks/                lock files, never removed
//
// Mutations take an exclusive lock scoped to the file they touch; reads take
// a shared lock on the same file. Both wait at most the lock timeout and then
// fail with ticket.ErrLocked.
type FileStorage struct {
	root        string
	fs          fs.FS
	locker      *fs.Locker
	lockTimeout time.Duration
	onCorrupt   func(path string, err error)
	log         *slog.Logger
	now         func() time.Time
}

// Option configures a FileStorage.
type Option func(*FileStorage)

// WithFS replaces the os-backed filesystem.
func WithFS(fsys fs.FS) Option {
	return func(s *FileStorage) {
		s.fs = fsys
		s.locker = fs.NewLocker(fsys)
	}
}

// WithLockTimeout bounds every lock wait. Non-positive values are ignored.
func WithLockTimeout(d time.Duration) Option {
	return func(s *FileStorage) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithSkipCorrupt makes LoadAll skip unreadable records, reporting each to
// fn, instead of failing the whole call.
func WithSkipCorrupt(fn func(path string, err error)) Option {
	return func(s *FileStorage) { s.onCorrupt = fn }
}

// WithClock replaces time.Now for timestamps written by storage itself.
func WithClock(now func() time.Time) Option {
	return func(s *FileStorage) { s.now = now }
}

// WithLogger sets the logger for debug tracing.
func WithLogger(log *slog.Logger) Option {
	return func(s *FileStorage) { s.log = log }
}

// Open returns a FileStorage rooted at root (the .vibe-ticket directory).
// Nothing is touched on disk until the first operation.
func Open(root string, opts ...Option) *FileStorage {
	osfs := fs.NewReal()

	s := &FileStorage{
		root:        root,
		fs:          osfs,
		locker:      fs.NewLocker(osfs),
		lockTimeout: ticket.DefaultLockTimeout,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Root returns the storage root directory.
func (s *FileStorage) Root() string { return s.root }

// Path returns the record path for id. It depends on id alone.
func (s *FileStorage) Path(id ticket.ID) string {
	return filepath.Join(s.root, ticketsDir, id.String()+recordExt)
}

func (s *FileStorage) ticketLock(id ticket.ID) string {
	return filepath.Join(ticketsDir, id.String())
}

// withLock runs fn while holding the lock file <root>/.locks/<name>.lock.
// The lock is released on every return path.
func (s *FileStorage) withLock(name string, exclusive bool, fn func() error) (err error) {
	path := filepath.Join(s.root, locksDir, name+".lock")

	acquire := s.locker.RLock
	if exclusive {
		acquire = s.locker.Lock
	}

	lk, err := acquire(path, s.lockTimeout)
	if err != nil {
		if errors.Is(err, fs.ErrWouldBlock) {
			return fmt.Errorf("%w: %s: %w", ticket.ErrLocked, name, err)
		}

		return fmt.Errorf("%w: lock %s: %w", ticket.ErrStorageIO, name, err)
	}

	defer func() {
		if closeErr := lk.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("%w: release %s: %w", ticket.ErrStorageIO, name, closeErr))
		}
	}()

	return fn()
}

// Save writes t to its record file, replacing any previous content.
func (s *FileStorage) Save(t ticket.Ticket) error {
	if t.ID.IsZero() {
		return fmt.Errorf("%w: ticket has no id", ticket.ErrInvalidInput)
	}

	t.Compact()

	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode ticket %s: %w", t.ID, err)
	}

	path := s.Path(t.ID)

	err = s.withLock(s.ticketLock(t.ID), true, func() error {
		writeErr := s.fs.WriteFileAtomic(path, data, filePerm)
		if writeErr != nil {
			return fmt.Errorf("%w: write %s: %w", ticket.ErrStorageIO, path, writeErr)
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.log.Debug("ticket saved", "id", t.ID.String(), "slug", t.Slug)

	return nil
}

// Load reads the record for id.
func (s *FileStorage) Load(id ticket.ID) (ticket.Ticket, error) {
	var t ticket.Ticket

	err := s.withLock(s.ticketLock(id), false, func() error {
		var readErr error
		t, readErr = s.readRecord(s.Path(id), id)

		return readErr
	})

	return t, err
}

func (s *FileStorage) readRecord(path string, id ticket.ID) (ticket.Ticket, error) {
	data, err := s.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ticket.Ticket{}, fmt.Errorf("%w: %s", ticket.ErrTicketNotFound, id)
		}

		return ticket.Ticket{}, fmt.Errorf("%w: read %s: %w", ticket.ErrStorageIO, path, err)
	}

	var t ticket.Ticket
	if err := yaml.Unmarshal(data, &t); err != nil {
		return ticket.Ticket{}, fmt.Errorf("%w: %s: %w", ticket.ErrCorrupt, path, err)
	}

	if !t.ID.Equal(id) {
		return ticket.Ticket{}, fmt.Errorf("%w: %s: contains id %q", ticket.ErrCorrupt, path, t.ID)
	}

	return t, nil
}

// LoadAll reads every record under tickets/, ordered by creation time then id.
// Records are read concurrently, each under its own shared lock.
//
// A corrupt record fails the call unless WithSkipCorrupt was given. The
// callback is never invoked concurrently.
func (s *FileStorage) LoadAll() ([]ticket.Ticket, error) {
	dir := filepath.Join(s.root, ticketsDir)

	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("%w: list %s: %w", ticket.ErrStorageIO, dir, err)
	}

	var (
		mu      sync.Mutex
		tickets = make([]ticket.Ticket, 0, len(entries))
	)

	g := new(errgroup.Group)
	g.SetLimit(loadConcurrency)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}

		path := filepath.Join(dir, name)

		g.Go(func() error {
			t, loadErr := s.loadEntry(path, strings.TrimSuffix(name, recordExt))

			mu.Lock()
			defer mu.Unlock()

			switch {
			case loadErr == nil:
				tickets = append(tickets, t)
			case errors.Is(loadErr, ticket.ErrNotFound):
				// removed between ReadDir and read
			case errors.Is(loadErr, ticket.ErrCorrupt) && s.onCorrupt != nil:
				s.log.Warn("skipping corrupt ticket", "path", path, "error", loadErr)
				s.onCorrupt(path, loadErr)
			default:
				return loadErr
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(tickets, func(a, b ticket.Ticket) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), a.ID.Compare(b.ID))
	})

	return tickets, nil
}

func (s *FileStorage) loadEntry(path, base string) (ticket.Ticket, error) {
	id, err := ticket.ParseID(base)
	if err != nil {
		return ticket.Ticket{}, fmt.Errorf("%w: %s: file name is not a ticket id", ticket.ErrCorrupt, path)
	}

	var t ticket.Ticket

	err = s.withLock(s.ticketLock(id), false, func() error {
		var readErr error
		t, readErr = s.readRecord(path, id)

		return readErr
	})

	return t, err
}

// Delete removes the record for id.
func (s *FileStorage) Delete(id ticket.ID) error {
	path := s.Path(id)

	err := s.withLock(s.ticketLock(id), true, func() error {
		removeErr := s.fs.Remove(path)
		if removeErr == nil {
			return nil
		}

		if errors.Is(removeErr, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ticket.ErrTicketNotFound, id)
		}

		return fmt.Errorf("%w: remove %s: %w", ticket.ErrStorageIO, path, removeErr)
	})
	if err != nil {
		return err
	}

	s.log.Debug("ticket deleted", "id", id.String())

	return nil
}

// Exists reports whether a regular record file is present for id.
func (s *FileStorage) Exists(id ticket.ID) (bool, error) {
	path := s.Path(id)

	info, err := s.fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("%w: stat %s: %w", ticket.ErrStorageIO, path, err)
	}

	return info.Mode().IsRegular(), nil
}

// Find returns the tickets matching pred in LoadAll order.
func (s *FileStorage) Find(pred Predicate) ([]ticket.Ticket, error) {
	all, err := s.LoadAll()
	if err != nil {
		return nil, err
	}

	return filter(all, pred), nil
}

// Count returns how many tickets match pred.
func (s *FileStorage) Count(pred Predicate) (int, error) {
	found, err := s.Find(pred)
	if err != nil {
		return 0, err
	}

	return len(found), nil
}

func filter(all []ticket.Ticket, pred Predicate) []ticket.Ticket {
	out := make([]ticket.Ticket, 0, len(all))

	for i := range all {
		if pred(&all[i]) {
			out = append(out, all[i])
		}
	}

	return out
}
