package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

var (
	// ErrWouldBlock is returned when another holder keeps the lock past the
	// allowed wait.
	ErrWouldBlock = errors.New("lock would block")

	// ErrInvalidTimeout is returned for a timeout <= 0.
	ErrInvalidTimeout = errors.New("invalid lock timeout")

	// errReplaced means the lock file at path is no longer the inode we
	// locked. The attempt is retried.
	errReplaced = errors.New("lock file replaced")
)

const (
	lockFilePerm = 0o600
	lockDirPerm  = 0o750

	minBackoff = time.Millisecond
	maxBackoff = 25 * time.Millisecond
)

// Locker takes advisory flock(2) locks on dedicated lock files.
//
// flock binds to an open file description, not a name, so after every
// successful flock the locked descriptor is compared against the file
// currently at path. If the name now points at another inode the lock is
// dropped and taken again. Never delete or replace a lock file while it may be
// held.
//
// Acquisition always polls with LOCK_NB so every wait is bounded. Unix only.
type Locker struct {
	fs    FS
	flock func(fd int, how int) error
}

// NewLocker returns a Locker that opens lock files through fsys.
func NewLocker(fsys FS) *Locker {
	return &Locker{fs: fsys, flock: unix.Flock}
}

// Lock is a held lock. Release it with [Lock.Close].
type Lock struct {
	mu    sync.Mutex
	file  File
	flock func(fd int, how int) error
}

// Close unlocks and closes the descriptor. Safe to call more than once.
func (lk *Lock) Close() error {
	lk.mu.Lock()
	defer lk.mu.Unlock()

	if lk.file == nil {
		return nil
	}

	unlockErr := flockNoEINTR(lk.flock, int(lk.file.Fd()), unix.LOCK_UN)
	closeErr := lk.file.Close()
	lk.file = nil

	if unlockErr != nil {
		unlockErr = fmt.Errorf("unlock: %w", unlockErr)
	}

	if closeErr != nil {
		closeErr = fmt.Errorf("close lock file: %w", closeErr)
	}

	return errors.Join(unlockErr, closeErr)
}

// Lock takes an exclusive lock on path, waiting at most timeout.
//
// Missing parent directories and the lock file itself are created.
// On timeout the error wraps [ErrWouldBlock].
func (l *Locker) Lock(path string, timeout time.Duration) (*Lock, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimeout, timeout)
	}

	return l.poll(path, unix.LOCK_EX, timeout)
}

// RLock takes a shared lock on path, waiting at most timeout. Shared holders
// coexist; they exclude and are excluded by [Locker.Lock].
func (l *Locker) RLock(path string, timeout time.Duration) (*Lock, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimeout, timeout)
	}

	return l.poll(path, unix.LOCK_SH, timeout)
}

func (l *Locker) poll(path string, how int, timeout time.Duration) (*Lock, error) {
	deadline := time.Now().Add(timeout)
	backoff := minBackoff

	openFlag := os.O_RDWR
	if how == unix.LOCK_SH {
		openFlag = os.O_RDONLY
	}

	for {
		file, err := l.open(path, openFlag)
		if err != nil {
			return nil, fmt.Errorf("open lock file: %w", err)
		}

		err = l.tryAcquire(file, path, how)
		if err == nil {
			return &Lock{file: file, flock: l.flock}, nil
		}

		_ = file.Close()

		if !errors.Is(err, ErrWouldBlock) && !errors.Is(err, errReplaced) {
			return nil, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: timed out after %s", ErrWouldBlock, timeout)
		}

		time.Sleep(min(backoff, remaining))

		backoff = min(backoff*2, maxBackoff)
	}
}

// tryAcquire locks file without blocking and checks that it is still the
// file at path. The caller closes file on error.
func (l *Locker) tryAcquire(file File, path string, how int) error {
	fd := int(file.Fd())

	err := flockNoEINTR(l.flock, fd, how|unix.LOCK_NB)
	if err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return ErrWouldBlock
		}

		return fmt.Errorf("flock: %w", err)
	}

	same, err := l.sameInode(file, path)
	if err != nil || !same {
		_ = flockNoEINTR(l.flock, fd, unix.LOCK_UN)

		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat lock file: %w", err)
		}

		return errReplaced
	}

	return nil
}

func (l *Locker) open(path string, flag int) (File, error) {
	f, err := l.fs.OpenFile(path, flag|os.O_CREATE, lockFilePerm)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return f, err
	}

	mkErr := l.fs.MkdirAll(filepath.Dir(path), lockDirPerm)
	if mkErr != nil {
		return nil, mkErr
	}

	return l.fs.OpenFile(path, flag|os.O_CREATE, lockFilePerm)
}

func (l *Locker) sameInode(file File, path string) (bool, error) {
	held, err := file.Stat()
	if err != nil {
		return false, err
	}

	current, err := l.fs.Stat(path)
	if err != nil {
		return false, err
	}

	a, ok := held.Sys().(*syscall.Stat_t)
	if !ok {
		return false, fmt.Errorf("unexpected stat type %T", held.Sys())
	}

	b, ok := current.Sys().(*syscall.Stat_t)
	if !ok {
		return false, fmt.Errorf("unexpected stat type %T", current.Sys())
	}

	return a.Dev == b.Dev && a.Ino == b.Ino, nil
}

// flockNoEINTR retries flock when a signal interrupts it, up to a cap.
func flockNoEINTR(flock func(fd int, how int) error, fd int, how int) error {
	const maxRetries = 10000

	var err error
	for range maxRetries {
		err = flock(fd, how)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}

	return err
}
