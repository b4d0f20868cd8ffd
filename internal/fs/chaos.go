package fs

import (
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
type ChaosConfig struct {
	OpenFailRate    float64 // OpenFile, so lock acquisition too
	ReadFailRate    float64 // ReadFile
	WriteFailRate   float64 // WriteFileAtomic; the target is left untouched
	ReadDirFailRate float64
	RemoveFailRate  float64 // Remove and RemoveAll
	StatFailRate    float64 // Stat and Exists
	MkdirFailRate   float64
}

// DefaultChaosConfig returns a config with reasonable fault rates for testing.
func DefaultChaosConfig() ChaosConfig {
	return ChaosConfig{
		OpenFailRate:    0.02,
		ReadFailRate:    0.05,
		WriteFailRate:   0.05,
		ReadDirFailRate: 0.02,
		RemoveFailRate:  0.05,
		StatFailRate:    0.02,
		MkdirFailRate:   0.01,
	}
}

// ChaosMode controls how Chaos behaves.
type ChaosMode uint8

const (
	// ChaosModePassthrough behaves like the underlying FS. This is the zero
	// value.
	ChaosModePassthrough ChaosMode = iota

	// ChaosModeInject fails operations at the configured rates.
	ChaosModeInject

	// ChaosModeReadOnly fails every mutating operation with EROFS and passes
	// reads through.
	ChaosModeReadOnly
)

// Chaos wraps an [FS] and injects failures for testing.
//
// Injected errors are *os.PathError values carrying a syscall.Errno, the same
// shape the os package returns, so errors.Is and os.IsNotExist behave as with
// real failures. [IsInjected] tells them apart from real ones.
//
// Writes go through WriteFileAtomic, which is all-or-nothing, so an injected
// write failure never leaves a partially written target.
type Chaos struct {
	fs     FS
	config ChaosConfig
	mode   atomic.Uint32

	rngMu sync.Mutex
	rng   *rand.Rand

	faults atomic.Int64
}

// NewChaos wraps fsys. seed makes the fault sequence reproducible for a
// single goroutine.
func NewChaos(fsys FS, seed int64, config ChaosConfig) *Chaos {
	return &Chaos{
		fs:     fsys,
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// SetMode is safe to call concurrently with filesystem operations.
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// Faults returns how many operations failed on purpose so far.
func (c *Chaos) Faults() int64 { return c.faults.Load() }

func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	mutating := flag&(os.O_WRONLY|os.O_RDWR|os.O_TRUNC) != 0
	if err := c.fault("open", path, c.config.OpenFailRate, mutating, syscall.EMFILE); err != nil {
		return nil, err
	}

	return c.fs.OpenFile(path, flag, perm)
}

func (c *Chaos) ReadFile(path string) ([]byte, error) {
	if err := c.fault("read", path, c.config.ReadFailRate, false, syscall.EIO); err != nil {
		return nil, err
	}

	return c.fs.ReadFile(path)
}

func (c *Chaos) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := c.fault("write", path, c.config.WriteFailRate, true, syscall.ENOSPC); err != nil {
		return err
	}

	return c.fs.WriteFileAtomic(path, data, perm)
}

func (c *Chaos) ReadDir(path string) ([]os.DirEntry, error) {
	if err := c.fault("readdirent", path, c.config.ReadDirFailRate, false, syscall.EIO); err != nil {
		return nil, err
	}

	return c.fs.ReadDir(path)
}

func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	if err := c.fault("mkdir", path, c.config.MkdirFailRate, true, syscall.EACCES); err != nil {
		return err
	}

	return c.fs.MkdirAll(path, perm)
}

func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	if err := c.fault("stat", path, c.config.StatFailRate, false, syscall.EIO); err != nil {
		return nil, err
	}

	return c.fs.Stat(path)
}

func (c *Chaos) Exists(path string) (bool, error) {
	if err := c.fault("stat", path, c.config.StatFailRate, false, syscall.EIO); err != nil {
		return false, err
	}

	return c.fs.Exists(path)
}

func (c *Chaos) Remove(path string) error {
	if err := c.fault("remove", path, c.config.RemoveFailRate, true, syscall.EBUSY); err != nil {
		return err
	}

	return c.fs.Remove(path)
}

func (c *Chaos) RemoveAll(path string) error {
	if err := c.fault("remove", path, c.config.RemoveFailRate, true, syscall.EBUSY); err != nil {
		return err
	}

	return c.fs.RemoveAll(path)
}

// fault decides whether the operation fails and returns the injected error.
func (c *Chaos) fault(op, path string, rate float64, mutating bool, errno syscall.Errno) error {
	switch ChaosMode(c.mode.Load()) {
	case ChaosModePassthrough:
		return nil
	case ChaosModeReadOnly:
		if !mutating {
			return nil
		}

		errno = syscall.EROFS
	case ChaosModeInject:
		if !c.roll(rate) {
			return nil
		}
	}

	c.faults.Add(1)

	return injectPathError(op, path, errno)
}

func (c *Chaos) roll(rate float64) bool {
	if rate <= 0 {
		return false
	}

	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.Float64() < rate
}

var _ FS = (*Chaos)(nil)
