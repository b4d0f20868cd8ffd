package fs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func Test_Locker_Lock_Returns_ErrWouldBlock_When_Path_Is_Locked(t *testing.T) {
	t.Parallel()

	locker := NewLocker(NewReal())
	path := filepath.Join(t.TempDir(), "a.lock")

	first, err := locker.Lock(path, time.Second)
	if err != nil {
		t.Fatalf("Lock(%q): %v", path, err)
	}

	_, err = locker.Lock(path, 10*time.Millisecond)
	if !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("Lock while held: err=%v, want %v", err, ErrWouldBlock)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	again, err := locker.Lock(path, time.Second)
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}

	_ = again.Close()
}

func Test_Locker_Lock_Times_Out_When_Held_By_Another_Holder(t *testing.T) {
	t.Parallel()

	locker := NewLocker(NewReal())
	path := filepath.Join(t.TempDir(), "a.lock")

	held, err := locker.Lock(path, time.Second)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer held.Close()

	start := time.Now()

	_, err = locker.Lock(path, 40*time.Millisecond)
	if !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("Lock while held: err=%v, want %v", err, ErrWouldBlock)
	}

	if !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("err=%q, want substring %q", err, "timed out")
	}

	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("returned after %s, want >= 40ms", elapsed)
	}
}

func Test_Locker_Lock_Returns_ErrInvalidTimeout_When_Timeout_Is_Not_Positive(t *testing.T) {
	t.Parallel()

	locker := NewLocker(NewReal())
	path := filepath.Join(t.TempDir(), "a.lock")

	for _, timeout := range []time.Duration{0, -time.Second} {
		_, err := locker.Lock(path, timeout)
		if !errors.Is(err, ErrInvalidTimeout) {
			t.Errorf("Lock(%s): err=%v, want %v", timeout, err, ErrInvalidTimeout)
		}

		_, err = locker.RLock(path, timeout)
		if !errors.Is(err, ErrInvalidTimeout) {
			t.Errorf("RLock(%s): err=%v, want %v", timeout, err, ErrInvalidTimeout)
		}
	}
}

func Test_Locker_RLock_Allows_Readers_And_Excludes_Writer(t *testing.T) {
	t.Parallel()

	locker := NewLocker(NewReal())
	path := filepath.Join(t.TempDir(), "a.lock")

	r1, err := locker.RLock(path, time.Second)
	if err != nil {
		t.Fatalf("RLock: %v", err)
	}
	defer r1.Close()

	r2, err := locker.RLock(path, time.Second)
	if err != nil {
		t.Fatalf("second RLock: %v", err)
	}
	defer r2.Close()

	_, err = locker.Lock(path, 10*time.Millisecond)
	if !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("Lock under readers: err=%v, want %v", err, ErrWouldBlock)
	}
}

func Test_Locker_RLock_Waits_For_Short_Writer(t *testing.T) {
	t.Parallel()

	locker := NewLocker(NewReal())
	path := filepath.Join(t.TempDir(), "a.lock")

	writer, err := locker.Lock(path, time.Second)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = writer.Close()
	}()

	reader, err := locker.RLock(path, 2*time.Second)
	if err != nil {
		t.Fatalf("RLock should succeed once writer releases: %v", err)
	}

	_ = reader.Close()
}

func Test_Locker_Creates_Missing_Parent_Directories(t *testing.T) {
	t.Parallel()

	locker := NewLocker(NewReal())
	path := filepath.Join(t.TempDir(), ".locks", "tickets", "x.lock")

	lk, err := locker.Lock(path, time.Second)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer lk.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("lock file not created: %v", err)
	}
}

func Test_Lock_Close_Is_Idempotent(t *testing.T) {
	t.Parallel()

	locker := NewLocker(NewReal())
	path := filepath.Join(t.TempDir(), "a.lock")

	lk, err := locker.Lock(path, time.Second)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	if err := lk.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}

	if err := lk.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func Test_Locker_Lock_Serializes_Critical_Sections(t *testing.T) {
	t.Parallel()

	locker := NewLocker(NewReal())
	path := filepath.Join(t.TempDir(), "a.lock")

	var (
		inside  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			lk, err := locker.Lock(path, 5*time.Second)
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}

			if inside.Add(1) > 1 {
				overlap.Store(true)
			}

			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)

			_ = lk.Close()
		}()
	}

	wg.Wait()

	if overlap.Load() {
		t.Fatal("two holders were inside the critical section at once")
	}
}
