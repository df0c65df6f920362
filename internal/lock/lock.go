// Package lock provides the cross-process append lock for the event log.
//
// The lock is an advisory flock on a sidecar file next to the log
// ("events.jsonl.lock"). Acquisition is retried with exponential backoff.
// When retries are exhausted the lock is presumed stale: the sidecar file is
// removed, a fresh one is locked, and the caller proceeds. This trades strict
// mutual exclusion under a hung writer for liveness; every force-clear is
// logged at warn level and counted.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gofrs/flock"
)

// Suffix is appended to the log path to form the lock path.
const Suffix = ".lock"

// Options tunes acquisition.
type Options struct {
	// MaxTries bounds TryLock attempts before the lock is force-cleared.
	MaxTries uint

	// InitialDelay is the first backoff interval.
	InitialDelay time.Duration

	// MaxDelay caps the backoff interval.
	MaxDelay time.Duration

	Logger *slog.Logger
}

// DefaultOptions returns 20 tries from 10ms to 500ms.
func DefaultOptions() Options {
	return Options{
		MaxTries:     20,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
	}
}

var errBusy = errors.New("lock held by another process")

// FileLock serializes appends across processes.
//
// Thread-safety: Acquire and Release may be called from multiple goroutines;
// an in-process mutex is held between them, so goroutines of one process
// also exclude each other.
type FileLock struct {
	path   string
	opts   Options
	logger *slog.Logger

	mu   sync.Mutex // held from Acquire to Release
	held *flock.Flock

	forceClears atomic.Int64
}

// New creates a lock for the log at logPath. The sidecar file is created
// lazily on first Acquire.
func New(logPath string, opts Options) *FileLock {
	def := DefaultOptions()
	if opts.MaxTries == 0 {
		opts.MaxTries = def.MaxTries
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = def.InitialDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = def.MaxDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FileLock{
		path:   logPath + Suffix,
		opts:   opts,
		logger: logger.With("component", "lock"),
	}
}

// Path returns the sidecar lock file path.
func (l *FileLock) Path() string { return l.path }

// ForceClears returns how many times a stale lock was overridden.
func (l *FileLock) ForceClears() int64 { return l.forceClears.Load() }

// Acquire blocks until the lock is held, the lock is force-cleared, or ctx
// is done. On success the caller must call Release.
func (l *FileLock) Acquire(ctx context.Context) error {
	l.mu.Lock()

	fl := flock.New(l.path)
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.opts.InitialDelay
	b.MaxInterval = l.opts.MaxDelay

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		ok, err := fl.TryLock()
		if err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("try lock %s: %w", l.path, err))
		}
		if !ok {
			return struct{}{}, errBusy
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(l.opts.MaxTries),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		l.held = fl
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		l.mu.Unlock()
		return ctxErr
	}
	if !errors.Is(err, errBusy) {
		l.mu.Unlock()
		return err
	}

	fresh, err := l.forceClear()
	if err != nil {
		l.mu.Unlock()
		return err
	}
	l.held = fresh
	return nil
}

// forceClear removes a presumed-stale lock file and locks a fresh one.
func (l *FileLock) forceClear() (*flock.Flock, error) {
	l.forceClears.Add(1)
	l.logger.Warn("lock acquisition exhausted retries; force-clearing stale lock",
		"path", l.path,
		"tries", l.opts.MaxTries)

	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale lock %s: %w", l.path, err)
	}
	fl := flock.New(l.path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock fresh %s: %w", l.path, err)
	}
	if !ok {
		// Another process cleared and relocked in the same window.
		l.logger.Warn("fresh lock already held after force-clear; proceeding", "path", l.path)
	}
	return fl, nil
}

// Release drops the lock. Calling it without a matching Acquire is a no-op.
func (l *FileLock) Release() error {
	if l.held == nil {
		return nil
	}
	fl := l.held
	l.held = nil
	err := fl.Unlock()
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("unlock %s: %w", l.path, err)
	}
	return nil
}
