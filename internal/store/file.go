package store

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/roach88/hivelog/internal/event"
	"github.com/roach88/hivelog/internal/lock"
	"github.com/roach88/hivelog/internal/payload"
)

const (
	// DefaultRotationSize is the active file size that triggers rotation.
	DefaultRotationSize int64 = 10 * 1024 * 1024

	// DefaultCacheEntries bounds the in-memory cache.
	DefaultCacheEntries = 100_000

	dateLayout = "2006-01-02"
)

// Options configures a FileStore. Only Path is required.
type Options struct {
	// Path is the active log file. Parent directories are created.
	Path string

	// RotationSize in bytes. Zero uses DefaultRotationSize; negative
	// disables size rotation.
	RotationSize int64

	// RotateDaily rotates when the UTC calendar date of the clock differs
	// from the date of the last write to the active file. Appends set the
	// file's modification time from Clock, so every process reads the same
	// date back from the file.
	RotateDaily bool

	// CacheEntries bounds the cache. Zero uses DefaultCacheEntries.
	CacheEntries int

	Lock lock.Options

	// Clock drives rotation decisions and archive names. Nil uses time.Now.
	Clock event.Clock

	Logger *slog.Logger
	Meter  metric.Meter
}

// FileStore is an append-only JSONL event log.
//
// Thread-safety: all methods are safe for concurrent use. Appends from
// separate processes on the same Path are serialized by the file lock.
type FileStore struct {
	opts   Options
	lock   *lock.FileLock
	logger *slog.Logger

	mu     sync.Mutex
	closed bool

	// active file state
	info      os.FileInfo
	cache     []event.Event
	offset    int   // events in the active file, including evicted ones
	bytesRead int64 // bytes of the active file consumed into the cache
	fileDate  string
	lastSeq   int64
	skipped   int

	rotations metric.Int64Counter
	malformed metric.Int64Counter
}

// OpenFile opens or creates the log at opts.Path and loads it.
func OpenFile(ctx context.Context, opts Options) (*FileStore, error) {
	if opts.Path == "" {
		return nil, &Error{Code: CodeIO, Op: "open", Err: errors.New("empty path")}
	}
	if opts.RotationSize == 0 {
		opts.RotationSize = DefaultRotationSize
	}
	if opts.CacheEntries <= 0 {
		opts.CacheEntries = DefaultCacheEntries
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "path", opts.Path)
	opts.Lock.Logger = logger

	meter := opts.Meter
	if meter == nil {
		meter = otel.Meter("github.com/roach88/hivelog/internal/store")
	}

	s := &FileStore{
		opts:   opts,
		lock:   lock.New(opts.Path, opts.Lock),
		logger: logger,
	}

	var err error
	if s.rotations, err = meter.Int64Counter("hivelog.store.rotations",
		metric.WithDescription("Number of log rotations performed")); err != nil {
		return nil, fmt.Errorf("create rotations counter: %w", err)
	}
	if s.malformed, err = meter.Int64Counter("hivelog.store.malformed_lines",
		metric.WithDescription("Number of unparseable log lines skipped")); err != nil {
		return nil, fmt.Errorf("create malformed counter: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, ioError("open", opts.Path, err)
	}
	f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, ioError("open", opts.Path, err)
	}
	f.Close()

	if err := s.catchUp(ctx, false); err != nil {
		return nil, err
	}
	if s.lastSeq == 0 {
		if err := s.seedSeqFromArchives(); err != nil {
			return nil, err
		}
	}
	if s.skipped > 0 {
		s.logger.Warn("skipped malformed lines while loading log", "count", s.skipped)
	}
	return s, nil
}

// Path returns the active log path.
func (s *FileStore) Path() string { return s.opts.Path }

// Append persists e under the cross-process lock and returns it with Seq set.
func (s *FileStore) Append(ctx context.Context, e event.Event) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return event.Event{}, closedError("append")
	}

	if err := s.lock.Acquire(ctx); err != nil {
		return event.Event{}, &Error{Code: CodeLock, Op: "append", Path: s.lock.Path(), Err: err}
	}
	defer func() {
		if err := s.lock.Release(); err != nil {
			s.logger.Error("release lock", "error", err)
		}
	}()

	if err := s.catchUp(ctx, true); err != nil {
		return event.Event{}, err
	}
	now := s.opts.Clock()
	if s.shouldRotate(now) {
		if _, err := s.rotate(ctx, now); err != nil {
			return event.Event{}, err
		}
	}

	e.Seq = s.lastSeq + 1
	line, err := event.Serialize(e)
	if err != nil {
		return event.Event{}, &Error{Code: CodeEncode, Op: "append", Err: err}
	}
	// Cache and return the event as the line decodes, so this process sees
	// the same strings a replay will.
	stored, ok := event.Deserialize(line)
	if !ok {
		return event.Event{}, &Error{Code: CodeEncode, Op: "append", Err: fmt.Errorf("event %s: line does not decode", e.ID)}
	}
	n, err := appendLine(s.opts.Path, line)
	if err != nil {
		return event.Event{}, ioError("append", s.opts.Path, err)
	}

	if err := os.Chtimes(s.opts.Path, now, now); err != nil {
		s.logger.Warn("set log modification time", "error", err)
	}

	s.lastSeq = stored.Seq
	s.bytesRead += int64(n)
	s.fileDate = now.UTC().Format(dateLayout)
	s.push(stored)
	return stored, nil
}

// appendLine writes line plus a newline with O_APPEND and fsyncs.
func appendLine(path string, line []byte) (int, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	n, err := f.Write(buf)
	if err != nil {
		f.Close()
		return n, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return n, err
	}
	return n, f.Close()
}

func (s *FileStore) push(e event.Event) {
	s.cache = append(s.cache, e)
	s.offset++
	if over := len(s.cache) - s.opts.CacheEntries; over > 0 {
		s.cache = s.cache[over:]
	}
}

// resetActive forgets the active file state. lastSeq is kept.
func (s *FileStore) resetActive() {
	s.cache = nil
	s.offset = 0
	s.bytesRead = 0
	s.fileDate = ""
	s.info = nil
}

// catchUp reads lines appended to the active file since the last read.
//
// If the file was replaced (rotated or removed by another process) the
// active state is reset first. With seal set, which requires holding the
// lock, a trailing partial line is treated as a crashed write: it is skipped
// and terminated with a newline.
func (s *FileStore) catchUp(ctx context.Context, seal bool) error {
	fi, err := os.Stat(s.opts.Path)
	if errors.Is(err, os.ErrNotExist) {
		s.resetActive()
		return nil
	}
	if err != nil {
		return ioError("stat", s.opts.Path, err)
	}
	replaced := s.info != nil && (!os.SameFile(s.info, fi) || fi.Size() < s.bytesRead)
	if replaced {
		s.logger.Debug("active log replaced by another writer; reloading")
		s.resetActive()
		// Events rotated away before we saw them still advanced Seq.
		if err := s.seedSeqFromArchives(); err != nil {
			return err
		}
	}
	s.info = fi
	if fi.Size() > 0 {
		s.fileDate = fi.ModTime().UTC().Format(dateLayout)
	}
	if fi.Size() == s.bytesRead {
		return nil
	}

	f, err := os.Open(s.opts.Path)
	if err != nil {
		return ioError("read", s.opts.Path, err)
	}
	defer f.Close()
	if _, err := f.Seek(s.bytesRead, io.SeekStart); err != nil {
		return ioError("read", s.opts.Path, err)
	}

	r := bufio.NewReaderSize(f, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			if len(line) > 0 && seal {
				s.skip(ctx, line)
				if _, werr := appendLine(s.opts.Path, nil); werr != nil {
					return ioError("seal", s.opts.Path, werr)
				}
				s.bytesRead += int64(len(line)) + 1
			}
			break
		}
		if err != nil {
			return ioError("read", s.opts.Path, err)
		}
		s.bytesRead += int64(len(line))
		s.load(ctx, line)
	}

	if fi, err := os.Stat(s.opts.Path); err == nil {
		s.info = fi
	}
	return nil
}

func (s *FileStore) load(ctx context.Context, line []byte) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	e, ok := event.Deserialize(line)
	if !ok {
		s.skip(ctx, line)
		return
	}
	// Lines written before sequence numbers existed get an in-memory one.
	if e.Seq == 0 {
		e.Seq = s.lastSeq + 1
	}
	s.lastSeq = max(s.lastSeq, e.Seq)
	s.push(e)
}

func (s *FileStore) skip(ctx context.Context, line []byte) {
	s.skipped++
	s.malformed.Add(ctx, 1)
	s.logger.Debug("skipping malformed line", "bytes", len(line))
}

// Skipped returns how many unparseable lines have been skipped.
func (s *FileStore) Skipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// ReadStream returns the cached events of streamID at or after fromOffset.
func (s *FileStore) ReadStream(ctx context.Context, streamID string, fromOffset int) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, closedError("read stream")
	}
	streamID = payload.NFC(streamID)
	first := s.offset - len(s.cache)
	start := max(fromOffset-first, 0)
	out := []event.Event{}
	for _, e := range s.cache[min(start, len(s.cache)):] {
		if e.StreamID == streamID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Query returns the cached events matching f in append order.
func (s *FileStore) Query(ctx context.Context, f event.Filter) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, closedError("query")
	}
	return event.Apply(s.cache, f.Normalize()), nil
}

// Refresh catches up on lines appended by other processes without writing.
// Reads of a trailing partial line are deferred until it is complete.
func (s *FileStore) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return closedError("refresh")
	}
	return s.catchUp(ctx, false)
}

// Offset returns the number of events in the active file.
func (s *FileStore) Offset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// LastSeq returns the highest sequence number seen.
func (s *FileStore) LastSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

// ForceClears returns how many stale locks this store has overridden.
func (s *FileStore) ForceClears() int64 {
	return s.lock.ForceClears()
}

// Close marks the store closed. Subsequent calls return ErrClosed.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cache = nil
	return nil
}
