package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/roach88/hivelog/internal/event"
)

// archiveLayout names archives by UTC rotation time with milliseconds.
const archiveLayout = "20060102T150405.000Z"

func (s *FileStore) shouldRotate(now time.Time) bool {
	if s.offset == 0 && s.bytesRead == 0 {
		return false
	}
	if s.opts.RotationSize > 0 && s.bytesRead >= s.opts.RotationSize {
		return true
	}
	return s.opts.RotateDaily && s.fileDate != "" && now.UTC().Format(dateLayout) != s.fileDate
}

// archiveParts splits the active path into directory, base name and extension.
func (s *FileStore) archiveParts() (dir, base, ext string) {
	dir = filepath.Dir(s.opts.Path)
	name := filepath.Base(s.opts.Path)
	ext = filepath.Ext(name)
	base = strings.TrimSuffix(name, ext)
	return dir, base, ext
}

// rotate renames the active file to a timestamped archive and creates a
// fresh empty one. The caller holds the lock.
func (s *FileStore) rotate(ctx context.Context, now time.Time) (string, error) {
	dir, base, ext := s.archiveParts()
	stamp := now.UTC().Format(archiveLayout)
	archive := filepath.Join(dir, fmt.Sprintf("%s_%s%s", base, stamp, ext))
	for i := 1; ; i++ {
		if _, err := os.Stat(archive); errors.Is(err, os.ErrNotExist) {
			break
		}
		archive = filepath.Join(dir, fmt.Sprintf("%s_%s_%d%s", base, stamp, i, ext))
	}

	if err := os.Rename(s.opts.Path, archive); err != nil {
		return "", ioError("rotate", s.opts.Path, err)
	}
	f, err := os.OpenFile(s.opts.Path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", ioError("rotate", s.opts.Path, err)
	}
	f.Close()

	archived := s.offset
	s.resetActive()
	if fi, err := os.Stat(s.opts.Path); err == nil {
		s.info = fi
	}
	s.rotations.Add(ctx, 1)
	s.logger.Info("rotated event log", "archive", archive, "events", archived, "last_seq", s.lastSeq)
	return archive, nil
}

// Rotate forces a rotation and returns the archive path. An empty active
// file is left in place and "" is returned.
func (s *FileStore) Rotate(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", closedError("rotate")
	}
	if err := s.lock.Acquire(ctx); err != nil {
		return "", &Error{Code: CodeLock, Op: "rotate", Path: s.lock.Path(), Err: err}
	}
	defer func() {
		if err := s.lock.Release(); err != nil {
			s.logger.Error("release lock", "error", err)
		}
	}()

	if err := s.catchUp(ctx, true); err != nil {
		return "", err
	}
	if s.bytesRead == 0 {
		return "", nil
	}
	return s.rotate(ctx, s.opts.Clock())
}

// Archives lists archive files of this log, oldest first.
func (s *FileStore) Archives() ([]string, error) {
	return listArchives(s.archiveParts())
}

func listArchives(dir, base, ext string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, base+"_*"+ext))
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	out := matches[:0]
	for _, m := range matches {
		stamp := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), base+"_"), ext)
		if len(stamp) < len(archiveLayout) {
			continue
		}
		if _, err := time.Parse(archiveLayout, stamp[:len(archiveLayout)]); err != nil {
			continue
		}
		out = append(out, m)
	}
	slices.Sort(out)
	return out, nil
}

// seedSeqFromArchives raises lastSeq to the highest Seq in the newest archive.
func (s *FileStore) seedSeqFromArchives() error {
	archives, err := s.Archives()
	if err != nil {
		return ioError("seed seq", s.opts.Path, err)
	}
	for i := len(archives) - 1; i >= 0; i-- {
		var last int64
		err := scanFile(archives[i], func(e event.Event) bool {
			last = max(last, e.Seq)
			return true
		})
		if err != nil {
			return ioError("seed seq", archives[i], err)
		}
		if last > 0 {
			s.lastSeq = max(s.lastSeq, last)
			return nil
		}
	}
	return nil
}

// readAllAttempts bounds lock-free ReadAll passes before it falls back to
// reading under the append lock.
const readAllAttempts = 5

// ReadAll reads every archive and the active file from disk, oldest first.
// Unlike Query it is not limited by the cache bound.
//
// A pass is only accepted if the archive list is unchanged after reading the
// active file; otherwise a rotation may have moved events out from under it.
func (s *FileStore) ReadAll(ctx context.Context) ([]event.Event, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, closedError("read all")
	}

	for attempt := 1; attempt <= readAllAttempts; attempt++ {
		out, stable, err := s.readAllPass(ctx)
		if err != nil || stable {
			return out, err
		}
		s.logger.Debug("log rotated during read; retrying", "attempt", attempt)
	}

	if err := s.lock.Acquire(ctx); err != nil {
		return nil, &Error{Code: CodeLock, Op: "read all", Path: s.lock.Path(), Err: err}
	}
	defer func() {
		if err := s.lock.Release(); err != nil {
			s.logger.Error("release lock", "error", err)
		}
	}()
	out, _, err := s.readAllPass(ctx)
	return out, err
}

func (s *FileStore) readAllPass(ctx context.Context) ([]event.Event, bool, error) {
	archives, err := s.Archives()
	if err != nil {
		return nil, false, ioError("read all", s.opts.Path, err)
	}
	files := append(slices.Clone(archives), s.opts.Path)

	out := []event.Event{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		err := scanFile(path, func(e event.Event) bool {
			out = append(out, e)
			return true
		})
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, false, ioError("read all", path, err)
		}
	}

	after, err := s.Archives()
	if err != nil {
		return nil, false, ioError("read all", s.opts.Path, err)
	}
	return out, slices.Equal(archives, after), nil
}

// scanFile calls fn for every parseable line of path. Malformed lines,
// including a partial trailing line, are skipped.
func scanFile(path string, fn func(event.Event) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			if e, ok := event.Deserialize(line); ok {
				if !fn(e) {
					return nil
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
