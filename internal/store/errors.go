package store

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("store: closed")

// ErrorCode categorizes storage failures.
type ErrorCode string

const (
	// CodeIO indicates a read, write, rename or fsync failure.
	CodeIO ErrorCode = "IO"

	// CodeLock indicates the append lock could not be taken (context done
	// or the lock file could not be created).
	CodeLock ErrorCode = "LOCK"

	// CodeClosed indicates use after Close.
	CodeClosed ErrorCode = "CLOSED"

	// CodeEncode indicates an event that cannot be serialized.
	CodeEncode ErrorCode = "ENCODE"
)

// Error is a storage failure with enough context to diagnose it.
type Error struct {
	Code ErrorCode
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("store %s %s (%s): %v", e.Op, e.Path, e.Code, e.Err)
	}
	return fmt.Sprintf("store %s (%s): %v", e.Op, e.Code, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// IsIOError reports whether err is a storage I/O failure.
// Uses errors.As to handle wrapped errors.
func IsIOError(err error) bool {
	return hasCode(err, CodeIO)
}

// IsLockError reports whether err is a lock acquisition failure.
func IsLockError(err error) bool {
	return hasCode(err, CodeLock)
}

// IsEncodeError reports whether err is an event serialization failure.
func IsEncodeError(err error) bool {
	return hasCode(err, CodeEncode)
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

func ioError(op, path string, err error) *Error {
	return &Error{Code: CodeIO, Op: op, Path: path, Err: err}
}

func closedError(op string) *Error {
	return &Error{Code: CodeClosed, Op: op, Err: ErrClosed}
}
