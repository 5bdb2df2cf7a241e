package editor

import (
	"errors"
	"fmt"
)

var (
	// ErrIO wraps filesystem failures: missing files, permission errors, failed renames.
	ErrIO = errors.New("io error")

	// ErrParse is returned when a file cannot be parsed in its format.
	ErrParse = errors.New("parse error")

	// ErrSerialization is returned when a value cannot be represented in the file's format.
	ErrSerialization = errors.New("serialization error")

	// ErrKeyNotFound is returned when a key or one of its parents does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrFormatMismatch is returned when a path has no recognized format.
	ErrFormatMismatch = errors.New("format mismatch: expected format differs from file")

	// ErrTypeMismatch is returned when a stored value cannot be converted to the requested type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidPath is returned for malformed keys, keys that descend through
	// a scalar, and keys whose source is not a file.
	ErrInvalidPath = errors.New("invalid path")
)

// TypeMismatchError describes a failed conversion. It matches ErrTypeMismatch with errors.Is.
type TypeMismatchError struct {
	Key      string
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch for %q: expected %s, got %s", e.Key, e.Expected, e.Actual)
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}
