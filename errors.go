package nscache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig matches every *ConfigError via errors.Is.
	ErrInvalidConfig = errors.New("nscache: invalid configuration")
	// ErrUnknownAdapter is returned by Factory.Make for adapter names that are
	// not configured. It is a caller mistake, not a configuration error.
	ErrUnknownAdapter = errors.New("nscache: unknown adapter")
)

// ConfigError is a fatal construction-time error: bad options, a bad factory
// config, or a namespace directory that cannot be prepared.
type ConfigError struct {
	Op    string // e.g. "new", "enable", "set config", "make"
	Field string // offending option or adapter, may be empty
	Err   error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("nscache: %s: %s: %v", e.Op, e.Field, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("nscache: %s: %v", e.Op, e.Err)
	case e.Field != "":
		return fmt.Sprintf("nscache: %s: invalid %s", e.Op, e.Field)
	default:
		return fmt.Sprintf("nscache: %s: invalid configuration", e.Op)
	}
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

func configErr(op, field string, err error) *ConfigError {
	return &ConfigError{Op: op, Field: field, Err: err}
}

func configErrf(op, field, format string, args ...any) *ConfigError {
	return &ConfigError{Op: op, Field: field, Err: fmt.Errorf(format, args...)}
}

// OpError describes an operational fault (encode, write, stat, delete...).
// Caches never return it from Set/Get/Remove/Clear*; it is what hooks and
// logs receive.
type OpError struct {
	Op        string
	Namespace string
	Key       string
	Err       error
}

func (e *OpError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("nscache: %s %q: %v", e.Op, e.Namespace, e.Err)
	}
	return fmt.Sprintf("nscache: %s %q/%q: %v", e.Op, e.Namespace, e.Key, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
