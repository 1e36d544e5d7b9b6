package export

import (
	"errors"
	"fmt"
)

// ErrorKind classifies export failures.
type ErrorKind int

const (
	UnsupportedFormat ErrorKind = iota + 1
	SerializationFailed
)

func (k ErrorKind) String() string {
	switch k {
	case UnsupportedFormat:
		return "unsupported format"
	case SerializationFailed:
		return "serialization failed"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against *Error values of the same kind.
var (
	ErrUnsupportedFormat   = errors.New("unsupported format")
	ErrSerializationFailed = errors.New("serialization failed")
)

// Error is returned by every export operation.
type Error struct {
	Kind   ErrorKind
	Format Format
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("export %q: %s: %v", e.Format, e.Kind, e.Cause)
	}
	return fmt.Sprintf("export %q: %s", e.Format, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnsupportedFormat:
		return e.Kind == UnsupportedFormat
	case ErrSerializationFailed:
		return e.Kind == SerializationFailed
	default:
		return false
	}
}
