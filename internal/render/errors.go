package render

import "fmt"

// FillError reports a binding that could not be resolved while filling.
// Row is the 1-based record number, 0 when the binding is not tied to a record.
// Err is nil when the binding is simply absent.
type FillError struct {
	Binding string
	Row     int
	Err     error
}

func (e *FillError) Error() string {
	switch {
	case e.Err == nil && e.Row > 0:
		return fmt.Sprintf("missing binding %q at row %d", e.Binding, e.Row)
	case e.Err == nil:
		return fmt.Sprintf("missing binding %q", e.Binding)
	case e.Row > 0:
		return fmt.Sprintf("cannot evaluate %q at row %d: %v", e.Binding, e.Row, e.Err)
	default:
		return fmt.Sprintf("cannot evaluate %q: %v", e.Binding, e.Err)
	}
}

func (e *FillError) Unwrap() error {
	return e.Err
}
