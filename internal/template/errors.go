package template

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// CompileError describes a malformed layout. Line and Column are 1-based and
// zero when the problem has no source position.
type CompileError struct {
	Template string
	Line     int
	Column   int
	Message  string
}

func (e *CompileError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("template %q error at line %d, column %d: %s", e.Template, e.Line, e.Column, e.Message)
	} else if e.Line > 0 {
		return fmt.Sprintf("template %q error at line %d: %s", e.Template, e.Line, e.Message)
	}
	return fmt.Sprintf("template %q error: %s", e.Template, e.Message)
}

func newCompileError(name string, rng *hcl.Range, format string, args ...interface{}) *CompileError {
	err := &CompileError{
		Template: name,
		Message:  fmt.Sprintf(format, args...),
	}
	if rng != nil {
		err.Line = rng.Start.Line
		err.Column = rng.Start.Column
	}
	return err
}

// diagnosticsError converts the first error diagnostic into a CompileError.
func diagnosticsError(name string, diags hcl.Diagnostics) *CompileError {
	for _, diag := range diags {
		if diag.Severity != hcl.DiagError {
			continue
		}
		msg := diag.Summary
		if diag.Detail != "" {
			msg += ": " + diag.Detail
		}
		return newCompileError(name, diag.Subject, "%s", msg)
	}
	return newCompileError(name, nil, "%s", diags.Error())
}
