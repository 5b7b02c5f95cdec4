// Package diag defines the structured diagnostics and error taxonomy shared by
// every stage of the ABC parsing pipeline. The core packages never log; they
// collect Diagnostic records and hand them back to the caller, so resolution
// runs stay independent and testable in isolation.
package diag

import "fmt"

// Code identifies a diagnostic class.
type Code string

const (
	// MalformedSource: the lexer could not match any pattern at a position.
	MalformedSource Code = "malformed_source"
	// InvalidField: a metadata payload violates its tag's grammar.
	InvalidField Code = "invalid_field"
	// UndefinedSymbol: a redefinable symbol with no user or default definition.
	UndefinedSymbol Code = "undefined_symbol"
	// InvalidTuplet: a tuplet with a leading digit outside 1-9.
	InvalidTuplet Code = "invalid_tuplet"
	// MissingContext: a general note resolved before any default duration was
	// ever established. Fatal for the voice being resolved.
	MissingContext Code = "missing_context"
)

// Severity of a diagnostic record.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is one structured record emitted by the lexer, splitter or
// resolver. Offset is a byte offset into the source handed to the pipeline
// call that produced the record; -1 when no position applies.
type Diagnostic struct {
	Code     Code     `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Offset   int      `json:"offset"`
	Fragment string   `json:"fragment,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Offset >= 0 {
		return fmt.Sprintf("%s [%s] at offset %d: %s", d.Severity, d.Code, d.Offset, d.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", d.Severity, d.Code, d.Message)
}

// Warningf builds a warning-severity diagnostic.
func Warningf(code Code, offset int, fragment, format string, args ...any) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf(format, args...),
		Offset:   offset,
		Fragment: fragment,
	}
}

// Errorf builds an error-severity diagnostic.
func Errorf(code Code, offset int, fragment, format string, args ...any) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: SeverityError,
		Message:  fmt.Sprintf(format, args...),
		Offset:   offset,
		Fragment: fragment,
	}
}

// Error is the typed error returned for failures that abort a pipeline stage
// (strict-mode lexing, MissingContext, reference-number extraction misses).
type Error struct {
	Code    Code
	Offset  int
	Message string
}

func (e *Error) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset %d: %s", e.Code, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an aborting pipeline error.
func NewError(code Code, offset int, format string, args ...any) *Error {
	return &Error{Code: code, Offset: offset, Message: fmt.Sprintf(format, args...)}
}

// Collector accumulates diagnostics during one pipeline call. The zero value
// is ready to use.
type Collector struct {
	records []Diagnostic
}

// Add appends a record.
func (c *Collector) Add(d Diagnostic) {
	c.records = append(c.records, d)
}

// Merge appends every record from another collector's output.
func (c *Collector) Merge(records []Diagnostic) {
	c.records = append(c.records, records...)
}

// Records returns the collected diagnostics in emission order.
func (c *Collector) Records() []Diagnostic {
	return c.records
}

// HasErrors reports whether any collected record is error severity.
func (c *Collector) HasErrors() bool {
	for _, d := range c.records {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
