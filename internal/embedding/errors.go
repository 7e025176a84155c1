package embedding

import (
	"errors"
	"fmt"
)

// ErrFileNotFound is returned when the embedding file does not exist.
var ErrFileNotFound = errors.New("embedding file not found")

// ParseError reports a failure to read the embedding file itself.
// Malformed rows are not ParseErrors; they are skipped and recorded as
// Diagnostics.
type ParseError struct {
	Path string
	Line int // 0 when the failure is not tied to a line
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("reading %s at line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("reading %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
