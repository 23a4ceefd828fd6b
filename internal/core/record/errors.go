package record

import (
	"errors"
	"fmt"
)

// ErrLineTooLong marks a line longer than the scanner's MaxLineSize.
var ErrLineTooLong = errors.New("line exceeds maximum record size")

// MalformedRecordError reports one input line that could not be turned into
// an extraction record. Line is 1-based; DocumentID is empty when the line
// could not be decoded far enough to know it.
type MalformedRecordError struct {
	Line       int
	DocumentID string
	Err        error
}

func (e *MalformedRecordError) Error() string {
	if e.DocumentID != "" {
		return fmt.Sprintf("malformed record at line %d (document %q): %v", e.Line, e.DocumentID, e.Err)
	}
	return fmt.Sprintf("malformed record at line %d: %v", e.Line, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}
