package hardrock

import (
	"errors"
	"fmt"
)

// ErrParse matches any *ParseError.
var ErrParse = errors.New("parse error")

// ParseError means the page as a whole could not be read as a document.
// Per-container problems never produce one.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse HTML content: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }
