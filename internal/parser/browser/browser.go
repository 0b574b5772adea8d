// Package browser loads JS-rendered pages in a real Chrome instance.
package browser

import (
	"context"
	"errors"
	"fmt"
)

// Browser is one long-lived page used to load and re-read a single source.
type Browser interface {
	// Fetch navigates to url and returns the rendered markup. When
	// waitSelector is set the call waits for it to appear first.
	Fetch(ctx context.Context, url, waitSelector string) (string, error)
	// RefreshInPlace reloads the current page and returns the new markup.
	RefreshInPlace(ctx context.Context) (string, error)
	IsAlive(ctx context.Context) bool
	Restart(ctx context.Context) error
	Close() error
}

// ErrAcquisition matches any *AcquisitionError.
var ErrAcquisition = errors.New("page acquisition failed")

// AcquisitionError is a transient failure to obtain markup.
type AcquisitionError struct {
	Op      string
	URL     string
	Timeout bool
	Err     error
}

func (e *AcquisitionError) Error() string {
	msg := "browser " + e.Op
	if e.URL != "" {
		msg += " " + e.URL
	}
	if e.Timeout {
		msg += " timed out"
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

func (e *AcquisitionError) Is(target error) bool { return target == ErrAcquisition }

// Wrap turns err into an *AcquisitionError for op. A nil err stays nil.
func Wrap(op, url string, err error) error {
	if err == nil {
		return nil
	}
	var ae *AcquisitionError
	if errors.As(err, &ae) {
		return err
	}
	return &AcquisitionError{
		Op:      op,
		URL:     url,
		Timeout: errors.Is(err, context.DeadlineExceeded),
		Err:     err,
	}
}
