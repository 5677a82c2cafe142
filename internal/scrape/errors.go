package scrape

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies why a company could not be scraped.
type Kind string

const (
	KindNavigationFailed Kind = "navigation_failed"
	KindNoRowsFound      Kind = "no_rows_found"
	KindUnparsableDate   Kind = "unparsable_date"
	KindNetworkError     Kind = "network_error"
	KindCancelled        Kind = "cancelled"
)

// Kinds lists every kind in report order.
func Kinds() []Kind {
	return []Kind{KindNavigationFailed, KindNoRowsFound, KindUnparsableDate, KindNetworkError, KindCancelled}
}

// Error is the typed failure of one company's scrape.
type Error struct {
	Kind      Kind
	CompanyID string
	Err       error
}

// NewError builds an Error.
func NewError(kind Kind, companyID string, err error) *Error {
	return &Error{Kind: kind, CompanyID: companyID, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("scrape %s: %s", e.CompanyID, e.Kind)
	}
	return fmt.Sprintf("scrape %s: %s: %v", e.CompanyID, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf classifies err. Context errors are Cancelled; untyped errors are
// treated as network failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindNetworkError
}

// AsError returns err as an *Error for companyID, classifying it if needed.
func AsError(companyID string, err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		if se.CompanyID == "" {
			se.CompanyID = companyID
		}
		return se
	}
	return NewError(KindOf(err), companyID, err)
}
