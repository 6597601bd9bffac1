package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// Kind classifies adapter failures. Only DataExtractionFailure is fatal to a
// target; every other kind is retried.
type Kind int

const (
	GenericFailure Kind = iota
	SearchFailure
	PaginationFailure
	ElementMissing
	DataExtractionFailure
)

// String returns the snake_case kind name.
func (k Kind) String() string {
	switch k {
	case SearchFailure:
		return "search_failure"
	case PaginationFailure:
		return "pagination_failure"
	case ElementMissing:
		return "element_missing"
	case DataExtractionFailure:
		return "data_extraction_failure"
	default:
		return "generic_failure"
	}
}

// Error is a classified adapter failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap classifies err with kind. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: eris.Errorf(format, args...)}
}

// Missing reports that an expected element was absent from a page.
func Missing(op, element string) error {
	return &Error{Kind: ElementMissing, Op: op, Err: eris.Errorf("element %q not found", element)}
}

// KindOf returns the kind of the first *Error in err's chain, or
// GenericFailure when the chain carries no classification.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return GenericFailure
}

// Retryable reports whether a target should be attempted again after err.
func Retryable(err error) bool {
	return err != nil && KindOf(err) != DataExtractionFailure
}

// classify keeps an existing classification and otherwise applies the kind
// of the phase that produced err. Context expiry is always generic so a
// deadline hit during extraction is still retried.
func classify(phase Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Wrap(GenericFailure, op, err)
	}
	return Wrap(phase, op, err)
}
