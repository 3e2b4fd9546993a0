package cleaning

import (
	"errors"
	"strings"
)

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrEmptyResponse indicates the model answered without any choice to read.
var ErrEmptyResponse = errors.New("ai returned no choices")

// Kind classifies pipeline failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindAnalysis
	KindCleaning
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindAnalysis:
		return "analysis"
	case KindCleaning:
		return "cleaning"
	case KindResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Error carries the failing stage next to its cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + " failure"
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with kind. A nil err stays nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Describe renders err as the text returned to tool callers.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "Error: " + err.Error()
	}
	cause := "unknown error"
	if e.Err != nil {
		cause = e.Err.Error()
	}
	switch e.Kind {
	case KindAnalysis:
		return "Error during analysis: " + FailedAnalysis(e.Err).Error
	case KindCleaning:
		return "Error during code cleaning: " + cause
	case KindResource:
		return "Error loading code: " + cause
	default:
		return "Error: " + cause
	}
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
