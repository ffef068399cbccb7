package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrPrecondition   = errors.New("precondition failed")
	ErrConfiguration  = errors.New("configuration error")
	ErrStepFailed     = errors.New("pipeline step failed")
	ErrRollbackFailed = errors.New("pipeline rollback failed")
	ErrTransient      = errors.New("transient failure")
)

// ErrorKind classifies a wrapped error by the marker it carries.
type ErrorKind string

const (
	KindNone           ErrorKind = ""
	KindNotFound       ErrorKind = "not_found"
	KindPrecondition   ErrorKind = "precondition"
	KindConfiguration  ErrorKind = "configuration"
	KindStepFailed     ErrorKind = "step_failed"
	KindRollbackFailed ErrorKind = "rollback_failed"
	KindTransient      ErrorKind = "transient"
)

// Error is the structured error produced by Wrap. It keeps the marker, the
// component/operation that failed and a human-readable message separate so
// callers can surface the message without the plumbing.
type Error struct {
	Marker    error
	Component string
	Operation string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Component, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Marker, detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Marker, detail)
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Cause}
}

// Wrap builds an error that includes component context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &Error{
		Marker:    marker,
		Component: strings.TrimSpace(component),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// ErrorDetails is the flattened view of a wrapped error used for logging and
// for building pipeline results.
type ErrorDetails struct {
	Kind      ErrorKind
	Component string
	Operation string
	Message   string
	Cause     error
}

// Details extracts structured information from err. Errors that were not
// produced by Wrap report their marker kind (if any) and their text as the
// message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: KindOf(err)}
	var wrapped *Error
	if errors.As(err, &wrapped) {
		details.Component = wrapped.Component
		details.Operation = wrapped.Operation
		details.Message = wrapped.Message
		details.Cause = wrapped.Cause
	}
	if details.Message == "" {
		details.Message = strings.TrimSpace(err.Error())
	}
	return details
}

// KindOf reports the classification of err. Rollback failures win over step
// failures because they are the more severe outcome of the same run.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrRollbackFailed):
		return KindRollbackFailed
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrPrecondition):
		return KindPrecondition
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrStepFailed):
		return KindStepFailed
	default:
		return KindTransient
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component != "" {
		parts = append(parts, component)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
