package aws

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

// Common errors
var (
	ErrNotFound        = errors.New("resource not found")
	ErrAmbiguous       = errors.New("resource is ambiguous")
	ErrInvalidFormat   = errors.New("invalid format")
	ErrPrecondition    = errors.New("precondition failed")
	ErrWaitTimeout     = errors.New("timed out waiting for state")
	ErrUnexpectedState = errors.New("unexpected state")
)

// LookupError reports a name-based lookup that did not yield exactly one
// resource.
type LookupError struct {
	Kind    Kind
	Name    string
	Target  string
	Count   int
	Filters []Filter
	// Cause is set when a parent resource could not be resolved
	Cause error
}

func (e *LookupError) Error() string {
	if e.Count == 0 {
		msg := e.subject() + " does not exist"
		if e.Cause != nil {
			msg += ": " + e.Cause.Error()
		}
		return msg
	}
	return fmt.Sprintf("%s is ambiguous: %d matches for filters [%s]",
		e.subject(), e.Count, formatFilters(e.Filters))
}

func (e *LookupError) subject() string {
	if e.Target != "" {
		return fmt.Sprintf("%s of '%s' with %s", e.Kind, e.Name, e.Target)
	}
	return fmt.Sprintf("%s with name '%s'", e.Kind, e.Name)
}

// Unwrap maps the lookup outcome onto ErrNotFound or ErrAmbiguous
func (e *LookupError) Unwrap() []error {
	sentinel := ErrAmbiguous
	if e.Count == 0 {
		sentinel = ErrNotFound
	}
	if e.Cause != nil {
		return []error{sentinel, e.Cause}
	}
	return []error{sentinel}
}

// IsProviderRejected reports whether err came back from the EC2 API itself
// (quota, duplicate name, permissions, dependency violations).
func IsProviderRejected(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr)
}

// ProviderErrorCode returns the EC2 error code carried by err, or "".
func ProviderErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func formatFilters(filters []Filter) string {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		parts = append(parts, f.Name+"="+f.Value)
	}
	return strings.Join(parts, ", ")
}
