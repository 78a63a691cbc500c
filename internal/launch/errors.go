package launch

import (
	"context"
	"errors"
	"fmt"
)

type Kind string

const (
	KindRejected    Kind = "provider_rejected"
	KindUnavailable Kind = "provider_unavailable"
	KindTimeout     Kind = "provider_timeout"
	KindEmptyResult Kind = "empty_provider_result"
)

var ErrEmptyResult = errors.New("provider returned no instance identifier")

// Error is returned by every Launcher on failure. Err holds the provider's own error and
// must not be shown to callers.
type Error struct {
	Kind     Kind
	Provider string
	Op       string
	Code     string
	Err      error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: %s (%s): %v", e.Provider, e.Op, e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the failure kind of err. Errors that did not come from a Launcher are
// treated as the provider being unavailable.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnavailable
}

func emptyResult(provider, op string) *Error {
	return &Error{Kind: KindEmptyResult, Provider: provider, Op: op, Err: ErrEmptyResult}
}

// classify wraps a provider error. apiCode reports whether the provider answered with an
// API error and whether that error is the provider's own fault.
func classify(provider, op string, err error, apiCode func(error) (code string, serverFault bool, ok bool)) *Error {
	out := &Error{Kind: KindUnavailable, Provider: provider, Op: op, Err: err}
	if errors.Is(err, context.DeadlineExceeded) {
		out.Kind = KindTimeout
		return out
	}
	if code, serverFault, ok := apiCode(err); ok {
		out.Code = code
		if !serverFault {
			out.Kind = KindRejected
		}
	}
	return out
}
