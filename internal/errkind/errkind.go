// Package errkind defines the stable, language-neutral error taxonomy that
// every operation in this system surfaces. Repository and engine code wraps
// lower-level errors with fmt.Errorf("...: %w", err) and then, where a
// caller-visible kind applies, wraps again with errkind.New so the HTTP
// layer can map Kind to a status code and JSON body without string sniffing.
package errkind

import (
	"errors"
	"fmt"
)

// Kind is one of the taxonomy values from the error handling design.
type Kind string

const (
	Invalid                 Kind = "Invalid"
	NotFound                Kind = "NotFound"
	Conflict                Kind = "Conflict"
	BudgetExceeded          Kind = "BudgetExceeded"
	RateLimited             Kind = "RateLimited"
	SandboxTimeout          Kind = "SandboxTimeout"
	SandboxResourceExceeded Kind = "SandboxResourceExceeded"
	SandboxPolicy           Kind = "SandboxPolicy"
	ReauthRequired          Kind = "ReauthRequired"
	UpstreamUnavailable     Kind = "UpstreamUnavailable"
	Internal                Kind = "Internal"
)

// Error is a typed, remediable error.
type Error struct {
	Kind            Kind
	Message         string
	Remediation     string
	RetryAfterSecs  float64 // populated for RateLimited
	EstimatedSecs   float64 // populated for BudgetExceeded
	MaxAllowedSecs  float64 // populated for BudgetExceeded
	wrapped         error
}

func (e *Error) Error() string {
	if e.Remediation != "" {
		return fmt.Sprintf("%s: %s (remediation: %s)", e.Kind, e.Message, e.Remediation)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// New creates a typed error with no remediation text.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a typed error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an existing error, preserving it for Unwrap.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, wrapped: err}
}

// WithRemediation returns a copy of e with remediation text attached.
func (e *Error) WithRemediation(remediation string) *Error {
	cp := *e
	cp.Remediation = remediation
	return &cp
}

// RateLimitedf builds a RateLimited error carrying retry_after_seconds.
func RateLimitedf(provider string, retryAfterSeconds float64) *Error {
	return &Error{
		Kind:           RateLimited,
		Message:        fmt.Sprintf("provider_rate_limited provider=%s retry_after_seconds=%.3f", provider, retryAfterSeconds),
		RetryAfterSecs: retryAfterSeconds,
	}
}

// BudgetExceededf builds a BudgetExceeded error carrying the estimate pair.
func BudgetExceededf(estimatedSeconds, maxAllowedSeconds float64) *Error {
	return &Error{
		Kind:           BudgetExceeded,
		Message:        fmt.Sprintf("preflight budget exceeded: estimated_seconds=%.4f, max_allowed_seconds=%.4f", estimatedSeconds, maxAllowedSeconds),
		EstimatedSecs:  estimatedSeconds,
		MaxAllowedSecs: maxAllowedSeconds,
	}
}

// As extracts a *Error from err, if any wraps one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it (or something it wraps) is an *Error,
// otherwise Internal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Internal
}
