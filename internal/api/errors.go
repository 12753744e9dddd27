package api

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind classifies a failed remote call
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindBadRequest
	KindConflict
	KindRateLimited
	KindServerError
	KindNetwork
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindBadRequest:
		return "bad request"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate limited"
	case KindServerError:
		return "server error"
	case KindNetwork:
		return "network error"
	case KindParse:
		return "parse error"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is. Every *Error matches exactly one of them.
var (
	ErrUnknown      = errors.New("unknown error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("conflict")
	ErrRateLimited  = errors.New("rate limited")
	ErrServer       = errors.New("server error")
	ErrNetwork      = errors.New("network error")
	ErrParse        = errors.New("parse error")
)

var kindSentinels = map[Kind]error{
	KindUnknown:      ErrUnknown,
	KindUnauthorized: ErrUnauthorized,
	KindForbidden:    ErrForbidden,
	KindNotFound:     ErrNotFound,
	KindBadRequest:   ErrBadRequest,
	KindConflict:     ErrConflict,
	KindRateLimited:  ErrRateLimited,
	KindServerError:  ErrServer,
	KindNetwork:      ErrNetwork,
	KindParse:        ErrParse,
}

// Error is the failure of one remote call
type Error struct {
	Kind    Kind
	Status  int // HTTP status, 0 when no response arrived
	Message string
	// Fields holds per-field validation messages for BadRequest
	Fields map[string]string
	// RetryAfter is the server's requested backoff for RateLimited
	RetryAfter time.Duration
	Cause      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString("]")
	}
	if e.Cause != nil && e.Message == "" {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for e.Kind
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Retryable reports whether replaying the same request later may succeed.
// Unauthorized counts because a fresh token fixes it.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindRateLimited, KindServerError, KindUnauthorized:
		return true
	default:
		return false
	}
}

// Hint suggests what the user can do about the failure
func (e *Error) Hint() string {
	switch e.Kind {
	case KindUnauthorized:
		return "run 'tally auth login' to refresh your token"
	case KindNetwork:
		return "changes are kept locally; run 'tally sync' when you are back online"
	case KindRateLimited:
		if e.RetryAfter > 0 {
			return fmt.Sprintf("try again in %s", e.RetryAfter.Round(time.Second))
		}
		return "try again later"
	default:
		return ""
	}
}

// IsRetryable reports whether err is an *Error worth replaying. Errors from
// outside this package are treated as transient.
func IsRetryable(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return err != nil
}

// KindOf returns the Kind of err, or KindUnknown when it is not an *Error
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

func kindForStatus(status int) Kind {
	switch {
	case status == 401:
		return KindUnauthorized
	case status == 403:
		return KindForbidden
	case status == 404:
		return KindNotFound
	case status == 400 || status == 422:
		return KindBadRequest
	case status == 409:
		return KindConflict
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindServerError
	default:
		return KindUnknown
	}
}
