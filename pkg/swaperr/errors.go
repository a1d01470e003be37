// Package swaperr defines the error taxonomy used across the swap
// pipeline. Callers branch on Kind, not on message text.
package swaperr

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNetwork covers timeouts, server errors and transport
	// failures. Retriable with backoff.
	KindNetwork
	// KindRateLimit means the aggregator quota is exhausted.
	KindRateLimit
	// KindValidation covers malformed routes, value mismatches and
	// invalid recipients. Not retriable without new input.
	KindValidation
	// KindStaleQuote means the route's freshness window elapsed; the
	// remedy is a refetch, so it is distinct from other validation.
	KindStaleQuote
	// KindNoRoute means the aggregator found no viable route.
	KindNoRoute
	// KindAuthorization covers approval needed/failed/declined.
	KindAuthorization
	// KindExecution covers signing rejection, reverts, insufficient
	// funds and nonce conflicts.
	KindExecution
	// KindMonitoring covers stuck/timeout tracking outcomes. These do
	// not imply the underlying transaction failed.
	KindMonitoring
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRateLimit:
		return "rate_limit"
	case KindValidation:
		return "validation"
	case KindStaleQuote:
		return "stale_quote"
	case KindNoRoute:
		return "no_route"
	case KindAuthorization:
		return "authorization"
	case KindExecution:
		return "execution"
	case KindMonitoring:
		return "monitoring"
	}
	return "unknown"
}

// Error is a classified pipeline error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: errors.WithStack(err)}
}

// KindOf extracts the kind from an error chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return KindRateLimit
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// RateLimitError is returned when the aggregator quota is exhausted.
// RetryAfter is parsed from the rate-limit reset header.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %s", e.RetryAfter.Round(time.Second))
}

// Remedy strings surfaced with execution failures so the caller can
// show an actionable message rather than a generic "swap failed".
const (
	RemedyUserRejected      = "signature request was rejected; re-run the swap to try again"
	RemedyInsufficientFunds = "account balance does not cover amount plus gas; top up or lower the amount"
	RemedyReverted          = "transaction reverted on-chain; the route may have expired, fetch a fresh quote"
	RemedyNonce             = "nonce conflict with a pending transaction; wait for it to confirm and retry"
	RemedyNetwork           = "network error talking to the RPC endpoint; retry in a moment"
)

// ClassifyExecution maps a raw wallet/RPC error to a classified
// execution error with a suggested remedy. Heuristics follow the
// error strings the common clients return.
func ClassifyExecution(err error) *Error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user denied") || strings.Contains(msg, "user rejected"):
		return &Error{Kind: KindExecution, Msg: RemedyUserRejected, Err: err}
	case strings.Contains(msg, "insufficient funds"):
		return &Error{Kind: KindExecution, Msg: RemedyInsufficientFunds, Err: err}
	case strings.Contains(msg, "execution reverted") || strings.Contains(msg, "always failing transaction"):
		return &Error{Kind: KindExecution, Msg: RemedyReverted, Err: err}
	case strings.Contains(msg, "nonce too low") || strings.Contains(msg, "replacement transaction underpriced"):
		return &Error{Kind: KindExecution, Msg: RemedyNonce, Err: err}
	default:
		return &Error{Kind: KindNetwork, Msg: RemedyNetwork, Err: err}
	}
}
