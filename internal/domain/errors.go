// internal/domain/errors.go
package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind is the closed taxonomy every upstream failure maps onto.
type ErrorKind string

const (
	KindAuthFailed       ErrorKind = "auth_failed"
	KindValidation       ErrorKind = "validation_error"
	KindTimeout          ErrorKind = "timeout"
	KindUserRejected     ErrorKind = "user_rejected"
	KindNetwork          ErrorKind = "network_error"
	KindUpstreamInternal ErrorKind = "upstream_internal_error"
	KindUnknown          ErrorKind = "unknown"
)

// Gateway result codes seen on callbacks and status queries.
const (
	ResultCodeSuccess           = 0
	ResultCodeInsufficientFunds = 1
	ResultCodeSubscriberLocked  = 1001
	ResultCodeUserCancelled     = 1032
	ResultCodeDSTimeout         = 1037
	ResultCodeWrongPIN          = 2001
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrOrderNotFound       = errors.New("order not found")

	// ErrTokenExpired means a downstream call came back 401; the cached token
	// is stale and the call may be retried after a refetch.
	ErrTokenExpired = errors.New("access token expired")

	// ErrAuthRejected means the gateway refused the client credentials
	// themselves. Retrying cannot help.
	ErrAuthRejected = errors.New("gateway rejected credentials")

	// ErrBadTimestamp means the 14-digit request timestamp failed its width
	// check. A rebuild on the next attempt normally clears it.
	ErrBadTimestamp = errors.New("malformed request timestamp")

	// ErrSubmitAmbiguous wraps a transport failure on the push submit itself:
	// the request may or may not have reached the gateway, so the attempt
	// must never be replayed.
	ErrSubmitAmbiguous = errors.New("push submit failed in flight")
)

// PaymentError is the structured error surfaced to payment-initiating code.
type PaymentError struct {
	Kind       ErrorKind
	Message    string
	Suggestion string
	Retryable  bool
	Err        error
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PaymentError) Unwrap() error { return e.Err }

// Classify maps any error from the gateway path onto the closed taxonomy and
// a retry decision. Only token expiry, pre-submit network failures and a
// malformed timestamp are retryable; everything else ends the attempt.
func Classify(err error) *PaymentError {
	var perr *PaymentError
	if errors.As(err, &perr) {
		return perr
	}

	switch {
	case errors.Is(err, ErrTokenExpired):
		return &PaymentError{
			Kind:       KindAuthFailed,
			Message:    "access token expired",
			Suggestion: "refresh the token and retry the call",
			Retryable:  true,
			Err:        err,
		}
	case errors.Is(err, ErrAuthRejected):
		return &PaymentError{
			Kind:       KindAuthFailed,
			Message:    "gateway rejected client credentials",
			Suggestion: "check consumer key and secret",
			Retryable:  false,
			Err:        err,
		}
	case errors.Is(err, ErrBadTimestamp):
		return &PaymentError{
			Kind:       KindNetwork,
			Message:    "request timestamp failed its width check",
			Suggestion: "rebuild the request and retry once",
			Retryable:  true,
			Err:        err,
		}
	case errors.Is(err, ErrSubmitAmbiguous):
		return &PaymentError{
			Kind:       KindNetwork,
			Message:    "push submit failed mid-flight; the charge may have gone through",
			Suggestion: "poll the transaction status instead of resubmitting",
			Retryable:  false,
			Err:        err,
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &PaymentError{
			Kind:      KindTimeout,
			Message:   "gateway call exceeded its deadline",
			Retryable: false,
			Err:       err,
		}
	}

	var herr interface{ HTTPStatus() int }
	if errors.As(err, &herr) && herr.HTTPStatus() >= 500 {
		return &PaymentError{
			Kind:      KindUpstreamInternal,
			Message:   "gateway reported an internal failure",
			Retryable: false,
			Err:       err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &PaymentError{
			Kind:       KindNetwork,
			Message:    "network failure talking to the gateway",
			Suggestion: "retry after a short delay",
			Retryable:  true,
			Err:        err,
		}
	}

	return &PaymentError{
		Kind:      KindUnknown,
		Message:   "unclassified gateway failure",
		Retryable: false,
		Err:       err,
	}
}
