package adapter

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind is the closed set of transport failure classes.
type ErrorKind int

const (
	// KindTransient covers network failures and anything unclassified.
	KindTransient ErrorKind = iota
	// KindBlocked means the recipient blocked the bot or is unreachable for good.
	KindBlocked
	// KindRateLimited means the transport asked us to wait RetryAfter.
	KindRateLimited
	// KindRejected means the request can never succeed (bad request, message gone).
	KindRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindBlocked:
		return "blocked"
	case KindRateLimited:
		return "rate_limited"
	case KindRejected:
		return "rejected"
	default:
		return "transient"
	}
}

// DeliveryError is returned by Messenger implementations.
type DeliveryError struct {
	Kind       ErrorKind
	RetryAfter time.Duration
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Kind == KindRateLimited {
		return fmt.Sprintf("%s (retry after %s): %v", e.Kind, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func Blocked(err error) error  { return &DeliveryError{Kind: KindBlocked, Err: err} }
func Rejected(err error) error { return &DeliveryError{Kind: KindRejected, Err: err} }
func Transient(err error) error {
	return &DeliveryError{Kind: KindTransient, Err: err}
}

func RateLimited(err error, after time.Duration) error {
	if after < 0 {
		after = 0
	}
	return &DeliveryError{Kind: KindRateLimited, RetryAfter: after, Err: err}
}

// KindOf extracts the failure class from err. Errors that do not carry a
// DeliveryError are transient.
func KindOf(err error) (ErrorKind, time.Duration) {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Kind, de.RetryAfter
	}
	return KindTransient, 0
}
