// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a network failure.
type Kind int

const (
	// KindOther is any failure that fits no other kind, including
	// local I/O errors while streaming to or from disk.
	KindOther Kind = iota

	// KindNoResponse means the server could not be reached.
	KindNoResponse

	// KindMissingBody means a response arrived without the expected
	// content.
	KindMissingBody

	// KindUnsuccessful means the server answered with a non-success
	// status; Error.Status holds it.
	KindUnsuccessful

	// KindInconsistentSession means the transport state was invalid
	// for the request (for example a malformed address).
	KindInconsistentSession

	// KindTimeout means the request did not complete within the
	// configured timeout.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNoResponse:
		return "no response"
	case KindMissingBody:
		return "missing body"
	case KindUnsuccessful:
		return "unsuccessful"
	case KindInconsistentSession:
		return "inconsistent session"
	case KindTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// Error is the error type returned by every Client.
type Error struct {
	Kind Kind

	// Status is the response status for KindUnsuccessful.
	Status int

	// Key is the remote key the operation addressed.
	Key string

	Err error
}

func (e *Error) Error() string {
	message := fmt.Sprintf("netclient: %s %s", e.Kind, e.Key)
	if e.Kind == KindUnsuccessful {
		message = fmt.Sprintf("netclient: %s: status %d", e.Key, e.Status)
	}
	if e.Err != nil {
		message += ": " + e.Err.Error()
	}
	return message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindOther when err is not an
// *Error.
func KindOf(err error) Kind {
	var clientError *Error
	if errors.As(err, &clientError) {
		return clientError.Kind
	}
	return KindOther
}

// IsTimeout reports whether err is a KindTimeout failure.
func IsTimeout(err error) bool {
	return KindOf(err) == KindTimeout
}

// AnyTimeout reports whether any error in err's tree is a KindTimeout
// failure. Unlike IsTimeout it does not stop at the first *Error, so it
// finds a timeout joined after another failure.
func AnyTimeout(err error) bool {
	switch unwrapped := err.(type) {
	case nil:
		return false
	case *Error:
		if unwrapped.Kind == KindTimeout {
			return true
		}
		return AnyTimeout(unwrapped.Err)
	case interface{ Unwrap() []error }:
		for _, inner := range unwrapped.Unwrap() {
			if AnyTimeout(inner) {
				return true
			}
		}
		return false
	case interface{ Unwrap() error }:
		return AnyTimeout(unwrapped.Unwrap())
	}
	return false
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var clientError *Error
	return errors.As(err, &clientError) &&
		clientError.Kind == KindUnsuccessful && clientError.Status == http.StatusNotFound
}

// IsTransient reports whether retrying the request may succeed.
// Timeouts are not transient: they are surfaced immediately.
func IsTransient(err error) bool {
	var clientError *Error
	if !errors.As(err, &clientError) {
		return false
	}
	switch clientError.Kind {
	case KindNoResponse, KindMissingBody, KindInconsistentSession:
		return true
	case KindUnsuccessful:
		return clientError.Status >= 500 || clientError.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

func notFound(key string, err error) *Error {
	return &Error{Kind: KindUnsuccessful, Status: http.StatusNotFound, Key: key, Err: err}
}

// classifyTransport maps an error from a transport call that produced
// no response.
func classifyTransport(key string, err error) *Error {
	var netError net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Key: key, Err: err}
	case errors.As(err, &netError) && netError.Timeout():
		return &Error{Kind: KindTimeout, Key: key, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindOther, Key: key, Err: err}
	default:
		return &Error{Kind: KindNoResponse, Key: key, Err: err}
	}
}
