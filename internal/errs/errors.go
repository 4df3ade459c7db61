// Package errs holds the error taxonomy shared by the store client, the
// sync services and the conversation handlers. Callers branch on
// classified kinds, never on error strings.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker/v2"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrCartNotFound       = errors.New("cart not found")
	ErrItemNotFound       = errors.New("item not found in cart")
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrRemovalUnconfirmed = errors.New("item removal not confirmed by store")
)

// Kind is the user-facing category of a failure. Every kind maps to a
// defined next conversation state, so no error can strand a session.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindBackendUnavailable
	KindRemovalUnconfirmed
	KindEmptyCart
)

// String representation (for logging)
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindBackendUnavailable:
		return "backend_unavailable"
	case KindRemovalUnconfirmed:
		return "removal_unconfirmed"
	case KindEmptyCart:
		return "empty_cart"
	default:
		return "unknown"
	}
}

// ValidationError rejects user input before any write. Message is safe to
// show to the user as a re-prompt.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// BackendError wraps a failed call to the remote store. Status is zero for
// transport-level failures (connection refused, timeout).
type BackendError struct {
	Op     string
	Status int
	Err    error
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: store returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Classify maps any error produced by the store client or services onto
// the taxonomy.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}

	switch {
	case errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrCartNotFound),
		errors.Is(err, ErrItemNotFound):
		return KindNotFound
	case errors.Is(err, ErrEmptyCart):
		return KindEmptyCart
	case errors.Is(err, ErrRemovalUnconfirmed):
		return KindRemovalUnconfirmed
	}

	var be *BackendError
	if errors.As(err, &be) {
		if be.Status == http.StatusNotFound {
			return KindNotFound
		}
		return KindBackendUnavailable
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return KindBackendUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindBackendUnavailable
	}

	return KindUnknown
}

// Retryable reports whether retrying the same call can help. Breaker
// rejections are excluded: the breaker owns its own recovery schedule.
func Retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return Classify(err) == KindBackendUnavailable
}
