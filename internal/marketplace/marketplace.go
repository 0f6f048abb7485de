// Package marketplace holds the pieces shared by the marketplace clients.
package marketplace

import (
	"errors"
	"fmt"
)

// ErrUpstream marks transport failures and non-success responses from a marketplace.
var ErrUpstream = errors.New("marketplace unavailable")

// HTTPError is a non-2xx marketplace response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("marketplace returned status %d: %s", e.Status, e.Body)
}

// Unwrap lets errors.Is(err, ErrUpstream) match.
func (e *HTTPError) Unwrap() error { return ErrUpstream }

// Upstream wraps err as an upstream failure.
func Upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUpstream, err)
}
