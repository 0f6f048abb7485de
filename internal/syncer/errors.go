package syncer

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Run. Use errors.Is() to check against these.
var (
	ErrUpstreamUnavailable = errors.New("marketplace unavailable")
	ErrQuotaExceeded       = errors.New("subscription quota exceeded")
	ErrMalformedRecord     = errors.New("malformed record")
	ErrPersistence         = errors.New("persistence failure")
	ErrRunawayPagination   = errors.New("max while loop depth reached")
	ErrNoSubscription      = errors.New("no member subscription")
	ErrAccountNotConnected = errors.New("marketplace account not connected")
	ErrStoreDisabled       = errors.New("store disabled")
	ErrSyncInProgress      = errors.New("sync already in progress")
	ErrLockLost            = errors.New("sync lock lost")
	ErrUnknownUser         = errors.New("user not found")
)

// RecordError describes one raw record that could not be normalized.
// The record is skipped and the sync continues.
type RecordError struct {
	ID     string
	Reason string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %s: %s", e.ID, e.Reason)
}

func (e *RecordError) Unwrap() error { return ErrMalformedRecord }

func malformed(id, format string, args ...any) error {
	return &RecordError{ID: id, Reason: fmt.Sprintf(format, args...)}
}

func persistence(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrPersistence, err)
}
