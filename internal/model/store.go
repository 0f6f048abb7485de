package model

import (
	"fmt"
	"time"
)

// Store identifies a connected marketplace.
type Store string

const (
	StoreEbay  Store = "ebay"
	StoreDepop Store = "depop"
)

// Kind identifies which collection a sync walks.
type Kind string

const (
	KindInventory Kind = "inventory"
	KindOrders    Kind = "orders"
)

// ParseStore validates a marketplace name.
func ParseStore(s string) (Store, error) {
	switch Store(s) {
	case StoreEbay, StoreDepop:
		return Store(s), nil
	}
	return "", fmt.Errorf("unknown store %q", s)
}

// ParseKind validates a collection kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindInventory, KindOrders:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

// IDField returns the document field that identifies records of this kind.
func (k Kind) IDField() string {
	if k == KindOrders {
		return "transactionId"
	}
	return "itemId"
}

// RecordType marks whether a record was fetched by the engine or entered by the user.
type RecordType string

const (
	RecordAutomatic RecordType = "automatic"
	RecordManual    RecordType = "manual"
)

// TimeLayout is the persisted timestamp format.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime accepts TimeLayout and RFC3339 variants used by marketplaces.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
