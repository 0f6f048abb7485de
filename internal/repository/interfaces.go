package repository

import (
	"context"
	"errors"
	"fmt"

	"storesync-api/internal/model"
)

// BatchLimit caps the number of ids in one multi-get query.
const BatchLimit = 10

var (
	// ErrUserNotFound is returned when a user document does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrVersionConflict is returned when a conditional user write lost a race.
	ErrVersionConflict = errors.New("user document version conflict")
)

// Collection names one item collection: a kind for a marketplace.
type Collection struct {
	Kind  model.Kind
	Store model.Store
}

// Name returns the physical collection name, e.g. "orders_ebay".
func (c Collection) Name() string {
	return fmt.Sprintf("%s_%s", c.Kind, c.Store)
}

// DocumentStore persists per-user item documents as JSON.
type DocumentStore interface {
	// Get returns the document with id, or nil when absent.
	Get(ctx context.Context, userID string, coll Collection, id string) ([]byte, error)

	// GetMany returns the present documents keyed by id. Lookups are chunked by BatchLimit.
	GetMany(ctx context.Context, userID string, coll Collection, ids []string) (map[string][]byte, error)

	// Upsert inserts or replaces the document with id.
	Upsert(ctx context.Context, userID string, coll Collection, id string, doc []byte) error

	// Delete removes the document with id. Deleting a missing document is not an error.
	Delete(ctx context.Context, userID string, coll Collection, id string) error
}

// UserRepository persists user documents.
type UserRepository interface {
	// GetUser loads a user and its current version.
	GetUser(ctx context.Context, userID string) (*model.User, error)

	// PutUser creates or replaces a user document.
	PutUser(ctx context.Context, user *model.User) error

	// UpdateCounterFields sets fields under a dotted path of the user document,
	// e.g. path "store.numOrders". When expectedVersion >= 0 the write is applied
	// only if the stored version matches, otherwise ErrVersionConflict is returned.
	UpdateCounterFields(ctx context.Context, userID, path string, fields map[string]any, expectedVersion int64) error

	// ListUserIDs returns ids of users with a connected account for store.
	ListUserIDs(ctx context.Context, store model.Store) ([]string, error)
}

// Gateway is a complete persistence backend.
type Gateway interface {
	DocumentStore
	UserRepository

	// GetStats returns statistics about the backing database.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the repository connection.
	Close() error
}

// chunk splits ids into groups of at most size.
func chunk(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
