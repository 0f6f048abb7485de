package repository

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"storesync-api/internal/logging"
	"storesync-api/pkg/uid"
)

func TestVersionFilter(t *testing.T) {
	tests := []struct {
		name     string
		expected int64
		want     bson.M
	}{
		{"unconditional", -1, bson.M{"_id": "u1"}},
		{"missing field counts as zero", 0, bson.M{"_id": "u1", "$or": bson.A{
			bson.M{"version": int64(0)},
			bson.M{"version": bson.M{"$exists": false}},
		}}},
		{"exact version", 7, bson.M{"_id": "u1", "version": int64(7)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, versionFilter("u1", tt.expected))
		})
	}
}

// Runs against a real server when MONGODB_TEST_URI is set.
func TestMongoUnversionedUserDocument(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}
	ctx := context.Background()

	store, err := NewMongoStore(uri, "storesync_test_"+uid.New()[:8], logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.db.Drop(context.Background())
		store.Close()
	})

	// Written by another service: no version field at all.
	_, err = store.db.Collection(usersCollection).InsertOne(ctx, bson.M{
		"_id":   "u1",
		"store": bson.M{"numOrders": bson.M{"automatic": 4}},
	})
	require.NoError(t, err)

	u, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(0), u.Version)

	require.NoError(t, store.UpdateCounterFields(ctx, "u1", "store.numOrders", map[string]any{"automatic": 5}, u.Version))

	u, err = store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.Version)
	assert.Equal(t, 5, u.Store.NumOrders.Automatic)

	err = store.UpdateCounterFields(ctx, "u1", "store.numOrders", map[string]any{"automatic": 6}, 0)
	assert.ErrorIs(t, err, ErrVersionConflict)
}
