package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storesync-api/internal/model"
)

const usersCollection = "users"

// MongoStore implements Gateway using MongoDB. Each item collection maps to
// a Mongo collection named after it, e.g. "orders_ebay".
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	log    *logrus.Entry
}

// itemDocument wraps a stored item document.
type itemDocument struct {
	Key       string `bson:"_id"`
	UserID    string `bson:"user_id"`
	ID        string `bson:"id"`
	Doc       bson.D `bson:"doc"`
	UpdatedAt string `bson:"updated_at"`
}

// NewMongoStore connects to MongoDB.
func NewMongoStore(uri, database string, log *logrus.Entry) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.WithField("database", database).Info("mongodb store connected")
	return &MongoStore{client: client, db: client.Database(database), log: log}, nil
}

func itemKey(userID, id string) string {
	return userID + "/" + id
}

func (r *MongoStore) items(coll Collection) *mongo.Collection {
	return r.db.Collection(coll.Name())
}

// Get returns the document with id, or nil when absent.
func (r *MongoStore) Get(ctx context.Context, userID string, coll Collection, id string) ([]byte, error) {
	var doc struct {
		Doc bson.Raw `bson:"doc"`
	}
	err := r.items(coll).FindOne(ctx, bson.M{"_id": itemKey(userID, id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", coll.Name(), id, err)
	}
	return bson.MarshalExtJSON(doc.Doc, false, false)
}

// GetMany returns the present documents keyed by id.
func (r *MongoStore) GetMany(ctx context.Context, userID string, coll Collection, ids []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(ids))
	for _, batch := range chunk(ids, BatchLimit) {
		keys := make([]string, len(batch))
		for i, id := range batch {
			keys[i] = itemKey(userID, id)
		}

		cur, err := r.items(coll).Find(ctx, bson.M{"_id": bson.M{"$in": keys}})
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", coll.Name(), err)
		}
		for cur.Next(ctx) {
			var doc struct {
				ID  string   `bson:"id"`
				Doc bson.Raw `bson:"doc"`
			}
			if err := cur.Decode(&doc); err != nil {
				cur.Close(ctx)
				return nil, err
			}
			raw, err := bson.MarshalExtJSON(doc.Doc, false, false)
			if err != nil {
				cur.Close(ctx)
				return nil, err
			}
			out[doc.ID] = raw
		}
		err = cur.Err()
		cur.Close(ctx)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Upsert inserts or replaces the document with id.
func (r *MongoStore) Upsert(ctx context.Context, userID string, coll Collection, id string, doc []byte) error {
	var parsed bson.D
	if err := bson.UnmarshalExtJSON(doc, false, &parsed); err != nil {
		return fmt.Errorf("failed to parse %s/%s: %w", coll.Name(), id, err)
	}

	item := itemDocument{
		Key:       itemKey(userID, id),
		UserID:    userID,
		ID:        id,
		Doc:       parsed,
		UpdatedAt: model.FormatTime(time.Now()),
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.items(coll).ReplaceOne(ctx, bson.M{"_id": item.Key}, item, opts); err != nil {
		return fmt.Errorf("failed to upsert %s/%s: %w", coll.Name(), id, err)
	}
	return nil
}

// Delete removes the document with id.
func (r *MongoStore) Delete(ctx context.Context, userID string, coll Collection, id string) error {
	if _, err := r.items(coll).DeleteOne(ctx, bson.M{"_id": itemKey(userID, id)}); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", coll.Name(), id, err)
	}
	return nil
}

// GetUser loads a user and its current version.
func (r *MongoStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	err := r.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	return &u, nil
}

// PutUser creates or replaces a user document.
func (r *MongoStore) PutUser(ctx context.Context, user *model.User) error {
	doc := *user
	doc.Version = user.Version + 1

	opts := options.Replace().SetUpsert(true)
	if _, err := r.db.Collection(usersCollection).ReplaceOne(ctx, bson.M{"_id": user.ID}, doc, opts); err != nil {
		return fmt.Errorf("failed to put user %s: %w", user.ID, err)
	}
	return nil
}

// UpdateCounterFields sets fields under path, conditioned on expectedVersion when it is >= 0.
func (r *MongoStore) UpdateCounterFields(ctx context.Context, userID, path string, fields map[string]any, expectedVersion int64) error {
	set := bson.M{}
	for k, v := range fields {
		key := k
		if path != "" {
			key = path + "." + k
		}
		set[key] = v
	}

	filter := versionFilter(userID, expectedVersion)
	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}

	users := r.db.Collection(usersCollection)
	res, err := users.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update %s for user %s: %w", path, userID, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := users.CountDocuments(ctx, bson.M{"_id": userID})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return ErrVersionConflict
}

// versionFilter matches userID at expectedVersion. Documents written by other
// services carry no version field and decode as version 0, so 0 also matches
// a missing field. $inc then starts the counter at 1.
func versionFilter(userID string, expectedVersion int64) bson.M {
	filter := bson.M{"_id": userID}
	switch {
	case expectedVersion == 0:
		filter["$or"] = bson.A{
			bson.M{"version": int64(0)},
			bson.M{"version": bson.M{"$exists": false}},
		}
	case expectedVersion > 0:
		filter["version"] = expectedVersion
	}
	return filter
}

// ListUserIDs returns ids of users with a connected account for store.
func (r *MongoStore) ListUserIDs(ctx context.Context, store model.Store) ([]string, error) {
	filter := bson.M{"connectedAccounts." + string(store): bson.M{"$exists": true}}
	opts := options.Find().SetProjection(bson.M{"_id": 1})

	cur, err := r.db.Collection(usersCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	return ids, cur.Err()
}

// GetStats returns document counts per collection and the database size.
func (r *MongoStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})
	stats["dialect"] = "mongodb"

	names, err := r.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return stats, err
	}
	counts := make(map[string]int64, len(names))
	for _, name := range names {
		n, err := r.db.Collection(name).EstimatedDocumentCount(ctx)
		if err != nil {
			r.log.WithError(err).WithField("collection", name).Warn("failed to count documents")
			continue
		}
		counts[name] = n
	}
	stats["collections"] = counts

	var dbStats bson.M
	if err := r.db.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&dbStats); err == nil {
		switch size := dbStats["dataSize"].(type) {
		case int64:
			stats["db_size_bytes"] = size
		case int32:
			stats["db_size_bytes"] = int64(size)
		case float64:
			stats["db_size_bytes"] = int64(size)
		}
	}
	return stats, nil
}

// Close closes the MongoDB connection.
func (r *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

var _ Gateway = (*MongoStore)(nil)
