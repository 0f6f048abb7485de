package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"storesync-api/internal/model"
)

// dialect holds the statements that differ between SQL backends.
type dialect struct {
	name       string
	schema     []string
	bind       func(n int) string
	upsertItem string
	upsertUser string
	sizeQuery  string
}

func questionBind(int) string { return "?" }

func dollarBind(n int) string { return fmt.Sprintf("$%d", n) }

// SQLStore implements Gateway over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect

	// serialize guards SQLite, which only supports one writer.
	serialize bool
	mu        sync.RWMutex
}

func newSQLStore(db *sql.DB, d dialect, serialize bool) (*SQLStore, error) {
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return &SQLStore{db: db, dialect: d, serialize: serialize}, nil
}

func (s *SQLStore) rlock() func() {
	if !s.serialize {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *SQLStore) wlock() func() {
	if !s.serialize {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// q rewrites "?" placeholders for the dialect.
func (s *SQLStore) q(query string) string {
	if s.dialect.bind(1) == "?" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.dialect.bind(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Get returns the document with id, or nil when absent.
func (s *SQLStore) Get(ctx context.Context, userID string, coll Collection, id string) ([]byte, error) {
	defer s.rlock()()

	var doc string
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT doc FROM items WHERE user_id = ? AND collection = ? AND id = ?`),
		userID, coll.Name(), id,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", coll.Name(), id, err)
	}
	return []byte(doc), nil
}

// GetMany returns the present documents keyed by id.
func (s *SQLStore) GetMany(ctx context.Context, userID string, coll Collection, ids []string) (map[string][]byte, error) {
	defer s.rlock()()

	out := make(map[string][]byte, len(ids))
	for _, batch := range chunk(ids, BatchLimit) {
		args := make([]any, 0, len(batch)+2)
		args = append(args, userID, coll.Name())
		marks := make([]string, len(batch))
		for i, id := range batch {
			marks[i] = "?"
			args = append(args, id)
		}

		query := s.q(`SELECT id, doc FROM items WHERE user_id = ? AND collection = ? AND id IN (` + strings.Join(marks, ", ") + `)`)
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", coll.Name(), err)
		}
		for rows.Next() {
			var id, doc string
			if err := rows.Scan(&id, &doc); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s: %w", coll.Name(), err)
			}
			out[id] = []byte(doc)
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Upsert inserts or replaces the document with id.
func (s *SQLStore) Upsert(ctx context.Context, userID string, coll Collection, id string, doc []byte) error {
	defer s.wlock()()

	_, err := s.db.ExecContext(ctx, s.q(s.dialect.upsertItem),
		userID, coll.Name(), id, string(doc), model.FormatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to upsert %s/%s: %w", coll.Name(), id, err)
	}
	return nil
}

// Delete removes the document with id.
func (s *SQLStore) Delete(ctx context.Context, userID string, coll Collection, id string) error {
	defer s.wlock()()

	_, err := s.db.ExecContext(ctx,
		s.q(`DELETE FROM items WHERE user_id = ? AND collection = ? AND id = ?`),
		userID, coll.Name(), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", coll.Name(), id, err)
	}
	return nil
}

// GetUser loads a user and its current version.
func (s *SQLStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	defer s.rlock()()
	return s.getUser(ctx, userID)
}

func (s *SQLStore) getUser(ctx context.Context, userID string) (*model.User, error) {
	doc, version, err := s.userDoc(ctx, userID)
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := json.Unmarshal(doc, &u); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", userID, err)
	}
	u.ID = userID
	u.Version = version
	return &u, nil
}

func (s *SQLStore) userDoc(ctx context.Context, userID string) ([]byte, int64, error) {
	var doc string
	var version int64
	err := s.db.QueryRowContext(ctx, s.q(`SELECT doc, version FROM users WHERE id = ?`), userID).Scan(&doc, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, ErrUserNotFound
		}
		return nil, 0, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	return []byte(doc), version, nil
}

// PutUser creates or replaces a user document.
func (s *SQLStore) PutUser(ctx context.Context, user *model.User) error {
	defer s.wlock()()

	doc, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user %s: %w", user.ID, err)
	}
	_, err = s.db.ExecContext(ctx, s.q(s.dialect.upsertUser), user.ID, string(doc), model.FormatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to put user %s: %w", user.ID, err)
	}
	return nil
}

// UpdateCounterFields sets fields under path, conditioned on expectedVersion when it is >= 0.
func (s *SQLStore) UpdateCounterFields(ctx context.Context, userID, path string, fields map[string]any, expectedVersion int64) error {
	defer s.wlock()()

	doc, version, err := s.userDoc(ctx, userID)
	if err != nil {
		return err
	}
	if expectedVersion >= 0 && version != expectedVersion {
		return ErrVersionConflict
	}

	updated, err := applyFields(doc, path, fields)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE users SET doc = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`),
		string(updated), model.FormatTime(time.Now()), userID, version)
	if err != nil {
		return fmt.Errorf("failed to update %s for user %s: %w", path, userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// ListUserIDs returns ids of users with a connected account for store.
func (s *SQLStore) ListUserIDs(ctx context.Context, store model.Store) ([]string, error) {
	defer s.rlock()()

	rows, err := s.db.QueryContext(ctx, `SELECT id, doc FROM users`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		var u model.User
		if err := json.Unmarshal([]byte(doc), &u); err != nil {
			continue
		}
		if _, ok := u.Account(store); ok {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

// GetStats returns statistics about the database.
func (s *SQLStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	defer s.rlock()()

	stats := make(map[string]interface{})
	stats["dialect"] = s.dialect.name

	var items, users int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&items); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&users); err != nil {
		return nil, err
	}
	stats["total_items"] = items
	stats["total_users"] = users

	if s.dialect.sizeQuery != "" {
		var size int64
		if err := s.db.QueryRowContext(ctx, s.dialect.sizeQuery).Scan(&size); err == nil {
			stats["db_size_bytes"] = size
		}
	}

	dbStats := s.db.Stats()
	stats["connections"] = map[string]interface{}{
		"open":     dbStats.OpenConnections,
		"in_use":   dbStats.InUse,
		"idle":     dbStats.Idle,
		"max_open": dbStats.MaxOpenConnections,
	}
	return stats, nil
}

// Close closes the database connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var _ Gateway = (*SQLStore)(nil)
