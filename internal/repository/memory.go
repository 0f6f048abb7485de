package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"storesync-api/internal/model"
)

type userRow struct {
	doc     []byte
	version int64
}

// MemoryStore is an in-process Gateway. Used for local runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]map[string][]byte
	users map[string]userRow
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]map[string][]byte),
		users: make(map[string]userRow),
	}
}

func memKey(userID string, coll Collection) string {
	return userID + "|" + coll.Name()
}

func (m *MemoryStore) Get(_ context.Context, userID string, coll Collection, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.items[memKey(userID, coll)][id]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), doc...), nil
}

func (m *MemoryStore) GetMany(_ context.Context, userID string, coll Collection, ids []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bucket := m.items[memKey(userID, coll)]
	out := make(map[string][]byte, len(ids))
	for _, id := range ids {
		if doc, ok := bucket[id]; ok {
			out[id] = append([]byte(nil), doc...)
		}
	}
	return out, nil
}

func (m *MemoryStore) Upsert(_ context.Context, userID string, coll Collection, id string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memKey(userID, coll)
	if m.items[key] == nil {
		m.items[key] = make(map[string][]byte)
	}
	m.items[key][id] = append([]byte(nil), doc...)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID string, coll Collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items[memKey(userID, coll)], id)
	return nil
}

// Count returns the number of documents in a collection for userID.
func (m *MemoryStore) Count(userID string, coll Collection) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items[memKey(userID, coll)])
}

func (m *MemoryStore) GetUser(_ context.Context, userID string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	var u model.User
	if err := json.Unmarshal(row.doc, &u); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", userID, err)
	}
	u.ID = userID
	u.Version = row.version
	return &u, nil
}

func (m *MemoryStore) PutUser(_ context.Context, user *model.User) error {
	doc, err := json.Marshal(user)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = userRow{doc: doc, version: m.users[user.ID].version + 1}
	return nil
}

func (m *MemoryStore) UpdateCounterFields(_ context.Context, userID, path string, fields map[string]any, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if expectedVersion >= 0 && row.version != expectedVersion {
		return ErrVersionConflict
	}
	doc, err := applyFields(row.doc, path, fields)
	if err != nil {
		return err
	}
	m.users[userID] = userRow{doc: doc, version: row.version + 1}
	return nil
}

func (m *MemoryStore) ListUserIDs(_ context.Context, store model.Store) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, row := range m.users {
		var u model.User
		if err := json.Unmarshal(row.doc, &u); err != nil {
			continue
		}
		if _, ok := u.Account(store); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *MemoryStore) GetStats(_ context.Context) (map[string]interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, bucket := range m.items {
		total += len(bucket)
	}
	return map[string]interface{}{
		"dialect":     "memory",
		"total_items": total,
		"total_users": len(m.users),
	}, nil
}

func (m *MemoryStore) Close() error { return nil }

var _ Gateway = (*MemoryStore)(nil)
