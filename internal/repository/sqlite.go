package repository

import (
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS items (
			user_id TEXT NOT NULL,
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			doc TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (user_id, collection, id)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			doc TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL
		)`,
	},
	bind: questionBind,
	upsertItem: `
		INSERT INTO items (user_id, collection, id, doc, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, collection, id) DO UPDATE SET
			doc = excluded.doc,
			updated_at = excluded.updated_at`,
	upsertUser: `
		INSERT INTO users (id, doc, version, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			doc = excluded.doc,
			version = users.version + 1,
			updated_at = excluded.updated_at`,
	sizeQuery: "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()",
}

// NewSQLiteStore opens a SQLite database at dbPath (e.g. "./data/storesync.db").
// Writes are serialized; WAL mode keeps reads concurrent.
func NewSQLiteStore(dbPath string, log *logrus.Entry) (*SQLStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store, err := newSQLStore(db, sqliteDialect, true)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.WithField("path", dbPath).Info("sqlite store initialized")
	return store, nil
}
