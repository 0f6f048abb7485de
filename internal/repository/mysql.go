package repository

import (
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS items (
			user_id VARCHAR(128) NOT NULL,
			collection VARCHAR(64) NOT NULL,
			id VARCHAR(191) NOT NULL,
			doc JSON NOT NULL,
			updated_at VARCHAR(40) NOT NULL,
			PRIMARY KEY (user_id, collection, id)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(128) PRIMARY KEY,
			doc JSON NOT NULL,
			version BIGINT NOT NULL DEFAULT 1,
			updated_at VARCHAR(40) NOT NULL
		)`,
	},
	bind: questionBind,
	upsertItem: `
		INSERT INTO items (user_id, collection, id, doc, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			doc = VALUES(doc),
			updated_at = VALUES(updated_at)`,
	upsertUser: `
		INSERT INTO users (id, doc, version, updated_at)
		VALUES (?, ?, 1, ?)
		ON DUPLICATE KEY UPDATE
			doc = VALUES(doc),
			version = version + 1,
			updated_at = VALUES(updated_at)`,
	sizeQuery: `SELECT COALESCE(SUM(data_length + index_length), 0) FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name IN ('items', 'users')`,
}

// NewMySQLStore connects to MySQL.
// dsn format: "user:password@tcp(host:port)/dbname?parseTime=true"
func NewMySQLStore(dsn string, log *logrus.Entry) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}
	if err := configurePool(db, "MySQL"); err != nil {
		return nil, err
	}

	store, err := newSQLStore(db, mysqlDialect, false)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Info("mysql store initialized")
	return store, nil
}
