package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS dipendenti_ok (
			idrun      INTEGER NOT NULL,
			cf         TEXT    NOT NULL,
			nome       TEXT    NOT NULL,
			dn         TEXT    NOT NULL,
			salario    REAL    NOT NULL,
			dins       TEXT    NOT NULL,
			session_id TEXT    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS dipendenti_ok_idrun_idx ON dipendenti_ok (idrun)`,
		`CREATE TABLE IF NOT EXISTS dipendenti_scarti (
			idrun      INTEGER NOT NULL,
			cf         TEXT,
			nome       TEXT,
			dn         TEXT,
			salario    TEXT,
			dins       TEXT    NOT NULL,
			session_id TEXT    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS dipendenti_scarti_idrun_idx ON dipendenti_scarti (idrun)`,
	},
}

// OpenSQLite opens (or creates) the SQLite database at path. Use ":memory:"
// for a private in-memory database.
func OpenSQLite(ctx context.Context, path string, batchSize int, logger *slog.Logger) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// One connection: SQLite serializes writers, and an in-memory database
	// lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	s := newSQLStore(db, sqliteDialect, batchSize, logger)
	s.logger.Info("opened sqlite database", "path", path)
	return s, nil
}
