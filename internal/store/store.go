// Package store persists classified runs.
//
// Three sinks are provided: PostgreSQL (pgx, bulk COPY), and SQLite
// (modernc) and MySQL (go-sql-driver) through database/sql with batched
// inserts. Each writes the Accepted rows of a run to dipendenti_ok
// and the Rejected rows to dipendenti_scarti in a single transaction, tagged
// with the session that produced them.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/dipendenti/internal/config"
	"github.com/JonMunkholm/dipendenti/internal/core"
	"github.com/google/uuid"
)

// Table names.
const (
	TableAccepted = "dipendenti_ok"
	TableRejected = "dipendenti_scarti"
)

// DefaultBatchSize is the number of rows per insert statement.
const DefaultBatchSize = 1000

// columns is the stored column order of both tables.
var columns = []string{"idrun", "cf", "nome", "dn", "salario", "dins", "session_id"}

// SaveResult reports how many rows a SaveRun wrote.
type SaveResult struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// Stats summarizes the stored data.
type Stats struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Runs     int `json:"runs"`
}

// Store is a persistence sink for classified runs.
type Store interface {
	// Migrate creates the tables if they do not exist.
	Migrate(ctx context.Context) error

	// SaveRun writes both partitions of run atomically.
	SaveRun(ctx context.Context, sessionID uuid.UUID, run *core.Run) (SaveResult, error)

	// Stats counts stored rows and distinct run ids.
	Stats(ctx context.Context) (Stats, error)

	// Reset deletes every stored row.
	Reset(ctx context.Context) error

	// Close releases the connection.
	Close() error
}

// Open connects to the sink selected by cfg.Driver and migrates it.
// The "none" driver returns a nil Store and no error.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	var (
		s   Store
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "", config.DriverNone:
		return nil, nil
	case config.DriverPostgres:
		s, err = OpenPostgres(ctx, cfg, logger)
	case config.DriverSQLite:
		s, err = OpenSQLite(ctx, cfg.SQLitePath, batch, logger)
	case config.DriverMySQL:
		s, err = OpenMySQL(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// records decodes both partitions of a run.
func records(run *core.Run) ([]core.AcceptedRecord, []core.RejectedRecord, error) {
	if run == nil || run.Accepted == nil || run.Rejected == nil {
		return nil, nil, fmt.Errorf("save run: run is not classified")
	}
	ok, err := run.Accepted.AcceptedRecords()
	if err != nil {
		return nil, nil, fmt.Errorf("save run %d: %w", run.ID, err)
	}
	ko, err := run.Rejected.RejectedRecords()
	if err != nil {
		return nil, nil, fmt.Errorf("save run %d: %w", run.ID, err)
	}
	return ok, ko, nil
}
