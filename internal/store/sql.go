package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/dipendenti/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// dialect holds what differs between database/sql backends.
type dialect struct {
	name   string
	schema []string // DDL, one statement each
}

// SQLStore writes runs through database/sql using multi-row INSERT
// statements. Dates are sent as YYYY-MM-DD text.
type SQLStore struct {
	db        *sql.DB
	dialect   dialect
	batchSize int
	logger    *slog.Logger
}

func newSQLStore(db *sql.DB, d dialect, batchSize int, logger *slog.Logger) *SQLStore {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLStore{db: db, dialect: d, batchSize: batchSize, logger: logger.With("store", d.name)}
}

// Migrate creates the tables if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.dialect.name, err)
		}
	}
	return nil
}

// SaveRun inserts both partitions of run inside one transaction, batchSize
// rows per statement.
func (s *SQLStore) SaveRun(ctx context.Context, sessionID uuid.UUID, run *core.Run) (SaveResult, error) {
	ok, ko, err := records(run)
	if err != nil {
		return SaveResult{}, err
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SaveResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	sid := sessionID.String()
	okRows := make([][]any, len(ok))
	for i, r := range ok {
		okRows[i] = []any{
			r.IDRun, r.CF, r.Nome,
			r.DN.Format(core.DateLayout), r.Salario,
			r.DINS.Format(core.DateLayout), sid,
		}
	}
	koRows := make([][]any, len(ko))
	for i, r := range ko {
		koRows[i] = []any{
			r.IDRun, nullString(r.CF), nullString(r.Nome),
			nullString(r.DN), nullString(r.Salario),
			r.DINS.Format(core.DateLayout), sid,
		}
	}

	if err := s.insertBatches(ctx, tx, TableAccepted, okRows); err != nil {
		return SaveResult{}, fmt.Errorf("insert %s run %d: %w", TableAccepted, run.ID, err)
	}
	if err := s.insertBatches(ctx, tx, TableRejected, koRows); err != nil {
		return SaveResult{}, fmt.Errorf("insert %s run %d: %w", TableRejected, run.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return SaveResult{}, fmt.Errorf("commit: %w", err)
	}

	result := SaveResult{Accepted: len(okRows), Rejected: len(koRows)}
	s.logger.Info("run stored",
		"idrun", run.ID,
		"accepted", result.Accepted,
		"rejected", result.Rejected,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// insertBatches writes rows with multi-row INSERT statements.
func (s *SQLStore) insertBatches(ctx context.Context, tx *sql.Tx, table string, rows [][]any) error {
	for start := 0; start < len(rows); start += s.batchSize {
		end := min(start+s.batchSize, len(rows))
		batch := rows[start:end]

		query := insertQuery(table, len(batch))
		args := make([]any, 0, len(batch)*len(columns))
		for _, r := range batch {
			args = append(args, r...)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

// insertQuery builds INSERT INTO table (...) VALUES (?,...),... for n rows.
func insertQuery(table string, n int) string {
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES ")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(tuple)
	}
	return b.String()
}

// Stats counts stored rows and distinct run ids.
func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM dipendenti_ok),
			(SELECT count(*) FROM dipendenti_scarti),
			(SELECT count(*) FROM (
				SELECT idrun FROM dipendenti_ok UNION SELECT idrun FROM dipendenti_scarti
			) AS runs)`).Scan(&st.Accepted, &st.Rejected, &st.Runs)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

// Reset deletes every stored row.
func (s *SQLStore) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{TableAccepted, TableRejected} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func nullString(t pgtype.Text) sql.NullString {
	return sql.NullString{String: t.String, Valid: t.Valid}
}
