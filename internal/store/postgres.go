package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/dipendenti/internal/config"
	"github.com/JonMunkholm/dipendenti/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS dipendenti_ok (
	idrun      integer          NOT NULL,
	cf         text             NOT NULL,
	nome       text             NOT NULL,
	dn         date             NOT NULL,
	salario    double precision NOT NULL,
	dins       date             NOT NULL,
	session_id uuid             NOT NULL
);
CREATE INDEX IF NOT EXISTS dipendenti_ok_idrun_idx ON dipendenti_ok (idrun);

CREATE TABLE IF NOT EXISTS dipendenti_scarti (
	idrun      integer NOT NULL,
	cf         text,
	nome       text,
	dn         text,
	salario    text,
	dins       date    NOT NULL,
	session_id uuid    NOT NULL
);
CREATE INDEX IF NOT EXISTS dipendenti_scarti_idrun_idx ON dipendenti_scarti (idrun);
`

// Postgres writes runs to PostgreSQL with COPY.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres connects a pool configured from cfg and verifies it.
func OpenPostgres(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		logger.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	return &Postgres{pool: pool, logger: logger}, nil
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SaveRun copies both partitions of run inside one transaction.
func (p *Postgres) SaveRun(ctx context.Context, sessionID uuid.UUID, run *core.Run) (SaveResult, error) {
	ok, ko, err := records(run)
	if err != nil {
		return SaveResult{}, err
	}
	start := time.Now()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return SaveResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var result SaveResult
	if len(ok) > 0 {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{TableAccepted}, columns,
			pgx.CopyFromRows(acceptedCopyRows(sessionID, ok)))
		if err != nil {
			return SaveResult{}, fmt.Errorf("copy %s run %d: %w", TableAccepted, run.ID, err)
		}
		result.Accepted = int(n)
	}
	if len(ko) > 0 {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{TableRejected}, columns,
			pgx.CopyFromRows(rejectedCopyRows(sessionID, ko)))
		if err != nil {
			return SaveResult{}, fmt.Errorf("copy %s run %d: %w", TableRejected, run.ID, err)
		}
		result.Rejected = int(n)
	}

	if err := tx.Commit(ctx); err != nil {
		return SaveResult{}, fmt.Errorf("commit: %w", err)
	}

	p.logger.Info("run stored",
		"idrun", run.ID,
		"accepted", result.Accepted,
		"rejected", result.Rejected,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// Stats counts stored rows and distinct run ids.
func (p *Postgres) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := p.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM dipendenti_ok),
			(SELECT count(*) FROM dipendenti_scarti),
			(SELECT count(DISTINCT idrun) FROM (
				SELECT idrun FROM dipendenti_ok UNION SELECT idrun FROM dipendenti_scarti
			) AS r)`).Scan(&s.Accepted, &s.Rejected, &s.Runs)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return s, nil
}

// Reset truncates both tables.
func (p *Postgres) Reset(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "TRUNCATE dipendenti_ok, dipendenti_scarti"); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// acceptedCopyRows converts Accepted records to COPY rows in column order.
func acceptedCopyRows(sessionID uuid.UUID, recs []core.AcceptedRecord) [][]any {
	sid := pgUUID(sessionID)
	rows := make([][]any, len(recs))
	for i, r := range recs {
		rows[i] = []any{
			int32(r.IDRun),
			r.CF,
			r.Nome,
			pgtype.Date{Time: r.DN, Valid: true},
			r.Salario,
			pgtype.Date{Time: r.DINS, Valid: true},
			sid,
		}
	}
	return rows
}

// rejectedCopyRows converts Rejected records to COPY rows in column order.
func rejectedCopyRows(sessionID uuid.UUID, recs []core.RejectedRecord) [][]any {
	sid := pgUUID(sessionID)
	rows := make([][]any, len(recs))
	for i, r := range recs {
		rows[i] = []any{
			int32(r.IDRun),
			r.CF,
			r.Nome,
			r.DN,
			r.Salario,
			pgtype.Date{Time: r.DINS, Valid: true},
			sid,
		}
	}
	return rows
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
