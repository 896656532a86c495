package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/dipendenti/internal/config"
	"github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS dipendenti_ok (
			idrun      INT          NOT NULL,
			cf         VARCHAR(64)  NOT NULL,
			nome       TEXT         NOT NULL,
			dn         DATE         NOT NULL,
			salario    DOUBLE       NOT NULL,
			dins       DATE         NOT NULL,
			session_id CHAR(36)     NOT NULL,
			INDEX dipendenti_ok_idrun_idx (idrun)
		) CHARACTER SET utf8mb4`,
		`CREATE TABLE IF NOT EXISTS dipendenti_scarti (
			idrun      INT          NOT NULL,
			cf         TEXT,
			nome       TEXT,
			dn         TEXT,
			salario    TEXT,
			dins       DATE         NOT NULL,
			session_id CHAR(36)     NOT NULL,
			INDEX dipendenti_scarti_idrun_idx (idrun)
		) CHARACTER SET utf8mb4`,
	},
}

// mysqlConfig parses dsn and forces the options the store relies on.
func mysqlConfig(dsn string) (*mysql.Config, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	mc.ParseTime = true
	return mc, nil
}

// OpenMySQL connects to MySQL using cfg.MySQLDSN and the pool settings.
func OpenMySQL(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*SQLStore, error) {
	mc, err := mysqlConfig(cfg.MySQLDSN)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s := newSQLStore(db, mysqlDialect, cfg.BatchSize, logger)
	s.logger.Info("connected to mysql", "addr", mc.Addr, "database", mc.DBName)
	return s, nil
}
