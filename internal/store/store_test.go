package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/dipendenti/internal/config"
	"github.com/JonMunkholm/dipendenti/internal/core"
	"github.com/JonMunkholm/dipendenti/internal/logging"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

var testNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

const testCSV = "CF,NOME,DN,SALARIO\n" +
	"ABCDEFGHIJKLMNOP,Mario Rossi,1990-05-15,2500.50\n" +
	"RSSMRA80A01H501X,Sara Gialli,1975-02-10,3100\n" +
	"SHORT,Anna,1990-05-15,1000\n" +
	"RSSMRA80A01H501Z,,1970-03-03,abc\n"

func testRun(t *testing.T, runID int) (*core.Session, *core.Run) {
	t.Helper()
	s := core.NewSession(core.SessionOptions{
		Logger: logging.Discard(),
		Now:    func() time.Time { return testNow },
	})
	run, err := s.Process(context.Background(), strings.NewReader(testCSV), "test.csv", runID)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	return s, run
}

func openMemory(t *testing.T, batchSize int) *SQLStore {
	t.Helper()
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:", batchSize, logging.Discard())
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

// ============================================================================
// SQLite Tests
// ============================================================================

func TestSQLite_SaveRun(t *testing.T) {
	db := openMemory(t, 1000)
	sess, run := testRun(t, 1)
	ctx := context.Background()

	res, err := db.SaveRun(ctx, sess.ID(), run)
	if err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if diff := cmp.Diff(SaveResult{Accepted: 2, Rejected: 2}, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	type okRow struct {
		IDRun           int
		CF, Nome, DN    string
		Salario         float64
		DINS, SessionID string
	}
	rows, err := db.db.QueryContext(ctx, "SELECT idrun, cf, nome, dn, salario, dins, session_id FROM dipendenti_ok ORDER BY cf")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	var got []okRow
	for rows.Next() {
		var r okRow
		if err := rows.Scan(&r.IDRun, &r.CF, &r.Nome, &r.DN, &r.Salario, &r.DINS, &r.SessionID); err != nil {
			t.Fatal(err)
		}
		got = append(got, r)
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}

	sid := sess.ID().String()
	want := []okRow{
		{1, "ABCDEFGHIJKLMNOP", "Mario Rossi", "1990-05-15", 2500.5, "2026-10-14", sid},
		{1, "RSSMRA80A01H501X", "Sara Gialli", "1975-02-10", 3100, "2026-10-14", sid},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stored accepted rows mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLite_RejectedKeepsRawTextAndNulls(t *testing.T) {
	db := openMemory(t, 1000)
	sess, run := testRun(t, 2)
	ctx := context.Background()

	if _, err := db.SaveRun(ctx, sess.ID(), run); err != nil {
		t.Fatal(err)
	}

	var nome sql.NullString
	var dn, salario string
	err := db.db.QueryRowContext(ctx,
		"SELECT nome, dn, salario FROM dipendenti_scarti WHERE cf = ?", "RSSMRA80A01H501Z").
		Scan(&nome, &dn, &salario)
	if err != nil {
		t.Fatal(err)
	}
	if nome.Valid {
		t.Errorf("nome = %q, want NULL", nome.String)
	}
	if dn != "1970-03-03" || salario != "abc" {
		t.Errorf("dn, salario = %q, %q; want raw input", dn, salario)
	}
}

func TestSQLite_BatchedInsertsAndStats(t *testing.T) {
	db := openMemory(t, 1)
	ctx := context.Background()

	for _, id := range []int{1, 2} {
		sess, run := testRun(t, id)
		if _, err := db.SaveRun(ctx, sess.ID(), run); err != nil {
			t.Fatalf("SaveRun(%d) error = %v", id, err)
		}
	}

	st, err := db.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Stats{Accepted: 4, Rejected: 4, Runs: 2}, st); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	if err := db.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	st, _ = db.Stats(ctx)
	if st != (Stats{}) {
		t.Errorf("stats after reset = %+v", st)
	}
}

func TestSQLite_SaveRunRejectsUnclassified(t *testing.T) {
	db := openMemory(t, 1000)
	if _, err := db.SaveRun(context.Background(), uuid.New(), &core.Run{ID: 1}); err == nil {
		t.Error("SaveRun() on a run without partitions should fail")
	}
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	db := openMemory(t, 1000)
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}

func TestInsertQuery(t *testing.T) {
	got := insertQuery(TableAccepted, 2)
	want := "INSERT INTO dipendenti_ok (idrun, cf, nome, dn, salario, dins, session_id) VALUES " +
		"(?,?,?,?,?,?,?),(?,?,?,?,?,?,?)"
	if got != want {
		t.Errorf("insertQuery() =\n%s\nwant\n%s", got, want)
	}
}

// ============================================================================
// MySQL Tests
// ============================================================================

func TestMySQLConfig(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		wantErr bool
	}{
		{"plain", "app:secret@tcp(db:3306)/dipendenti", false},
		{"parseTime off", "app:secret@tcp(db:3306)/dipendenti?parseTime=false", false},
		{"invalid", "app:secret@tcp(db:3306", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc, err := mysqlConfig(tt.dsn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("mysqlConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !mc.ParseTime {
				t.Error("ParseTime not forced")
			}
			if mc.DBName != "dipendenti" || mc.Addr != "db:3306" || mc.User != "app" {
				t.Errorf("parsed %s@%s/%s", mc.User, mc.Addr, mc.DBName)
			}
		})
	}
}

func TestDialectSchemas(t *testing.T) {
	for _, d := range []dialect{sqliteDialect, mysqlDialect} {
		for _, table := range []string{TableAccepted, TableRejected} {
			found := false
			for _, stmt := range d.schema {
				if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS "+table+" ") {
					found = true
				}
			}
			if !found {
				t.Errorf("%s schema does not create %s", d.name, table)
			}
		}
	}
}

// ============================================================================
// Open Tests
// ============================================================================

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Driver: config.DriverNone}, logging.Discard())
	if err != nil || s != nil {
		t.Errorf("Open(none) = %v, %v; want nil, nil", s, err)
	}

	if _, err := Open(ctx, config.StoreConfig{Driver: "oracle"}, logging.Discard()); err == nil {
		t.Error("Open(oracle) should fail")
	}

	s, err = Open(ctx, config.StoreConfig{Driver: config.DriverSQLite, SQLitePath: ":memory:"}, logging.Discard())
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}
	defer s.Close()
	if _, err := s.Stats(ctx); err != nil {
		t.Errorf("Stats() on migrated store: %v", err)
	}
}

// ============================================================================
// COPY Row Tests
// ============================================================================

func TestAcceptedCopyRows(t *testing.T) {
	sid := uuid.MustParse("6f1c2c4e-7a59-4a8e-9d7e-2b6f3b0c9a11")
	dn := time.Date(1990, 5, 15, 0, 0, 0, 0, time.UTC)
	dins := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

	got := acceptedCopyRows(sid, []core.AcceptedRecord{
		{IDRun: 1, CF: "ABCDEFGHIJKLMNOP", Nome: "Mario", DN: dn, Salario: 2500.5, DINS: dins},
	})
	want := [][]any{{
		int32(1), "ABCDEFGHIJKLMNOP", "Mario",
		pgtype.Date{Time: dn, Valid: true}, 2500.5,
		pgtype.Date{Time: dins, Valid: true},
		pgtype.UUID{Bytes: sid, Valid: true},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("copy rows mismatch (-want +got):\n%s", diff)
	}
	if len(got[0]) != len(columns) {
		t.Errorf("row has %d values, want %d", len(got[0]), len(columns))
	}
}

func TestRejectedCopyRows(t *testing.T) {
	sid := uuid.New()
	dins := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

	got := rejectedCopyRows(sid, []core.RejectedRecord{{
		IDRun:   2,
		CF:      pgtype.Text{String: "SHORT", Valid: true},
		DN:      pgtype.Text{String: "2024-13-01", Valid: true},
		Salario: pgtype.Text{String: "abc", Valid: true},
		DINS:    dins,
	}})
	want := [][]any{{
		int32(2),
		pgtype.Text{String: "SHORT", Valid: true},
		pgtype.Text{},
		pgtype.Text{String: "2024-13-01", Valid: true},
		pgtype.Text{String: "abc", Valid: true},
		pgtype.Date{Time: dins, Valid: true},
		pgtype.UUID{Bytes: sid, Valid: true},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("copy rows mismatch (-want +got):\n%s", diff)
	}
}
