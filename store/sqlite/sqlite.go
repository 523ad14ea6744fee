/*
Package sqlite provides a SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Persists accounts, envelopes, transactions and the audit tables, and
  answers the two status-aggregation reads of the balance projection from
  SQL views, so each projection is one query.

DRIVERS:
  DriverMattn  ("sqlite3"): github.com/mattn/go-sqlite3, cgo, the default
  DriverModern ("sqlite"):  modernc.org/sqlite, pure Go
  Both are registered; Open picks one by name.

MONEY:
  Amounts are stored as INTEGER cents (amount_cents columns) and converted
  to decimal.Decimal at the boundary. SUM over integers is exact.

KEY TABLES:
  accounts, envelopes, transactions:     the ledger
  envelope_transfers, account_transfers: transfer audit trail
  credit_card_payments, payment_allocations
  funding_targets:                       planning only

VIEWS:
  account_balances_by_status / envelope_balances_by_status: per-status
  cent sums, transaction count and stored balance per entity.

CONCURRENCY:
  Writers use BEGIN IMMEDIATE (_txlock=immediate) so two read-check-write
  operations serialize on the database lock instead of failing at commit.
  ":memory:" databases are pinned to one connection, which also means every
  read made inside WithTx must go through the transaction handle.

MIGRATION:
  Versioned migrations are embedded (migrations/*.sql) and applied with
  golang-migrate on Open.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := ledger.NewService(store)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/warp/envelope-ledger/ledger"
)

const (
	DriverMattn  = "sqlite3"
	DriverModern = "sqlite"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	queries
	db     *sql.DB
	driver string
}

// New opens dbPath with the default driver.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return Open(dbPath, DriverMattn)
}

// Open opens dbPath with the named driver and applies pending migrations.
func Open(dbPath, driver string) (*Store, error) {
	dsn, err := buildDSN(dbPath, driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrateUp(db, driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{queries: queries{q: db}, db: db, driver: driver}, nil
}

func buildDSN(dbPath, driver string) (string, error) {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	switch driver {
	case DriverMattn:
		return dbPath + sep + "_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000", nil
	case DriverModern:
		return dbPath + sep + "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate", nil
	default:
		return "", fmt.Errorf("unknown sqlite driver %q (want %q or %q)", driver, DriverMattn, DriverModern)
	}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver reports the driver name the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	// children first; accounts last
	tables := []string{
		"payment_allocations", "credit_card_payments", "funding_targets",
		"account_transfers", "envelope_transfers", "transactions",
		"envelopes", "accounts",
	}
	for _, table := range tables {
		if _, err := sqlTx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

// =============================================================================
// QUERIES - ledger.Store over either *sql.DB or *sql.Tx
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	q querier
}

var (
	_ ledger.TxStore = (*Store)(nil)
	_ ledger.Store   = (*queries)(nil)
)

// =============================================================================
// UTILITIES
// =============================================================================

// timeLayout is fixed-width so created_at sorts correctly as text.
const (
	timeLayout = "2006-01-02T15:04:05.000000000Z"
	dateLayout = "2006-01-02"
)

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }
func formatDate(t time.Time) string { return t.UTC().Format(dateLayout) }

// timeDecoder parses stored timestamps, keeping the first failure so a
// scan function can check once at the end.
type timeDecoder struct {
	err error
}

func (d *timeDecoder) time(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		d.fail(s, err)
		return time.Time{}
	}
	return t.UTC()
}

func (d *timeDecoder) date(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return d.time(s)
	}
	return t
}

func (d *timeDecoder) fail(s string, err error) {
	if d.err == nil {
		d.err = fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
}

// toCents converts a decimal to integer cents, rounding half away from zero.
func toCents(d decimal.Decimal) int64 {
	return d.Shift(ledger.MoneyPlaces).Round(0).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -ledger.MoneyPlaces)
}

func nullCents(d *decimal.Decimal) sql.NullInt64 {
	if d == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toCents(*d), Valid: true}
}

func centsPtr(n sql.NullInt64) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := fromCents(n.Int64)
	return &d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func anyArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
