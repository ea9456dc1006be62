package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/septivank/meter-reading-service/internal/reading"
)

// Fixed-width UTC layout so that TEXT comparison orders like time.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLite handles reading persistence on a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and migrates) a SQLite store at path.
// Use ":memory:" for an in-memory database.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	store := &SQLite{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS measures (
		measure_uuid TEXT PRIMARY KEY,
		customer_code TEXT NOT NULL,
		measure_datetime TEXT NOT NULL,
		measure_type TEXT NOT NULL,
		measure_value INTEGER,
		image_url TEXT NOT NULL,
		has_confirmed INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_measures_customer_type_datetime
		ON measures(customer_code, measure_type, measure_datetime);
	`

	_, err := s.db.Exec(schema)
	return err
}

// FindInPeriod returns a reading of the customer and category measured in [from, to)
func (s *SQLite) FindInPeriod(ctx context.Context, customerCode string, category reading.Category, from, to time.Time) (*reading.Reading, error) {
	query := `
		SELECT ` + measureColumns + `
		FROM measures
		WHERE customer_code = ? AND measure_type = ?
		  AND measure_datetime >= ? AND measure_datetime < ?
		ORDER BY measure_datetime
		LIMIT 1
	`

	m, err := scanSQLiteReading(s.db.QueryRowContext(ctx, query,
		customerCode, string(category), formatTime(from), formatTime(to)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, reading.StoreError("failed to query readings in period", err)
	}
	return m, nil
}

// Create inserts a reading
func (s *SQLite) Create(ctx context.Context, m *reading.Reading) error {
	query := `
		INSERT INTO measures (` + measureColumns + `, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		m.ID.String(),
		m.CustomerCode,
		formatTime(m.MeasuredAt),
		string(m.Category),
		m.Value,
		m.ImageURL,
		m.Confirmed,
		formatTime(time.Now()),
	)
	if err != nil {
		return reading.StoreError("failed to insert reading", err)
	}
	return nil
}

// FindByID retrieves a reading by id
func (s *SQLite) FindByID(ctx context.Context, id uuid.UUID) (*reading.Reading, error) {
	query := `SELECT ` + measureColumns + ` FROM measures WHERE measure_uuid = ?`

	m, err := scanSQLiteReading(s.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reading.ErrNotFound
	}
	if err != nil {
		return nil, reading.StoreError("failed to query reading", err)
	}
	return m, nil
}

// Confirm sets the value and flips confirmed, only while the reading is unconfirmed
func (s *SQLite) Confirm(ctx context.Context, id uuid.UUID, value int64) error {
	query := `
		UPDATE measures
		SET measure_value = ?, has_confirmed = 1
		WHERE measure_uuid = ? AND has_confirmed = 0
	`

	res, err := s.db.ExecContext(ctx, query, value, id.String())
	if err != nil {
		return reading.StoreError("failed to confirm reading", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return reading.StoreError("failed to confirm reading", err)
	}
	if n == 0 {
		return reading.ErrAlreadyConfirmed
	}
	return nil
}

// List returns readings of a customer and category ordered by measurement time
func (s *SQLite) List(ctx context.Context, customerCode string, category reading.Category) ([]reading.Reading, error) {
	query := `
		SELECT ` + measureColumns + `
		FROM measures
		WHERE customer_code = ? AND measure_type = ?
		ORDER BY measure_datetime
	`

	rows, err := s.db.QueryContext(ctx, query, customerCode, string(category))
	if err != nil {
		return nil, reading.StoreError("failed to query readings", err)
	}
	defer rows.Close()

	var readings []reading.Reading
	for rows.Next() {
		m, err := scanSQLiteReading(rows)
		if err != nil {
			return nil, reading.StoreError("failed to scan reading", err)
		}
		readings = append(readings, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, reading.StoreError("rows iteration error", err)
	}

	return readings, nil
}

// RecentValues gets values measured before the given instant, newest first
func (s *SQLite) RecentValues(ctx context.Context, customerCode string, category reading.Category, before time.Time, limit int) ([]int64, error) {
	query := `
		SELECT COALESCE(measure_value, 0)
		FROM measures
		WHERE customer_code = ? AND measure_type = ? AND measure_datetime < ?
		ORDER BY measure_datetime DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, customerCode, string(category), formatTime(before), limit)
	if err != nil {
		return nil, reading.StoreError("failed to query recent readings", err)
	}
	defer rows.Close()

	var values []int64
	for rows.Next() {
		var value int64
		if err := rows.Scan(&value); err != nil {
			return nil, reading.StoreError("failed to scan value", err)
		}
		values = append(values, value)
	}

	if err := rows.Err(); err != nil {
		return nil, reading.StoreError("rows iteration error", err)
	}

	return values, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteReading(row rowScanner) (*reading.Reading, error) {
	var (
		m          reading.Reading
		id         string
		measuredAt string
		category   string
		value      sql.NullInt64
	)
	err := row.Scan(
		&id,
		&m.CustomerCode,
		&measuredAt,
		&category,
		&value,
		&m.ImageURL,
		&m.Confirmed,
	)
	if err != nil {
		return nil, err
	}

	if m.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid measure_uuid %q: %w", id, err)
	}
	if m.MeasuredAt, err = time.Parse(sqliteTimeLayout, measuredAt); err != nil {
		return nil, fmt.Errorf("invalid measure_datetime %q: %w", measuredAt, err)
	}
	m.Category = reading.Category(category)
	m.Value = value.Int64
	return &m, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}
