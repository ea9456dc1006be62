package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/septivank/meter-reading-service/internal/reading"
)

const measureColumns = `measure_uuid, customer_code, measure_datetime, measure_type, measure_value, image_url, has_confirmed`

// Postgres handles reading persistence on PostgreSQL
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a new PostgreSQL reading store
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// FindInPeriod returns a reading of the customer and category measured in [from, to)
func (r *Postgres) FindInPeriod(ctx context.Context, customerCode string, category reading.Category, from, to time.Time) (*reading.Reading, error) {
	query := `
		SELECT ` + measureColumns + `
		FROM measures
		WHERE customer_code = $1 AND measure_type = $2
		  AND measure_datetime >= $3 AND measure_datetime < $4
		ORDER BY measure_datetime
		LIMIT 1
	`

	m, err := scanReading(r.pool.QueryRow(ctx, query, customerCode, string(category), from, to))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, reading.StoreError("failed to query readings in period", err)
	}
	return m, nil
}

// Create inserts a reading
func (r *Postgres) Create(ctx context.Context, m *reading.Reading) error {
	query := `
		INSERT INTO measures (` + measureColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		m.ID,
		m.CustomerCode,
		m.MeasuredAt,
		string(m.Category),
		m.Value,
		m.ImageURL,
		m.Confirmed,
	)
	if err != nil {
		return reading.StoreError("failed to insert reading", err)
	}
	return nil
}

// FindByID retrieves a reading by id
func (r *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*reading.Reading, error) {
	query := `SELECT ` + measureColumns + ` FROM measures WHERE measure_uuid = $1`

	m, err := scanReading(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, reading.ErrNotFound
	}
	if err != nil {
		return nil, reading.StoreError("failed to query reading", err)
	}
	return m, nil
}

// Confirm sets the value and flips confirmed, only while the reading is unconfirmed
func (r *Postgres) Confirm(ctx context.Context, id uuid.UUID, value int64) error {
	query := `
		UPDATE measures
		SET measure_value = $2, has_confirmed = TRUE
		WHERE measure_uuid = $1 AND has_confirmed = FALSE
	`

	tag, err := r.pool.Exec(ctx, query, id, value)
	if err != nil {
		return reading.StoreError("failed to confirm reading", err)
	}
	if tag.RowsAffected() == 0 {
		return reading.ErrAlreadyConfirmed
	}
	return nil
}

// List returns readings of a customer and category ordered by measurement time
func (r *Postgres) List(ctx context.Context, customerCode string, category reading.Category) ([]reading.Reading, error) {
	query := `
		SELECT ` + measureColumns + `
		FROM measures
		WHERE customer_code = $1 AND measure_type = $2
		ORDER BY measure_datetime
	`

	rows, err := r.pool.Query(ctx, query, customerCode, string(category))
	if err != nil {
		return nil, reading.StoreError("failed to query readings", err)
	}
	defer rows.Close()

	var readings []reading.Reading
	for rows.Next() {
		m, err := scanReading(rows)
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
func (r *Postgres) RecentValues(ctx context.Context, customerCode string, category reading.Category, before time.Time, limit int) ([]int64, error) {
	query := `
		SELECT COALESCE(measure_value, 0)
		FROM measures
		WHERE customer_code = $1 AND measure_type = $2 AND measure_datetime < $3
		ORDER BY measure_datetime DESC
		LIMIT $4
	`

	rows, err := r.pool.Query(ctx, query, customerCode, string(category), before, limit)
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

func scanReading(row pgx.Row) (*reading.Reading, error) {
	var (
		m        reading.Reading
		category string
		value    *int64
	)
	err := row.Scan(
		&m.ID,
		&m.CustomerCode,
		&m.MeasuredAt,
		&category,
		&value,
		&m.ImageURL,
		&m.Confirmed,
	)
	if err != nil {
		return nil, err
	}

	m.Category = reading.Category(category)
	if value != nil {
		m.Value = *value
	}
	m.MeasuredAt = m.MeasuredAt.UTC()
	return &m, nil
}
