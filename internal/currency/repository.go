package currency

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists the exchange-rate table.
type Repository interface {
	Latest(ctx context.Context, code string) (Rate, error)
	Upsert(ctx context.Context, rate Rate) error
	List(ctx context.Context) ([]Rate, error)
}

// PostgresRepository stores exchange rates in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a rate repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Latest returns the most recent effective rate for the currency code.
func (r *PostgresRepository) Latest(ctx context.Context, code string) (Rate, error) {
	const query = `
        SELECT code, rate, effective_date
        FROM exchange_rates
        WHERE code = $1
        ORDER BY effective_date DESC
        LIMIT 1`
	var rate Rate
	var effective time.Time
	if err := r.db.QueryRow(ctx, query, code).Scan(&rate.Code, &rate.Rate, &effective); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rate{}, ErrRateNotFound
		}
		return Rate{}, err
	}
	rate.EffectiveDate = effective.UTC()
	return rate, nil
}

// Upsert records a rate effective at the given date.
func (r *PostgresRepository) Upsert(ctx context.Context, rate Rate) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO exchange_rates (code, rate, effective_date) VALUES ($1, $2, $3)
        ON CONFLICT (code, effective_date) DO UPDATE SET rate = EXCLUDED.rate`,
		rate.Code, rate.Rate, rate.EffectiveDate.UTC())
	return err
}

// List returns the latest rate per currency code.
func (r *PostgresRepository) List(ctx context.Context) ([]Rate, error) {
	const query = `
        SELECT DISTINCT ON (code) code, rate, effective_date
        FROM exchange_rates
        ORDER BY code, effective_date DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rates []Rate
	for rows.Next() {
		var rate Rate
		var effective time.Time
		if err := rows.Scan(&rate.Code, &rate.Rate, &effective); err != nil {
			return nil, err
		}
		rate.EffectiveDate = effective.UTC()
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}
