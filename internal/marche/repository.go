package marche

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gilandre/emeraude-treasury/internal/ledger"
)

// Repository persists marché records.
type Repository interface {
	Create(ctx context.Context, m Marche) error
	Get(ctx context.Context, id string) (Marche, error)
	List(ctx context.Context) ([]Marche, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// PostgresRepository stores marchés in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const columns = `id, code, label, currency, status, budget, budget_xof, creation_rate,
        cash_in, cash_out, solde, cash_in_xof, cash_out_xof, solde_xof, created_at`

// Create inserts a marché with zeroed running totals.
func (r *PostgresRepository) Create(ctx context.Context, m Marche) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO marches (id, code, label, currency, status, budget, budget_xof, creation_rate,
            cash_in, cash_out, solde, cash_in_xof, cash_out_xof, solde_xof, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, 0, 0, 0, 0, 0, $9)`,
		m.ID, m.Code, m.Label, m.Currency, m.Status, m.Budget, m.BudgetXOF, m.CreationRate,
		m.CreatedAt.UTC())
	return err
}

// Get fetches a marché by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Marche, error) {
	row := r.db.QueryRow(ctx, `SELECT `+columns+` FROM marches WHERE id = $1`, id)
	m, err := scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Marche{}, ledger.ErrNotFound
		}
		return Marche{}, err
	}
	return m, nil
}

// List returns all marchés ordered by code.
func (r *PostgresRepository) List(ctx context.Context) ([]Marche, error) {
	rows, err := r.db.Query(ctx, `SELECT `+columns+` FROM marches ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var marches []Marche
	for rows.Next() {
		m, err := scan(rows)
		if err != nil {
			return nil, err
		}
		marches = append(marches, m)
	}
	return marches, rows.Err()
}

// UpdateStatus changes the marché lifecycle status.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id, status string) error {
	tag, err := r.db.Exec(ctx, `UPDATE marches SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scan(row rowScanner) (Marche, error) {
	var m Marche
	var createdAt time.Time
	if err := row.Scan(&m.ID, &m.Code, &m.Label, &m.Currency, &m.Status,
		&m.Budget, &m.BudgetXOF, &m.CreationRate,
		&m.CashIn, &m.CashOut, &m.Solde, &m.CashInXOF, &m.CashOutXOF, &m.SoldeXOF,
		&createdAt); err != nil {
		return Marche{}, err
	}
	m.CreatedAt = createdAt.UTC()
	return m, nil
}
