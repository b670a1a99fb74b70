package activite

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gilandre/emeraude-treasury/internal/ledger"
)

// Repository persists activité records.
type Repository interface {
	Create(ctx context.Context, a Activite) error
	Get(ctx context.Context, id string) (Activite, error)
	List(ctx context.Context) ([]Activite, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// PostgresRepository stores activités in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const columns = `id, code, label, currency, status, budget, budget_xof, creation_rate,
        cash_in, cash_out, solde, cash_in_xof, cash_out_xof, solde_xof, created_at`

// Create inserts an activité with zeroed running totals.
func (r *PostgresRepository) Create(ctx context.Context, a Activite) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO activites (id, code, label, currency, status, budget, budget_xof, creation_rate,
            cash_in, cash_out, solde, cash_in_xof, cash_out_xof, solde_xof, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, 0, 0, 0, 0, 0, $9)`,
		a.ID, a.Code, a.Label, a.Currency, a.Status, a.Budget, a.BudgetXOF, a.CreationRate,
		a.CreatedAt.UTC())
	return err
}

// Get fetches an activité by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Activite, error) {
	row := r.db.QueryRow(ctx, `SELECT `+columns+` FROM activites WHERE id = $1`, id)
	a, err := scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Activite{}, ledger.ErrNotFound
		}
		return Activite{}, err
	}
	return a, nil
}

// List returns all activités ordered by code.
func (r *PostgresRepository) List(ctx context.Context) ([]Activite, error) {
	rows, err := r.db.Query(ctx, `SELECT `+columns+` FROM activites ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activites []Activite
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, err
		}
		activites = append(activites, a)
	}
	return activites, rows.Err()
}

// UpdateStatus changes the activité lifecycle status.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id, status string) error {
	tag, err := r.db.Exec(ctx, `UPDATE activites SET status = $2 WHERE id = $1`, id, status)
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

func scan(row rowScanner) (Activite, error) {
	var a Activite
	var createdAt time.Time
	if err := row.Scan(&a.ID, &a.Code, &a.Label, &a.Currency, &a.Status,
		&a.Budget, &a.BudgetXOF, &a.CreationRate,
		&a.CashIn, &a.CashOut, &a.Solde, &a.CashInXOF, &a.CashOutXOF, &a.SoldeXOF,
		&createdAt); err != nil {
		return Activite{}, err
	}
	a.CreatedAt = createdAt.UTC()
	return a, nil
}
