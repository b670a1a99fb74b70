package prefinancement

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gilandre/emeraude-treasury/internal/ledger"
)

// ErrAlreadyExists signals a second facility on the same marché.
var ErrAlreadyExists = errors.New("marché already has a préfinancement")

// Repository persists préfinancement facilities.
type Repository interface {
	Create(ctx context.Context, p ledger.Prefinancement) error
	GetByMarche(ctx context.Context, marcheID string) (ledger.Prefinancement, error)
	List(ctx context.Context) ([]ledger.Prefinancement, error)
	SetActive(ctx context.Context, marcheID string, active bool) error
}

// PostgresRepository stores facilities in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const columns = `id, marche_id, authorized, utilized, remaining,
        authorized_xof, utilized_xof, remaining_xof, active, created_at`

// Create inserts a facility. The unique index on marche_id enforces the
// one-per-marché rule.
func (r *PostgresRepository) Create(ctx context.Context, p ledger.Prefinancement) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO prefinancements (id, marche_id, authorized, utilized, remaining,
            authorized_xof, utilized_xof, remaining_xof, active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.MarcheID, p.Authorized, p.Utilized, p.Remaining,
		p.AuthorizedXOF, p.UtilizedXOF, p.RemainingXOF, p.Active, p.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}

// GetByMarche fetches the facility attached to a marché.
func (r *PostgresRepository) GetByMarche(ctx context.Context, marcheID string) (ledger.Prefinancement, error) {
	row := r.db.QueryRow(ctx, `SELECT `+columns+` FROM prefinancements WHERE marche_id = $1`, marcheID)
	p, err := scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Prefinancement{}, ledger.ErrNotFound
		}
		return ledger.Prefinancement{}, err
	}
	return p, nil
}

// List returns every facility ordered by marché.
func (r *PostgresRepository) List(ctx context.Context) ([]ledger.Prefinancement, error) {
	rows, err := r.db.Query(ctx, `SELECT `+columns+` FROM prefinancements ORDER BY marche_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facilities []ledger.Prefinancement
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		facilities = append(facilities, p)
	}
	return facilities, rows.Err()
}

// SetActive toggles whether the facility accepts new draws.
func (r *PostgresRepository) SetActive(ctx context.Context, marcheID string, active bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE prefinancements SET active = $2 WHERE marche_id = $1`, marcheID, active)
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

func scan(row rowScanner) (ledger.Prefinancement, error) {
	var p ledger.Prefinancement
	var createdAt time.Time
	if err := row.Scan(&p.ID, &p.MarcheID, &p.Authorized, &p.Utilized, &p.Remaining,
		&p.AuthorizedXOF, &p.UtilizedXOF, &p.RemainingXOF, &p.Active, &createdAt); err != nil {
		return ledger.Prefinancement{}, err
	}
	p.CreatedAt = createdAt.UTC()
	return p, nil
}
