package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const ownerColumns = `id, code, label, currency, status, budget, budget_xof,
        cash_in, cash_out, solde, cash_in_xof, cash_out_xof, solde_xof`

const movementColumns = `id, owner_kind, owner_id, kind, amount, amount_xof, rate, date,
        source, sens, status, reference, description, categorie, beneficiaire, mode_paiement,
        created_at, updated_at`

// PostgresStore persists the ledger in PostgreSQL. Atomic runs its callback
// inside one transaction holding a FOR UPDATE lock on the owner's aggregate
// row, so concurrent mutations on the same owner serialize instead of both
// passing the sufficiency check on a stale balance.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func ownerTable(kind OwnerKind) (string, error) {
	switch kind {
	case OwnerMarche:
		return "marches", nil
	case OwnerActivite:
		return "activites", nil
	default:
		return "", fmt.Errorf("unknown owner kind %q: %w", kind, ErrNotFound)
	}
}

// Atomic begins a transaction, locks the owner row, runs fn and commits.
// Serialization and deadlock failures surface as ErrConcurrencyConflict so
// callers can retry the whole operation from the balance read.
func (s *PostgresStore) Atomic(ctx context.Context, owner OwnerRef, fn func(tx Tx) error) error {
	table, err := ownerTable(owner.Kind)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapPgError(err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 FOR UPDATE`, ownerColumns, table)
	loaded, err := scanOwner(tx.QueryRow(ctx, query, owner.ID), owner.Kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s %s: %w", owner.Kind, owner.ID, ErrNotFound)
		}
		return mapPgError(err)
	}

	ptx := &pgTx{tx: tx, owner: loaded, table: table}
	if err := fn(ptx); err != nil {
		return mapPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err)
	}
	return nil
}

// FindMovement resolves a movement without locking; used to locate the owner
// before opening the atomic unit.
func (s *PostgresStore) FindMovement(ctx context.Context, id string) (Movement, error) {
	query := fmt.Sprintf(`SELECT %s FROM mouvements WHERE id = $1`, movementColumns)
	mv, err := scanMovement(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Movement{}, fmt.Errorf("movement %s: %w", id, ErrNotFound)
		}
		return Movement{}, err
	}
	return mv, nil
}

// GetOwner reads an owner snapshot without locking.
func (s *PostgresStore) GetOwner(ctx context.Context, ref OwnerRef) (Owner, error) {
	table, err := ownerTable(ref.Kind)
	if err != nil {
		return Owner{}, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, ownerColumns, table)
	owner, err := scanOwner(s.db.QueryRow(ctx, query, ref.ID), ref.Kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Owner{}, fmt.Errorf("%s %s: %w", ref.Kind, ref.ID, ErrNotFound)
		}
		return Owner{}, err
	}
	return owner, nil
}

// ListMovements returns the owner's movements ordered by date; zero bounds
// are unbounded.
func (s *PostgresStore) ListMovements(ctx context.Context, owner OwnerRef, from, to time.Time) ([]Movement, error) {
	query := fmt.Sprintf(`SELECT %s FROM mouvements WHERE owner_kind = $1 AND owner_id = $2`, movementColumns)
	args := []any{string(owner.Kind), owner.ID}
	if !from.IsZero() {
		args = append(args, from.UTC())
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to.UTC())
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}
	query += " ORDER BY date, created_at"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		mv, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, mv)
	}
	return movements, rows.Err()
}

// ListOwners returns every owner of the given kind.
func (s *PostgresStore) ListOwners(ctx context.Context, kind OwnerKind) ([]Owner, error) {
	table, err := ownerTable(kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY code`, ownerColumns, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []Owner
	for rows.Next() {
		owner, err := scanOwner(rows, kind)
		if err != nil {
			return nil, err
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

// ListPrefinancements returns every credit facility.
func (s *PostgresStore) ListPrefinancements(ctx context.Context) ([]Prefinancement, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, marche_id, authorized, utilized, remaining,
               authorized_xof, utilized_xof, remaining_xof, active, created_at
        FROM prefinancements ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facilities []Prefinancement
	for rows.Next() {
		var p Prefinancement
		var createdAt time.Time
		if err := rows.Scan(&p.ID, &p.MarcheID, &p.Authorized, &p.Utilized, &p.Remaining,
			&p.AuthorizedXOF, &p.UtilizedXOF, &p.RemainingXOF, &p.Active, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = createdAt.UTC()
		facilities = append(facilities, p)
	}
	return facilities, rows.Err()
}

type pgTx struct {
	tx    pgx.Tx
	owner Owner
	table string
}

func (t *pgTx) Owner() Owner { return t.owner }

func (t *pgTx) UpdateAggregates(ctx context.Context, agg Aggregates) error {
	query := fmt.Sprintf(`
        UPDATE %s SET cash_in = $2, cash_out = $3, solde = $4,
               cash_in_xof = $5, cash_out_xof = $6, solde_xof = $7
        WHERE id = $1`, t.table)
	_, err := t.tx.Exec(ctx, query, t.owner.Ref.ID,
		agg.CashIn, agg.CashOut, agg.Solde, agg.CashInXOF, agg.CashOutXOF, agg.SoldeXOF)
	return err
}

func (t *pgTx) Movement(ctx context.Context, id string) (Movement, error) {
	query := fmt.Sprintf(`SELECT %s FROM mouvements WHERE id = $1 AND owner_kind = $2 AND owner_id = $3`, movementColumns)
	mv, err := scanMovement(t.tx.QueryRow(ctx, query, id, string(t.owner.Ref.Kind), t.owner.Ref.ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Movement{}, fmt.Errorf("movement %s: %w", id, ErrNotFound)
		}
		return Movement{}, err
	}
	return mv, nil
}

func (t *pgTx) InsertMovement(ctx context.Context, m Movement) error {
	_, err := t.tx.Exec(ctx, `
        INSERT INTO mouvements (id, owner_kind, owner_id, kind, amount, amount_xof, rate, date,
            source, sens, status, reference, description, categorie, beneficiaire, mode_paiement,
            created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		m.ID, string(m.Owner.Kind), m.Owner.ID, string(m.Kind), m.Amount, m.AmountXOF, m.Rate, m.Date.UTC(),
		string(m.Source), string(m.Sens), string(m.Status), m.Reference, m.Description, m.Categorie,
		m.Beneficiaire, m.ModePaiement, m.CreatedAt.UTC(), m.UpdatedAt.UTC())
	return err
}

func (t *pgTx) UpdateMovement(ctx context.Context, m Movement) error {
	tag, err := t.tx.Exec(ctx, `
        UPDATE mouvements SET amount = $2, amount_xof = $3, rate = $4, date = $5,
            source = $6, sens = $7, status = $8, reference = $9, description = $10,
            categorie = $11, beneficiaire = $12, mode_paiement = $13, updated_at = $14
        WHERE id = $1`,
		m.ID, m.Amount, m.AmountXOF, m.Rate, m.Date.UTC(), string(m.Source), string(m.Sens),
		string(m.Status), m.Reference, m.Description, m.Categorie, m.Beneficiaire,
		m.ModePaiement, m.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("movement %s: %w", m.ID, ErrNotFound)
	}
	return nil
}

func (t *pgTx) DeleteMovement(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM mouvements WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("movement %s: %w", id, ErrNotFound)
	}
	return nil
}

func (t *pgTx) SumEntrees(ctx context.Context, excludeID string) (decimal.Decimal, error) {
	const query = `
        SELECT COALESCE(SUM(amount), 0) FROM mouvements
        WHERE owner_kind = $1 AND owner_id = $2
          AND (kind = 'ACCOMPTE' OR (kind = 'MOUVEMENT' AND sens = 'ENTREE'))
          AND ($3 = '' OR id <> $3)`
	var sum decimal.Decimal
	err := t.tx.QueryRow(ctx, query, string(t.owner.Ref.Kind), t.owner.Ref.ID, excludeID).Scan(&sum)
	return sum, err
}

func (t *pgTx) SumSortiesTresorerie(ctx context.Context, excludeID string) (decimal.Decimal, error) {
	const query = `
        SELECT COALESCE(SUM(amount), 0) FROM mouvements
        WHERE owner_kind = $1 AND owner_id = $2
          AND ((kind = 'DECAISSEMENT' AND source <> 'PREFINANCEMENT')
               OR (kind = 'MOUVEMENT' AND sens = 'SORTIE'))
          AND ($3 = '' OR id <> $3)`
	var sum decimal.Decimal
	err := t.tx.QueryRow(ctx, query, string(t.owner.Ref.Kind), t.owner.Ref.ID, excludeID).Scan(&sum)
	return sum, err
}

func (t *pgTx) Prefinancement(ctx context.Context) (Prefinancement, bool, error) {
	if t.owner.Ref.Kind != OwnerMarche {
		return Prefinancement{}, false, nil
	}
	const query = `
        SELECT id, marche_id, authorized, utilized, remaining,
               authorized_xof, utilized_xof, remaining_xof, active, created_at
        FROM prefinancements WHERE marche_id = $1 FOR UPDATE`
	var p Prefinancement
	var createdAt time.Time
	err := t.tx.QueryRow(ctx, query, t.owner.Ref.ID).Scan(
		&p.ID, &p.MarcheID, &p.Authorized, &p.Utilized, &p.Remaining,
		&p.AuthorizedXOF, &p.UtilizedXOF, &p.RemainingXOF, &p.Active, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Prefinancement{}, false, nil
		}
		return Prefinancement{}, false, err
	}
	p.CreatedAt = createdAt.UTC()
	return p, true, nil
}

func (t *pgTx) UpdatePrefinancement(ctx context.Context, p Prefinancement) error {
	_, err := t.tx.Exec(ctx, `
        UPDATE prefinancements SET utilized = $2, remaining = $3,
               utilized_xof = $4, remaining_xof = $5, active = $6
        WHERE id = $1`,
		p.ID, p.Utilized, p.Remaining, p.UtilizedXOF, p.RemainingXOF, p.Active)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOwner(row rowScanner, kind OwnerKind) (Owner, error) {
	var o Owner
	if err := row.Scan(&o.Ref.ID, &o.Code, &o.Label, &o.Currency, &o.Status,
		&o.Budget, &o.BudgetXOF, &o.CashIn, &o.CashOut, &o.Solde,
		&o.CashInXOF, &o.CashOutXOF, &o.SoldeXOF); err != nil {
		return Owner{}, err
	}
	o.Ref.Kind = kind
	return o, nil
}

func scanMovement(row rowScanner) (Movement, error) {
	var m Movement
	var ownerKind, kind, source, sens, status string
	var date, createdAt, updatedAt time.Time
	if err := row.Scan(&m.ID, &ownerKind, &m.Owner.ID, &kind, &m.Amount, &m.AmountXOF, &m.Rate, &date,
		&source, &sens, &status, &m.Reference, &m.Description, &m.Categorie, &m.Beneficiaire,
		&m.ModePaiement, &createdAt, &updatedAt); err != nil {
		return Movement{}, err
	}
	m.Owner.Kind = OwnerKind(ownerKind)
	m.Kind = Kind(kind)
	m.Source = Source(source)
	m.Sens = Sens(sens)
	m.Status = DecaissementStatus(status)
	m.Date = date.UTC()
	m.CreatedAt = createdAt.UTC()
	m.UpdatedAt = updatedAt.UTC()
	return m, nil
}

// mapPgError translates serialization and deadlock failures into
// ErrConcurrencyConflict; anything else passes through.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
		}
	}
	return err
}
