package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Tx is the view of the store inside one atomic ledger unit. The owner row is
// locked for the lifetime of the transaction, so the read-validate-write
// sequence of a mutation cannot interleave with another mutation on the same
// owner.
type Tx interface {
	// Owner returns the locked owner snapshot loaded when the transaction began.
	Owner() Owner

	// UpdateAggregates writes the owner's denormalized running totals.
	UpdateAggregates(ctx context.Context, agg Aggregates) error

	// Movement loads a movement of this owner; ErrNotFound if absent.
	Movement(ctx context.Context, id string) (Movement, error)

	InsertMovement(ctx context.Context, m Movement) error
	UpdateMovement(ctx context.Context, m Movement) error
	DeleteMovement(ctx context.Context, id string) error

	// SumEntrees totals the owner's inflow amounts (accomptes, mouvements
	// ENTREE), excluding excludeID when non-empty.
	SumEntrees(ctx context.Context, excludeID string) (decimal.Decimal, error)

	// SumSortiesTresorerie totals the outflows drawn on the cash position
	// (treasury décaissements, mouvements SORTIE), excluding excludeID when
	// non-empty. Préfinancement-sourced décaissements are accounted on the
	// credit facility and are not part of this sum.
	SumSortiesTresorerie(ctx context.Context, excludeID string) (decimal.Decimal, error)

	// Prefinancement loads (and locks) the owner's credit facility. The
	// second return is false when the marché has none; an activité never has
	// one.
	Prefinancement(ctx context.Context) (Prefinancement, bool, error)

	UpdatePrefinancement(ctx context.Context, p Prefinancement) error
}

// Store is the ledger persistence contract. Atomic is the single entry point
// for mutations: everything done inside fn commits or nothing does, with the
// owner's aggregate row locked throughout.
type Store interface {
	Atomic(ctx context.Context, owner OwnerRef, fn func(tx Tx) error) error

	// FindMovement resolves a movement (and thus its owner) without locking.
	FindMovement(ctx context.Context, id string) (Movement, error)

	// GetOwner reads an owner snapshot without locking.
	GetOwner(ctx context.Context, ref OwnerRef) (Owner, error)

	// ListMovements returns the owner's movements ordered by date. Zero
	// bounds mean unbounded.
	ListMovements(ctx context.Context, owner OwnerRef, from, to time.Time) ([]Movement, error)

	// ListOwners returns every owner of the given kind.
	ListOwners(ctx context.Context, kind OwnerKind) ([]Owner, error)

	// ListPrefinancements returns every credit facility.
	ListPrefinancements(ctx context.Context) ([]Prefinancement, error)
}
