package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Balance is the derived spendable position of an owner: cash totals
// recomputed from raw movement rows plus préfinancement headroom.
type Balance struct {
	CashIn    decimal.Decimal
	CashOut   decimal.Decimal
	Headroom  decimal.Decimal
	Available decimal.Decimal
}

// computeBalance recomputes the available balance from the movement rows
// inside the transaction that will apply a mutation. excludeID removes one
// in-flight movement from the sums, so an edit is validated against the
// balance that would exist after its old version is reversed.
func computeBalance(ctx context.Context, tx Tx, excludeID string) (Balance, error) {
	cashIn, err := tx.SumEntrees(ctx, excludeID)
	if err != nil {
		return Balance{}, err
	}
	cashOut, err := tx.SumSortiesTresorerie(ctx, excludeID)
	if err != nil {
		return Balance{}, err
	}

	headroom := decimal.Zero
	pf, ok, err := tx.Prefinancement(ctx)
	if err != nil {
		return Balance{}, err
	}
	if ok && pf.Active {
		headroom = pf.Headroom()
	}

	return Balance{
		CashIn:    cashIn,
		CashOut:   cashOut,
		Headroom:  headroom,
		Available: cashIn.Sub(cashOut).Add(headroom),
	}, nil
}
