package marche

import (
	"time"

	"github.com/shopspring/decimal"
)

// Marche is a budgeted engagement whose inflows and outflows the ledger
// tracks. The budget is snapshotted in XOF at the exchange rate in effect at
// creation; the running totals are maintained by the ledger engine only.
type Marche struct {
	ID           string
	Code         string
	Label        string
	Currency     string
	Budget       decimal.Decimal
	BudgetXOF    decimal.Decimal
	CreationRate decimal.Decimal
	CashIn       decimal.Decimal
	CashOut      decimal.Decimal
	Solde        decimal.Decimal
	CashInXOF    decimal.Decimal
	CashOutXOF   decimal.Decimal
	SoldeXOF     decimal.Decimal
	Status       string
	CreatedAt    time.Time
}
