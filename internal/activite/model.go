package activite

import (
	"time"

	"github.com/shopspring/decimal"
)

// Activite is a standalone budget envelope with bidirectional entries. Unlike
// a marché it carries no préfinancement and its solde may go negative: it
// behaves as a loose expense tracker, not a hard treasury constraint.
type Activite struct {
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
