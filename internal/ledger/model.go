package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind discriminates the three movement shapes sharing one lifecycle.
type Kind string

const (
	// KindAccompte is a cash inflow against a marché.
	KindAccompte Kind = "ACCOMPTE"
	// KindDecaissement is a cash outflow against a marché, drawn from treasury
	// cash or from préfinancement credit.
	KindDecaissement Kind = "DECAISSEMENT"
	// KindMouvement is a bidirectional entry against an activité.
	KindMouvement Kind = "MOUVEMENT"
)

// Source discriminates where a décaissement draws its funds.
type Source string

const (
	SourceTresorerie     Source = "TRESORERIE"
	SourcePrefinancement Source = "PREFINANCEMENT"
)

// Sens gives the direction of an activité mouvement.
type Sens string

const (
	SensEntree Sens = "ENTREE"
	SensSortie Sens = "SORTIE"
)

// DecaissementStatus is the persisted disbursement status, orthogonal to the
// movement's committed amounts.
type DecaissementStatus string

const (
	StatusPrevu  DecaissementStatus = "PREVU"
	StatusValide DecaissementStatus = "VALIDE"
	StatusPaye   DecaissementStatus = "PAYE"
)

// OwnerKind discriminates the two containers movements belong to.
type OwnerKind string

const (
	OwnerMarche   OwnerKind = "marche"
	OwnerActivite OwnerKind = "activite"
)

// Owner lifecycle statuses. Only an ACTIF owner accepts new or edited
// movements.
const (
	OwnerStatusActif    = "ACTIF"
	OwnerStatusSuspendu = "SUSPENDU"
	OwnerStatusTermine  = "TERMINE"
	OwnerStatusArchive  = "ARCHIVE"
)

// OwnerRef identifies the marché or activité a movement belongs to.
type OwnerRef struct {
	Kind OwnerKind
	ID   string
}

// Owner is the aggregate snapshot of a marché or activité as seen by the
// ledger: identity, native currency and the denormalized running totals the
// engine maintains transactionally.
type Owner struct {
	Ref        OwnerRef
	Code       string
	Label      string
	Currency   string
	Status     string
	Budget     decimal.Decimal
	BudgetXOF  decimal.Decimal
	CashIn     decimal.Decimal
	CashOut    decimal.Decimal
	Solde      decimal.Decimal
	CashInXOF  decimal.Decimal
	CashOutXOF decimal.Decimal
	SoldeXOF   decimal.Decimal
}

// AllowsMutation reports whether movements may be created or edited under
// this owner.
func (o Owner) AllowsMutation() bool {
	return o.Status == OwnerStatusActif
}

// Movement is one monetary movement row. Amount is in the owner's native
// currency; AmountXOF and Rate are captured at write time and never restated
// when today's rate changes.
type Movement struct {
	ID           string
	Owner        OwnerRef
	Kind         Kind
	Amount       decimal.Decimal
	AmountXOF    decimal.Decimal
	Rate         decimal.Decimal
	Date         time.Time
	Source       Source             // décaissement only
	Sens         Sens               // activité mouvement only
	Status       DecaissementStatus // décaissement only
	Reference    string
	Description  string
	Categorie    string
	Beneficiaire string
	ModePaiement string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// capabilities is the small capability set that differentiates the three
// movement kinds inside one shared lifecycle.
type capabilities struct {
	hasSource bool
	hasSens   bool
	fundCheck bool
	ownerKind OwnerKind
}

var kindCapabilities = map[Kind]capabilities{
	KindAccompte:     {ownerKind: OwnerMarche},
	KindDecaissement: {hasSource: true, fundCheck: true, ownerKind: OwnerMarche},
	KindMouvement:    {hasSens: true, ownerKind: OwnerActivite},
}

func (k Kind) caps() capabilities {
	return kindCapabilities[k]
}

// Valid reports whether k is one of the three known kinds.
func (k Kind) Valid() bool {
	_, ok := kindCapabilities[k]
	return ok
}

// inflow reports whether the movement adds to the owner's cash-in total.
func (m Movement) inflow() bool {
	switch m.Kind {
	case KindAccompte:
		return true
	case KindMouvement:
		return m.Sens == SensEntree
	default:
		return false
	}
}

// drawsOnTreasury reports whether the movement touches the owner's cash
// position. A décaissement funded by préfinancement is accounted on the
// credit facility instead, leaving the cash totals untouched.
func (m Movement) drawsOnTreasury() bool {
	return m.Kind != KindDecaissement || m.Source != SourcePrefinancement
}

// Prefinancement is the optional one-per-marché credit facility. Utilized and
// Remaining move only in lockstep with the préfinancement-sourced
// décaissements that draw on it.
type Prefinancement struct {
	ID            string
	MarcheID      string
	Authorized    decimal.Decimal
	Utilized      decimal.Decimal
	Remaining     decimal.Decimal
	AuthorizedXOF decimal.Decimal
	UtilizedXOF   decimal.Decimal
	RemainingXOF  decimal.Decimal
	Active        bool
	CreatedAt     time.Time
}

// Headroom is the spendable credit still available on the facility.
func (p Prefinancement) Headroom() decimal.Decimal {
	headroom := p.Authorized.Sub(p.Utilized)
	if headroom.Sign() < 0 {
		return decimal.Zero
	}
	return headroom
}

// Aggregates is the denormalized running-total projection kept on the owner
// row and updated in the same transaction as the movement rows it mirrors.
type Aggregates struct {
	CashIn     decimal.Decimal
	CashOut    decimal.Decimal
	Solde      decimal.Decimal
	CashInXOF  decimal.Decimal
	CashOutXOF decimal.Decimal
	SoldeXOF   decimal.Decimal
}

func aggregatesOf(o Owner) Aggregates {
	return Aggregates{
		CashIn:     o.CashIn,
		CashOut:    o.CashOut,
		Solde:      o.Solde,
		CashInXOF:  o.CashInXOF,
		CashOutXOF: o.CashOutXOF,
		SoldeXOF:   o.SoldeXOF,
	}
}

func (o Owner) withAggregates(agg Aggregates) Owner {
	o.CashIn = agg.CashIn
	o.CashOut = agg.CashOut
	o.Solde = agg.Solde
	o.CashInXOF = agg.CashInXOF
	o.CashOutXOF = agg.CashOutXOF
	o.SoldeXOF = agg.SoldeXOF
	return o
}

// clampSub subtracts b from a with a floor of zero. The floor guards against
// accumulation drift across many reversals; correct sequential accounting
// never reaches it.
func clampSub(a, b decimal.Decimal) decimal.Decimal {
	out := a.Sub(b)
	if out.Sign() < 0 {
		return decimal.Zero
	}
	return out
}

// apply adds (or, reversed, removes) the movement's contribution to the
// running totals and recomputes both soldes.
func (agg Aggregates) apply(m Movement, reverse bool) Aggregates {
	switch {
	case m.inflow():
		if reverse {
			agg.CashIn = clampSub(agg.CashIn, m.Amount)
			agg.CashInXOF = clampSub(agg.CashInXOF, m.AmountXOF)
		} else {
			agg.CashIn = agg.CashIn.Add(m.Amount)
			agg.CashInXOF = agg.CashInXOF.Add(m.AmountXOF)
		}
	case m.drawsOnTreasury():
		if reverse {
			agg.CashOut = clampSub(agg.CashOut, m.Amount)
			agg.CashOutXOF = clampSub(agg.CashOutXOF, m.AmountXOF)
		} else {
			agg.CashOut = agg.CashOut.Add(m.Amount)
			agg.CashOutXOF = agg.CashOutXOF.Add(m.AmountXOF)
		}
	}
	agg.Solde = agg.CashIn.Sub(agg.CashOut)
	agg.SoldeXOF = agg.CashInXOF.Sub(agg.CashOutXOF)
	return agg
}
