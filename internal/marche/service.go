package marche

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gilandre/emeraude-treasury/internal/currency"
	"github.com/gilandre/emeraude-treasury/internal/ledger"
)

// Service exposes marché operations. Creation snapshots the budget in the
// reporting currency at the rate in effect at that moment; the snapshot is
// never restated afterwards.
type Service struct {
	repo  Repository
	rates *currency.Service
}

// NewService builds a marché service instance.
func NewService(repo Repository, rates *currency.Service) *Service {
	return &Service{repo: repo, rates: rates}
}

// CreateInput captures data required to open a marché.
type CreateInput struct {
	Code     string
	Label    string
	Currency string
	Budget   decimal.Decimal
}

// Create provisions a marché with zeroed running totals.
func (s *Service) Create(ctx context.Context, input CreateInput) (Marche, error) {
	if input.Code == "" {
		return Marche{}, fmt.Errorf("code is required: %w", ledger.ErrInvalidInput)
	}
	if input.Budget.Sign() < 0 {
		return Marche{}, fmt.Errorf("budget must not be negative: %w", ledger.ErrInvalidInput)
	}

	cur := input.Currency
	if cur == "" {
		cur = currency.ReportingCurrency
	}

	budgetXOF, rate, err := s.rates.ConvertToReporting(ctx, input.Budget, cur)
	if err != nil {
		return Marche{}, err
	}

	m := Marche{
		ID:           uuid.NewString(),
		Code:         input.Code,
		Label:        input.Label,
		Currency:     cur,
		Budget:       input.Budget,
		BudgetXOF:    budgetXOF,
		CreationRate: rate,
		Status:       ledger.OwnerStatusActif,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return Marche{}, err
	}
	return m, nil
}

// Get retrieves a marché with its current totals.
func (s *Service) Get(ctx context.Context, id string) (Marche, error) {
	return s.repo.Get(ctx, id)
}

// List returns all marchés.
func (s *Service) List(ctx context.Context) ([]Marche, error) {
	return s.repo.List(ctx)
}

// UpdateStatus transitions the marché lifecycle status.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) error {
	switch status {
	case ledger.OwnerStatusActif, ledger.OwnerStatusSuspendu, ledger.OwnerStatusTermine:
	default:
		return fmt.Errorf("unknown statut %q: %w", status, ledger.ErrInvalidInput)
	}
	return s.repo.UpdateStatus(ctx, id, status)
}
