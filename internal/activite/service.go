package activite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gilandre/emeraude-treasury/internal/currency"
	"github.com/gilandre/emeraude-treasury/internal/ledger"
)

// Service exposes activité operations.
type Service struct {
	repo  Repository
	rates *currency.Service
}

// NewService builds an activité service instance.
func NewService(repo Repository, rates *currency.Service) *Service {
	return &Service{repo: repo, rates: rates}
}

// CreateInput captures data required to open an activité.
type CreateInput struct {
	Code     string
	Label    string
	Currency string
	Budget   decimal.Decimal
}

// Create provisions an activité with zeroed running totals.
func (s *Service) Create(ctx context.Context, input CreateInput) (Activite, error) {
	if input.Code == "" {
		return Activite{}, fmt.Errorf("code is required: %w", ledger.ErrInvalidInput)
	}
	if input.Budget.Sign() < 0 {
		return Activite{}, fmt.Errorf("budget must not be negative: %w", ledger.ErrInvalidInput)
	}

	cur := input.Currency
	if cur == "" {
		cur = currency.ReportingCurrency
	}

	budgetXOF, rate, err := s.rates.ConvertToReporting(ctx, input.Budget, cur)
	if err != nil {
		return Activite{}, err
	}

	a := Activite{
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

	if err := s.repo.Create(ctx, a); err != nil {
		return Activite{}, err
	}
	return a, nil
}

// Get retrieves an activité with its current totals.
func (s *Service) Get(ctx context.Context, id string) (Activite, error) {
	return s.repo.Get(ctx, id)
}

// List returns all activités.
func (s *Service) List(ctx context.Context) ([]Activite, error) {
	return s.repo.List(ctx)
}

// UpdateStatus transitions the activité between ACTIF and ARCHIVE.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) error {
	switch status {
	case ledger.OwnerStatusActif, ledger.OwnerStatusArchive:
	default:
		return fmt.Errorf("unknown statut %q: %w", status, ledger.ErrInvalidInput)
	}
	return s.repo.UpdateStatus(ctx, id, status)
}
