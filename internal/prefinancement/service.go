package prefinancement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gilandre/emeraude-treasury/internal/currency"
	"github.com/gilandre/emeraude-treasury/internal/ledger"
)

// Service manages préfinancement facilities. Utilization figures are owned by
// the ledger engine; this service only opens facilities and toggles them.
type Service struct {
	repo  Repository
	store ledger.Store
	rates *currency.Service
}

// NewService builds a préfinancement service instance.
func NewService(repo Repository, store ledger.Store, rates *currency.Service) *Service {
	return &Service{repo: repo, store: store, rates: rates}
}

// Create opens a facility for a marché. The authorized amount is expressed in
// the marché's currency and snapshotted in XOF at the current rate.
func (s *Service) Create(ctx context.Context, marcheID string, authorized decimal.Decimal) (ledger.Prefinancement, error) {
	if authorized.Sign() <= 0 {
		return ledger.Prefinancement{}, fmt.Errorf("montant autorisé must be positive: %w", ledger.ErrInvalidInput)
	}

	owner, err := s.store.GetOwner(ctx, ledger.OwnerRef{Kind: ledger.OwnerMarche, ID: marcheID})
	if err != nil {
		return ledger.Prefinancement{}, err
	}

	authorizedXOF, _, err := s.rates.ConvertToReporting(ctx, authorized, owner.Currency)
	if err != nil {
		return ledger.Prefinancement{}, err
	}

	p := ledger.Prefinancement{
		ID:            uuid.NewString(),
		MarcheID:      marcheID,
		Authorized:    authorized,
		Utilized:      decimal.Zero,
		Remaining:     authorized,
		AuthorizedXOF: authorizedXOF,
		UtilizedXOF:   decimal.Zero,
		RemainingXOF:  authorizedXOF,
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return ledger.Prefinancement{}, err
	}
	return p, nil
}

// GetByMarche returns the facility attached to a marché.
func (s *Service) GetByMarche(ctx context.Context, marcheID string) (ledger.Prefinancement, error) {
	return s.repo.GetByMarche(ctx, marcheID)
}

// List returns every facility.
func (s *Service) List(ctx context.Context) ([]ledger.Prefinancement, error) {
	return s.repo.List(ctx)
}

// SetActive enables or disables new draws on the facility. Existing draws
// keep their accounting either way.
func (s *Service) SetActive(ctx context.Context, marcheID string, active bool) error {
	return s.repo.SetActive(ctx, marcheID, active)
}
