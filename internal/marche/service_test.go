package marche

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gilandre/emeraude-treasury/internal/currency"
	"github.com/gilandre/emeraude-treasury/internal/ledger"
)

func newTestService(t *testing.T) (*Service, *ledger.MemoryStore) {
	t.Helper()
	store := ledger.NewMemoryStore()
	rateRepo := currency.NewMemoryRepository()
	err := rateRepo.Upsert(context.Background(), currency.Rate{
		Code:          "EUR",
		Rate:          decimal.RequireFromString("655.957"),
		EffectiveDate: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed rate: %v", err)
	}
	return NewService(NewMemoryRepository(store), currency.NewService(rateRepo, 0)), store
}

func TestCreateSnapshotsBudgetInReportingCurrency(t *testing.T) {
	svc, store := newTestService(t)

	m, err := svc.Create(context.Background(), CreateInput{
		Code:     "MAR-001",
		Label:    "Route nationale",
		Currency: "EUR",
		Budget:   decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !m.BudgetXOF.Equal(decimal.RequireFromString("655957.00")) {
		t.Fatalf("expected budget 655957.00 XOF, got %s", m.BudgetXOF)
	}
	if !m.CreationRate.Equal(decimal.RequireFromString("655.957")) {
		t.Fatalf("expected creation rate 655.957, got %s", m.CreationRate)
	}
	if m.Status != ledger.OwnerStatusActif {
		t.Fatalf("expected ACTIF, got %s", m.Status)
	}

	// The owner row must be visible to the ledger immediately.
	owner, err := store.GetOwner(context.Background(), ledger.OwnerRef{Kind: ledger.OwnerMarche, ID: m.ID})
	if err != nil {
		t.Fatalf("owner not seeded: %v", err)
	}
	if owner.Currency != "EUR" {
		t.Fatalf("expected owner currency EUR, got %s", owner.Currency)
	}
}

func TestCreateDefaultsToReportingCurrency(t *testing.T) {
	svc, _ := newTestService(t)

	m, err := svc.Create(context.Background(), CreateInput{Code: "MAR-002", Budget: decimal.NewFromInt(500)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.Currency != currency.ReportingCurrency {
		t.Fatalf("expected XOF default, got %s", m.Currency)
	}
	if !m.BudgetXOF.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected identity conversion, got %s", m.BudgetXOF)
	}
}

func TestCreateRejectsMissingCodeAndUnknownRate(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Create(context.Background(), CreateInput{Budget: decimal.NewFromInt(1)}); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	_, err := svc.Create(context.Background(), CreateInput{Code: "MAR-003", Currency: "GBP", Budget: decimal.NewFromInt(1)})
	if !errors.Is(err, currency.ErrRateNotFound) {
		t.Fatalf("expected ErrRateNotFound, got %v", err)
	}
}

func TestUpdateStatusValidatesTransitions(t *testing.T) {
	svc, _ := newTestService(t)

	m, err := svc.Create(context.Background(), CreateInput{Code: "MAR-004", Budget: decimal.NewFromInt(1)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.UpdateStatus(context.Background(), m.ID, ledger.OwnerStatusSuspendu); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	got, err := svc.Get(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != ledger.OwnerStatusSuspendu {
		t.Fatalf("expected SUSPENDU, got %s", got.Status)
	}

	if err := svc.UpdateStatus(context.Background(), m.ID, "ARCHIVE"); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Fatalf("expected rejection of ARCHIVE on a marché, got %v", err)
	}
	if err := svc.UpdateStatus(context.Background(), "missing", ledger.OwnerStatusActif); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
