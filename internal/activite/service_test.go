package activite

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/gilandre/emeraude-treasury/internal/currency"
	"github.com/gilandre/emeraude-treasury/internal/ledger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store := ledger.NewMemoryStore()
	return NewService(NewMemoryRepository(store), currency.NewService(currency.NewMemoryRepository(), 0))
}

func TestCreateDefaultsAndSeedsOwner(t *testing.T) {
	svc := newTestService(t)

	a, err := svc.Create(context.Background(), CreateInput{Code: "ACT-001", Label: "Frais chantier", Budget: decimal.NewFromInt(2000)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Currency != currency.ReportingCurrency {
		t.Fatalf("expected XOF default, got %s", a.Currency)
	}
	if a.Status != ledger.OwnerStatusActif {
		t.Fatalf("expected ACTIF, got %s", a.Status)
	}

	got, err := svc.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Solde.IsZero() {
		t.Fatalf("expected zeroed totals, got solde %s", got.Solde)
	}
}

func TestStatusOnlyTogglesBetweenActifAndArchive(t *testing.T) {
	svc := newTestService(t)

	a, err := svc.Create(context.Background(), CreateInput{Code: "ACT-002", Budget: decimal.NewFromInt(1)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.UpdateStatus(context.Background(), a.ID, ledger.OwnerStatusArchive); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := svc.UpdateStatus(context.Background(), a.ID, ledger.OwnerStatusSuspendu); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Fatalf("expected rejection of SUSPENDU on an activité, got %v", err)
	}
}
