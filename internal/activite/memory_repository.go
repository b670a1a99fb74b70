package activite

import (
	"context"
	"errors"
	"sync"

	"github.com/gilandre/emeraude-treasury/internal/ledger"
)

type memoryRepository struct {
	mu    sync.RWMutex
	meta  map[string]Activite
	store *ledger.MemoryStore
}

// NewMemoryRepository constructs an in-memory repository sharing owner state
// with the in-memory ledger store.
func NewMemoryRepository(store *ledger.MemoryStore) Repository {
	return &memoryRepository{meta: make(map[string]Activite), store: store}
}

func (r *memoryRepository) Create(_ context.Context, a Activite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.meta[a.ID]; exists {
		return errors.New("activité exists")
	}
	r.meta[a.ID] = a
	r.store.SeedOwner(ledger.Owner{
		Ref:       ledger.OwnerRef{Kind: ledger.OwnerActivite, ID: a.ID},
		Code:      a.Code,
		Label:     a.Label,
		Currency:  a.Currency,
		Status:    a.Status,
		Budget:    a.Budget,
		BudgetXOF: a.BudgetXOF,
	})
	return nil
}

func (r *memoryRepository) Get(ctx context.Context, id string) (Activite, error) {
	r.mu.RLock()
	a, ok := r.meta[id]
	r.mu.RUnlock()
	if !ok {
		return Activite{}, ledger.ErrNotFound
	}
	return r.withTotals(ctx, a)
}

func (r *memoryRepository) List(ctx context.Context) ([]Activite, error) {
	r.mu.RLock()
	activites := make([]Activite, 0, len(r.meta))
	for _, a := range r.meta {
		activites = append(activites, a)
	}
	r.mu.RUnlock()

	for i := range activites {
		a, err := r.withTotals(ctx, activites[i])
		if err != nil {
			return nil, err
		}
		activites[i] = a
	}
	return activites, nil
}

func (r *memoryRepository) UpdateStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.meta[id]
	if !ok {
		return ledger.ErrNotFound
	}
	a.Status = status
	r.meta[id] = a
	return r.store.SetOwnerStatus(ledger.OwnerRef{Kind: ledger.OwnerActivite, ID: id}, status)
}

func (r *memoryRepository) withTotals(ctx context.Context, a Activite) (Activite, error) {
	owner, err := r.store.GetOwner(ctx, ledger.OwnerRef{Kind: ledger.OwnerActivite, ID: a.ID})
	if err != nil {
		return Activite{}, err
	}
	a.Status = owner.Status
	a.CashIn = owner.CashIn
	a.CashOut = owner.CashOut
	a.Solde = owner.Solde
	a.CashInXOF = owner.CashInXOF
	a.CashOutXOF = owner.CashOutXOF
	a.SoldeXOF = owner.SoldeXOF
	return a, nil
}
