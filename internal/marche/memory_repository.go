package marche

import (
	"context"
	"errors"
	"sync"

	"github.com/gilandre/emeraude-treasury/internal/ledger"
)

type memoryRepository struct {
	mu    sync.RWMutex
	meta  map[string]Marche
	store *ledger.MemoryStore
}

// NewMemoryRepository constructs an in-memory repository sharing owner state
// with the in-memory ledger store, so movements applied by the engine show up
// in the marché's running totals.
func NewMemoryRepository(store *ledger.MemoryStore) Repository {
	return &memoryRepository{meta: make(map[string]Marche), store: store}
}

func (r *memoryRepository) Create(_ context.Context, m Marche) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.meta[m.ID]; exists {
		return errors.New("marché exists")
	}
	r.meta[m.ID] = m
	r.store.SeedOwner(ownerOf(m))
	return nil
}

func (r *memoryRepository) Get(ctx context.Context, id string) (Marche, error) {
	r.mu.RLock()
	m, ok := r.meta[id]
	r.mu.RUnlock()
	if !ok {
		return Marche{}, ledger.ErrNotFound
	}
	return r.withTotals(ctx, m)
}

func (r *memoryRepository) List(ctx context.Context) ([]Marche, error) {
	r.mu.RLock()
	marches := make([]Marche, 0, len(r.meta))
	for _, m := range r.meta {
		marches = append(marches, m)
	}
	r.mu.RUnlock()

	for i := range marches {
		m, err := r.withTotals(ctx, marches[i])
		if err != nil {
			return nil, err
		}
		marches[i] = m
	}
	return marches, nil
}

func (r *memoryRepository) UpdateStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meta[id]
	if !ok {
		return ledger.ErrNotFound
	}
	m.Status = status
	r.meta[id] = m
	return r.store.SetOwnerStatus(ledger.OwnerRef{Kind: ledger.OwnerMarche, ID: id}, status)
}

func (r *memoryRepository) withTotals(ctx context.Context, m Marche) (Marche, error) {
	owner, err := r.store.GetOwner(ctx, ledger.OwnerRef{Kind: ledger.OwnerMarche, ID: m.ID})
	if err != nil {
		return Marche{}, err
	}
	m.Status = owner.Status
	m.CashIn = owner.CashIn
	m.CashOut = owner.CashOut
	m.Solde = owner.Solde
	m.CashInXOF = owner.CashInXOF
	m.CashOutXOF = owner.CashOutXOF
	m.SoldeXOF = owner.SoldeXOF
	return m, nil
}

func ownerOf(m Marche) ledger.Owner {
	return ledger.Owner{
		Ref:       ledger.OwnerRef{Kind: ledger.OwnerMarche, ID: m.ID},
		Code:      m.Code,
		Label:     m.Label,
		Currency:  m.Currency,
		Status:    m.Status,
		Budget:    m.Budget,
		BudgetXOF: m.BudgetXOF,
	}
}
