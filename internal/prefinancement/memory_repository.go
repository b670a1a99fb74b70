package prefinancement

import (
	"context"

	"github.com/gilandre/emeraude-treasury/internal/ledger"
)

type memoryRepository struct {
	store *ledger.MemoryStore
}

// NewMemoryRepository constructs a repository sharing facility state with the
// in-memory ledger store, so draws recorded by the engine are visible here.
func NewMemoryRepository(store *ledger.MemoryStore) Repository {
	return &memoryRepository{store: store}
}

func (r *memoryRepository) Create(_ context.Context, p ledger.Prefinancement) error {
	if _, ok := r.store.PrefinancementSnapshot(p.MarcheID); ok {
		return ErrAlreadyExists
	}
	r.store.SeedPrefinancement(p)
	return nil
}

func (r *memoryRepository) GetByMarche(_ context.Context, marcheID string) (ledger.Prefinancement, error) {
	p, ok := r.store.PrefinancementSnapshot(marcheID)
	if !ok {
		return ledger.Prefinancement{}, ledger.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepository) List(ctx context.Context) ([]ledger.Prefinancement, error) {
	return r.store.ListPrefinancements(ctx)
}

func (r *memoryRepository) SetActive(_ context.Context, marcheID string, active bool) error {
	p, ok := r.store.PrefinancementSnapshot(marcheID)
	if !ok {
		return ledger.ErrNotFound
	}
	p.Active = active
	r.store.SeedPrefinancement(p)
	return nil
}
