package currency

import (
	"context"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu    sync.RWMutex
	rates map[string][]Rate
}

// NewMemoryRepository constructs an in-memory rate table for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{rates: make(map[string][]Rate)}
}

func (r *memoryRepository) Latest(ctx context.Context, code string) (Rate, error) {
	if err := ctx.Err(); err != nil {
		return Rate{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	history, ok := r.rates[code]
	if !ok || len(history) == 0 {
		return Rate{}, ErrRateNotFound
	}
	return history[0], nil
}

func (r *memoryRepository) Upsert(_ context.Context, rate Rate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	history := r.rates[rate.Code]
	replaced := false
	for i := range history {
		if history[i].EffectiveDate.Equal(rate.EffectiveDate) {
			history[i] = rate
			replaced = true
			break
		}
	}
	if !replaced {
		history = append(history, rate)
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].EffectiveDate.After(history[j].EffectiveDate)
	})
	r.rates[rate.Code] = history
	return nil
}

func (r *memoryRepository) List(_ context.Context) ([]Rate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rates := make([]Rate, 0, len(r.rates))
	for _, history := range r.rates {
		if len(history) > 0 {
			rates = append(rates, history[0])
		}
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i].Code < rates[j].Code })
	return rates, nil
}
