package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStore is a concurrency-safe in-memory ledger store for tests and
// development setups without Postgres. Atomic serializes mutations per owner
// with a dedicated mutex, mirroring the row lock of the Postgres store, and
// stages writes so nothing applies when the callback fails.
type MemoryStore struct {
	mu              sync.Mutex
	locks           map[OwnerRef]*sync.Mutex
	owners          map[OwnerRef]Owner
	movements       map[string]Movement
	prefinancements map[string]Prefinancement // keyed by marché id
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:           make(map[OwnerRef]*sync.Mutex),
		owners:          make(map[OwnerRef]Owner),
		movements:       make(map[string]Movement),
		prefinancements: make(map[string]Prefinancement),
	}
}

func (s *MemoryStore) ownerLock(ref OwnerRef) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[ref]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[ref] = lock
	}
	return lock
}

// Atomic runs fn holding the owner's mutex; staged writes apply only when fn
// succeeds.
func (s *MemoryStore) Atomic(ctx context.Context, owner OwnerRef, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := s.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	snapshot, ok := s.owners[owner]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s %s: %w", owner.Kind, owner.ID, ErrNotFound)
	}

	tx := &memTx{store: s, owner: snapshot}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range tx.inserted {
		s.movements[m.ID] = m
	}
	for _, m := range tx.updated {
		s.movements[m.ID] = m
	}
	for _, id := range tx.deleted {
		delete(s.movements, id)
	}
	if tx.agg != nil {
		s.owners[owner] = snapshot.withAggregates(*tx.agg)
	}
	if tx.pf != nil {
		s.prefinancements[tx.pf.MarcheID] = *tx.pf
	}
	return nil
}

// FindMovement resolves a movement without locking.
func (s *MemoryStore) FindMovement(_ context.Context, id string) (Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movements[id]
	if !ok {
		return Movement{}, fmt.Errorf("movement %s: %w", id, ErrNotFound)
	}
	return m, nil
}

// GetOwner reads an owner snapshot without locking.
func (s *MemoryStore) GetOwner(_ context.Context, ref OwnerRef) (Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.owners[ref]
	if !ok {
		return Owner{}, fmt.Errorf("%s %s: %w", ref.Kind, ref.ID, ErrNotFound)
	}
	return o, nil
}

// ListMovements returns the owner's movements ordered by date; zero bounds
// are unbounded.
func (s *MemoryStore) ListMovements(_ context.Context, owner OwnerRef, from, to time.Time) ([]Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var movements []Movement
	for _, m := range s.movements {
		if m.Owner != owner {
			continue
		}
		if !from.IsZero() && m.Date.Before(from) {
			continue
		}
		if !to.IsZero() && m.Date.After(to) {
			continue
		}
		movements = append(movements, m)
	}
	sort.Slice(movements, func(i, j int) bool {
		if movements[i].Date.Equal(movements[j].Date) {
			return movements[i].CreatedAt.Before(movements[j].CreatedAt)
		}
		return movements[i].Date.Before(movements[j].Date)
	})
	return movements, nil
}

// ListOwners returns every owner of the given kind ordered by code.
func (s *MemoryStore) ListOwners(_ context.Context, kind OwnerKind) ([]Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var owners []Owner
	for ref, o := range s.owners {
		if ref.Kind == kind {
			owners = append(owners, o)
		}
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i].Code < owners[j].Code })
	return owners, nil
}

// ListPrefinancements returns every credit facility.
func (s *MemoryStore) ListPrefinancements(_ context.Context) ([]Prefinancement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var facilities []Prefinancement
	for _, p := range s.prefinancements {
		facilities = append(facilities, p)
	}
	sort.Slice(facilities, func(i, j int) bool { return facilities[i].MarcheID < facilities[j].MarcheID })
	return facilities, nil
}

// SeedOwner registers or replaces an owner row. Used by the in-memory
// repositories and by tests.
func (s *MemoryStore) SeedOwner(o Owner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[o.Ref] = o
}

// SetOwnerStatus updates only the owner's lifecycle status.
func (s *MemoryStore) SetOwnerStatus(ref OwnerRef, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.owners[ref]
	if !ok {
		return fmt.Errorf("%s %s: %w", ref.Kind, ref.ID, ErrNotFound)
	}
	o.Status = status
	s.owners[ref] = o
	return nil
}

// SeedPrefinancement registers or replaces a credit facility.
func (s *MemoryStore) SeedPrefinancement(p Prefinancement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefinancements[p.MarcheID] = p
}

// PrefinancementSnapshot reads the facility attached to a marché.
func (s *MemoryStore) PrefinancementSnapshot(marcheID string) (Prefinancement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prefinancements[marcheID]
	return p, ok
}

type memTx struct {
	store    *MemoryStore
	owner    Owner
	agg      *Aggregates
	pf       *Prefinancement
	inserted []Movement
	updated  []Movement
	deleted  []string
}

func (t *memTx) Owner() Owner { return t.owner }

func (t *memTx) UpdateAggregates(_ context.Context, agg Aggregates) error {
	t.agg = &agg
	return nil
}

func (t *memTx) Movement(_ context.Context, id string) (Movement, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	m, ok := t.store.movements[id]
	if !ok || m.Owner != t.owner.Ref {
		return Movement{}, fmt.Errorf("movement %s: %w", id, ErrNotFound)
	}
	return m, nil
}

func (t *memTx) InsertMovement(_ context.Context, m Movement) error {
	t.inserted = append(t.inserted, m)
	return nil
}

func (t *memTx) UpdateMovement(_ context.Context, m Movement) error {
	t.updated = append(t.updated, m)
	return nil
}

func (t *memTx) DeleteMovement(_ context.Context, id string) error {
	t.deleted = append(t.deleted, id)
	return nil
}

func (t *memTx) SumEntrees(_ context.Context, excludeID string) (decimal.Decimal, error) {
	return t.sum(excludeID, func(m Movement) bool {
		return m.Kind == KindAccompte || (m.Kind == KindMouvement && m.Sens == SensEntree)
	}), nil
}

func (t *memTx) SumSortiesTresorerie(_ context.Context, excludeID string) (decimal.Decimal, error) {
	return t.sum(excludeID, func(m Movement) bool {
		return (m.Kind == KindDecaissement && m.Source != SourcePrefinancement) ||
			(m.Kind == KindMouvement && m.Sens == SensSortie)
	}), nil
}

func (t *memTx) sum(excludeID string, include func(Movement) bool) decimal.Decimal {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	total := decimal.Zero
	for _, m := range t.store.movements {
		if m.Owner != t.owner.Ref || m.ID == excludeID || !include(m) {
			continue
		}
		total = total.Add(m.Amount)
	}
	return total
}

func (t *memTx) Prefinancement(_ context.Context) (Prefinancement, bool, error) {
	if t.owner.Ref.Kind != OwnerMarche {
		return Prefinancement{}, false, nil
	}
	if t.pf != nil {
		return *t.pf, true, nil
	}
	p, ok := t.store.PrefinancementSnapshot(t.owner.Ref.ID)
	return p, ok, nil
}

func (t *memTx) UpdatePrefinancement(_ context.Context, p Prefinancement) error {
	t.pf = &p
	return nil
}
