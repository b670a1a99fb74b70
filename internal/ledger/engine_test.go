package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gilandre/emeraude-treasury/internal/alert"
	"github.com/gilandre/emeraude-treasury/internal/audit"
	"github.com/gilandre/emeraude-treasury/internal/cache"
	"github.com/gilandre/emeraude-treasury/internal/currency"
	"github.com/gilandre/emeraude-treasury/internal/logging"
)

type captureDispatcher struct {
	mu     sync.Mutex
	events []alert.Event
}

func (d *captureDispatcher) Dispatch(_ context.Context, event alert.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *captureDispatcher) byType(t alert.EventType) []alert.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []alert.Event
	for _, e := range d.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	engine     *Engine
	store      *MemoryStore
	rateRepo   currency.Repository
	auditor    *audit.MemoryRecorder
	dispatcher *captureDispatcher
	cache      *cache.MemoryCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := NewMemoryStore()
	rateRepo := currency.NewMemoryRepository()
	seedRate(t, rateRepo, "EUR", "655.957")
	seedRate(t, rateRepo, "USD", "600")

	auditor := audit.NewMemoryRecorder()
	dispatcher := &captureDispatcher{}
	mc := cache.NewMemoryCache()
	engine := NewEngine(store, currency.NewService(rateRepo, 0),
		auditor, dispatcher, mc, logging.Discard())
	return &testEnv{engine: engine, store: store, rateRepo: rateRepo, auditor: auditor, dispatcher: dispatcher, cache: mc}
}

func seedRate(t *testing.T, repo currency.Repository, code, rate string) {
	t.Helper()
	err := repo.Upsert(context.Background(), currency.Rate{
		Code:          code,
		Rate:          decimal.RequireFromString(rate),
		EffectiveDate: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed rate %s: %v", code, err)
	}
}

func seedMarche(store *MemoryStore, id, cur string) OwnerRef {
	ref := OwnerRef{Kind: OwnerMarche, ID: id}
	store.SeedOwner(Owner{
		Ref:      ref,
		Code:     "M-" + id,
		Label:    "marché " + id,
		Currency: cur,
		Status:   OwnerStatusActif,
		Budget:   decimal.NewFromInt(10_000_000),
	})
	return ref
}

func seedActivite(store *MemoryStore, id string) OwnerRef {
	ref := OwnerRef{Kind: OwnerActivite, ID: id}
	store.SeedOwner(Owner{
		Ref:      ref,
		Code:     "A-" + id,
		Label:    "activité " + id,
		Currency: "XOF",
		Status:   OwnerStatusActif,
	})
	return ref
}

func amt(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestCreateDecaissementRejectsShortfall(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := seedMarche(env.store, "m1", "XOF")

	if _, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindAccompte, Amount: amt("1000000"),
	}); err != nil {
		t.Fatalf("accompte: %v", err)
	}

	_, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindDecaissement, Amount: amt("1000001"), Source: SourceTresorerie,
	})
	var insufficient *InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	if !insufficient.Shortfall().Equal(amt("1")) {
		t.Fatalf("expected shortfall 1, got %s", insufficient.Shortfall())
	}
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatal("expected errors.Is match on ErrInsufficientFunds")
	}

	res, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindDecaissement, Amount: amt("1000000"), Source: SourceTresorerie,
	})
	if err != nil {
		t.Fatalf("exact-balance décaissement: %v", err)
	}
	if !res.Owner.Solde.IsZero() {
		t.Fatalf("expected solde 0, got %s", res.Owner.Solde)
	}
}

func TestPrefinancementDrawLeavesCashUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := seedMarche(env.store, "m1", "XOF")
	env.store.SeedPrefinancement(Prefinancement{
		ID: "pf1", MarcheID: "m1",
		Authorized: amt("500000"), Remaining: amt("500000"),
		AuthorizedXOF: amt("500000"), RemainingXOF: amt("500000"),
		Active: true,
	})

	res, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindDecaissement, Amount: amt("300000"), Source: SourcePrefinancement,
	})
	if err != nil {
		t.Fatalf("pref draw: %v", err)
	}
	if !res.Owner.CashOut.IsZero() || !res.Owner.Solde.IsZero() {
		t.Fatalf("pref draw must not touch cash totals, got out=%s solde=%s", res.Owner.CashOut, res.Owner.Solde)
	}

	pf, ok := env.store.PrefinancementSnapshot("m1")
	if !ok {
		t.Fatal("facility missing")
	}
	if !pf.Utilized.Equal(amt("300000")) || !pf.Remaining.Equal(amt("200000")) {
		t.Fatalf("expected utilized 300000 / remaining 200000, got %s / %s", pf.Utilized, pf.Remaining)
	}

	// Second draw beyond the remaining headroom must fail against 200000.
	_, err = env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindDecaissement, Amount: amt("250000"), Source: SourcePrefinancement,
	})
	var insufficient *InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	if !insufficient.Available.Equal(amt("200000")) {
		t.Fatalf("expected available 200000, got %s", insufficient.Available)
	}
}

func TestInactiveFacilityRejectsDraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := seedMarche(env.store, "m1", "XOF")
	env.store.SeedPrefinancement(Prefinancement{
		ID: "pf1", MarcheID: "m1",
		Authorized: amt("500000"), Remaining: amt("500000"),
		Active: false,
	})

	_, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindDecaissement, Amount: amt("100"), Source: SourcePrefinancement,
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds on inactive facility, got %v", err)
	}
}

func TestUpdateValidatesWithMovementExcluded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := seedMarche(env.store, "m1", "XOF")

	if _, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindAccompte, Amount: amt("1000000"),
	}); err != nil {
		t.Fatalf("accompte: %v", err)
	}
	dec, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindDecaissement, Amount: amt("500000"), Source: SourceTresorerie,
	})
	if err != nil {
		t.Fatalf("décaissement: %v", err)
	}

	// With the old 500000 excluded the full 1000000 is available again.
	_, err = env.engine.UpdateMovement(ctx, dec.Movement.ID, "tester", UpdateInput{Amount: amt("1000001")})
	var insufficient *InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	if !insufficient.Available.Equal(amt("1000000")) {
		t.Fatalf("expected available 1000000, got %s", insufficient.Available)
	}

	res, err := env.engine.UpdateMovement(ctx, dec.Movement.ID, "tester", UpdateInput{Amount: amt("450000")})
	if err != nil {
		t.Fatalf("shrink décaissement: %v", err)
	}
	if !res.Owner.Solde.Equal(amt("550000")) {
		t.Fatalf("expected solde 550000, got %s", res.Owner.Solde)
	}
	if !res.Owner.CashOut.Equal(amt("450000")) {
		t.Fatalf("expected cash_out 450000, got %s", res.Owner.CashOut)
	}
}

func TestWriteTimeRateIsNeverRestated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := seedMarche(env.store, "m-eur", "EUR")

	res, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindAccompte, Amount: amt("100"),
	})
	if err != nil {
		t.Fatalf("accompte: %v", err)
	}
	if !res.Movement.AmountXOF.Equal(amt("65595.70")) {
		t.Fatalf("expected 65595.70 XOF, got %s", res.Movement.AmountXOF)
	}
	if !res.Movement.Rate.Equal(amt("655.957")) {
		t.Fatalf("expected rate 655.957, got %s", res.Movement.Rate)
	}

	// A later rate change must not leak into an edit that keeps the amount.
	seedRate(t, env.rateRepo, "EUR", "700")
	updated, err := env.engine.UpdateMovement(ctx, res.Movement.ID, "tester", UpdateInput{
		Amount:      amt("100"),
		Description: "libellé corrigé",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Movement.Rate.Equal(amt("655.957")) {
		t.Fatalf("rate restated to %s", updated.Movement.Rate)
	}
	if !updated.Movement.AmountXOF.Equal(amt("65595.70")) {
		t.Fatalf("converted amount restated to %s", updated.Movement.AmountXOF)
	}

	// An amount change resolves the rate in effect now.
	resized, err := env.engine.UpdateMovement(ctx, res.Movement.ID, "tester", UpdateInput{Amount: amt("200")})
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	if !resized.Movement.Rate.Equal(amt("700")) {
		t.Fatalf("expected fresh rate 700, got %s", resized.Movement.Rate)
	}
	if !resized.Movement.AmountXOF.Equal(amt("140000")) {
		t.Fatalf("expected 140000 XOF, got %s", resized.Movement.AmountXOF)
	}
}

func TestUpdateReplacesMetadataWholesale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := seedMarche(env.store, "m1", "XOF")

	created, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind:         KindAccompte,
		Amount:       amt("1000"),
		Date:         time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Reference:    "FAC-001",
		Description:  "premier accompte",
		Beneficiaire: "fournisseur A",
	})
	if err != nil {
		t.Fatalf("accompte: %v", err)
	}

	// Metadata is full-replace: fields omitted from the edit are cleared,
	// while a zero date keeps the stored one.
	res, err := env.engine.UpdateMovement(ctx, created.Movement.ID, "tester", UpdateInput{
		Amount:    amt("1000"),
		Reference: "FAC-001-BIS",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if res.Movement.Reference != "FAC-001-BIS" {
		t.Fatalf("expected reference FAC-001-BIS, got %q", res.Movement.Reference)
	}
	if res.Movement.Description != "" || res.Movement.Beneficiaire != "" {
		t.Fatalf("omitted metadata kept: description=%q beneficiaire=%q",
			res.Movement.Description, res.Movement.Beneficiaire)
	}
	if !res.Movement.Date.Equal(created.Movement.Date) {
		t.Fatalf("zero date replaced the stored one: %s", res.Movement.Date)
	}
}

func TestDeleteReversesContributionExactly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := seedMarche(env.store, "m1", "XOF")

	acc, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindAccompte, Amount: amt("750000"),
	})
	if err != nil {
		t.Fatalf("accompte: %v", err)
	}
	dec, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindDecaissement, Amount: amt("250000"), Source: SourceTresorerie,
	})
	if err != nil {
		t.Fatalf("décaissement: %v", err)
	}

	if _, err := env.engine.DeleteMovement(ctx, dec.Movement.ID, "tester"); err != nil {
		t.Fatalf("delete décaissement: %v", err)
	}
	res, err := env.engine.DeleteMovement(ctx, acc.Movement.ID, "tester")
	if err != nil {
		t.Fatalf("delete accompte: %v", err)
	}

	if !res.Owner.CashIn.IsZero() || !res.Owner.CashOut.IsZero() || !res.Owner.Solde.IsZero() {
		t.Fatalf("expected zeroed aggregates, got in=%s out=%s solde=%s",
			res.Owner.CashIn, res.Owner.CashOut, res.Owner.Solde)
	}
	if _, err := env.store.FindMovement(ctx, dec.Movement.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted movement gone, got %v", err)
	}
}

func TestDeletePrefinancementDrawReleasesHeadroom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := seedMarche(env.store, "m1", "XOF")
	env.store.SeedPrefinancement(Prefinancement{
		ID: "pf1", MarcheID: "m1",
		Authorized: amt("500000"), Remaining: amt("500000"),
		AuthorizedXOF: amt("500000"), RemainingXOF: amt("500000"),
		Active: true,
	})

	draw, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindDecaissement, Amount: amt("400000"), Source: SourcePrefinancement,
	})
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if _, err := env.engine.DeleteMovement(ctx, draw.Movement.ID, "tester"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	pf, _ := env.store.PrefinancementSnapshot("m1")
	if !pf.Utilized.IsZero() || !pf.Remaining.Equal(amt("500000")) {
		t.Fatalf("expected released facility, got utilized=%s remaining=%s", pf.Utilized, pf.Remaining)
	}
}

func TestUpdateResizesPrefinancementDraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := seedMarche(env.store, "m1", "XOF")
	env.store.SeedPrefinancement(Prefinancement{
		ID: "pf1", MarcheID: "m1",
		Authorized: amt("500000"), Remaining: amt("500000"),
		AuthorizedXOF: amt("500000"), RemainingXOF: amt("500000"),
		Active: true,
	})

	draw, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindDecaissement, Amount: amt("300000"), Source: SourcePrefinancement,
	})
	if err != nil {
		t.Fatalf("draw: %v", err)
	}

	// The old 300000 is handed back before the new amount is compared, so
	// growing to 450000 fits the 500000 facility.
	res, err := env.engine.UpdateMovement(ctx, draw.Movement.ID, "tester", UpdateInput{
		Amount: amt("450000"), Source: SourcePrefinancement,
	})
	if err != nil {
		t.Fatalf("grow draw: %v", err)
	}
	if !res.Owner.CashOut.IsZero() {
		t.Fatalf("resized draw must stay off the cash position, got cash_out %s", res.Owner.CashOut)
	}

	pf, ok := env.store.PrefinancementSnapshot("m1")
	if !ok {
		t.Fatal("facility missing")
	}
	if !pf.Utilized.Equal(amt("450000")) || !pf.Remaining.Equal(amt("50000")) {
		t.Fatalf("expected utilized 450000 / remaining 50000, got %s / %s", pf.Utilized, pf.Remaining)
	}

	// 600000 exceeds authorized even with the current draw handed back.
	_, err = env.engine.UpdateMovement(ctx, draw.Movement.ID, "tester", UpdateInput{
		Amount: amt("600000"), Source: SourcePrefinancement,
	})
	var insufficient *InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	if !insufficient.Available.Equal(amt("500000")) {
		t.Fatalf("expected available 500000, got %s", insufficient.Available)
	}

	// The rejected edit must leave the facility untouched.
	pf, _ = env.store.PrefinancementSnapshot("m1")
	if !pf.Utilized.Equal(amt("450000")) || !pf.Remaining.Equal(amt("50000")) {
		t.Fatalf("rejected edit moved the facility: utilized=%s remaining=%s", pf.Utilized, pf.Remaining)
	}
}

func TestUpdateSourceSwitchMovesDrawBetweenFacilityAndCash(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := seedMarche(env.store, "m1", "XOF")
	env.store.SeedPrefinancement(Prefinancement{
		ID: "pf1", MarcheID: "m1",
		Authorized: amt("500000"), Remaining: amt("500000"),
		AuthorizedXOF: amt("500000"), RemainingXOF: amt("500000"),
		Active: true,
	})
	if _, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindAccompte, Amount: amt("1000000"),
	}); err != nil {
		t.Fatalf("accompte: %v", err)
	}
	draw, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindDecaissement, Amount: amt("200000"), Source: SourcePrefinancement,
	})
	if err != nil {
		t.Fatalf("draw: %v", err)
	}

	res, err := env.engine.UpdateMovement(ctx, draw.Movement.ID, "tester", UpdateInput{
		Amount: amt("200000"), Source: SourceTresorerie,
	})
	if err != nil {
		t.Fatalf("switch source: %v", err)
	}

	pf, _ := env.store.PrefinancementSnapshot("m1")
	if !pf.Utilized.IsZero() {
		t.Fatalf("expected facility released, got utilized %s", pf.Utilized)
	}
	if !res.Owner.CashOut.Equal(amt("200000")) {
		t.Fatalf("expected cash_out 200000 after switch, got %s", res.Owner.CashOut)
	}
}

func TestActiviteSortieCanDriveSoldeNegative(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := seedActivite(env.store, "a1")

	res, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindMouvement, Amount: amt("100"), Sens: SensSortie,
	})
	if err != nil {
		t.Fatalf("sortie: %v", err)
	}
	if !res.Owner.Solde.Equal(amt("-100")) {
		t.Fatalf("expected solde -100, got %s", res.Owner.Solde)
	}

	alerts := env.dispatcher.byType(alert.EventBalanceNegative)
	if len(alerts) != 1 {
		t.Fatalf("expected one negative-solde alert, got %d", len(alerts))
	}

	// Already negative: the crossing alert must not repeat.
	if _, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindMouvement, Amount: amt("50"), Sens: SensSortie,
	}); err != nil {
		t.Fatalf("second sortie: %v", err)
	}
	if got := len(env.dispatcher.byType(alert.EventBalanceNegative)); got != 1 {
		t.Fatalf("expected crossing alert once, got %d", got)
	}
}

func TestConcurrentSpendsCannotOverdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := seedMarche(env.store, "m1", "XOF")
	if _, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindAccompte, Amount: amt("1000"),
	}); err != nil {
		t.Fatalf("accompte: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
				Kind: KindDecaissement, Amount: amt("700"), Source: SourceTresorerie,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, rejected int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientFunds):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || rejected != 1 {
		t.Fatalf("expected exactly one spend to win, got ok=%d rejected=%d", ok, rejected)
	}

	owner, err := env.store.GetOwner(ctx, ref)
	if err != nil {
		t.Fatalf("get owner: %v", err)
	}
	if owner.Solde.Sign() < 0 {
		t.Fatalf("solde went negative: %s", owner.Solde)
	}
}

func TestMutationsBlockedOnInactiveOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := seedMarche(env.store, "m1", "XOF")

	acc, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindAccompte, Amount: amt("1000"),
	})
	if err != nil {
		t.Fatalf("accompte: %v", err)
	}

	if err := env.store.SetOwnerStatus(ref, OwnerStatusSuspendu); err != nil {
		t.Fatalf("suspend: %v", err)
	}

	if _, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindAccompte, Amount: amt("1"),
	}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on create, got %v", err)
	}
	if _, err := env.engine.UpdateMovement(ctx, acc.Movement.ID, "tester", UpdateInput{Amount: amt("2")}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on update, got %v", err)
	}

	// Deleting only releases funds, so it stays possible on a suspended owner.
	if _, err := env.engine.DeleteMovement(ctx, acc.Movement.ID, "tester"); err != nil {
		t.Fatalf("delete on suspended owner: %v", err)
	}
}

func TestSetDecaissementStatusDispatchesAlerts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := seedMarche(env.store, "m1", "XOF")
	if _, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindAccompte, Amount: amt("1000"),
	}); err != nil {
		t.Fatalf("accompte: %v", err)
	}
	dec, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindDecaissement, Amount: amt("400"), Source: SourceTresorerie,
	})
	if err != nil {
		t.Fatalf("décaissement: %v", err)
	}
	if dec.Movement.Status != StatusPrevu {
		t.Fatalf("expected default statut PREVU, got %s", dec.Movement.Status)
	}

	res, err := env.engine.SetDecaissementStatus(ctx, dec.Movement.ID, "tester", StatusValide)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Movement.Status != StatusValide {
		t.Fatalf("expected VALIDE, got %s", res.Movement.Status)
	}
	if len(env.dispatcher.byType(alert.EventDecaissementValide)) != 1 {
		t.Fatal("expected decaissement_valide alert")
	}
	// Amounts stay committed regardless of statut.
	owner, _ := env.store.GetOwner(ctx, ref)
	if !owner.CashOut.Equal(amt("400")) {
		t.Fatalf("statut change altered cash_out: %s", owner.CashOut)
	}

	if _, err := env.engine.SetDecaissementStatus(ctx, dec.Movement.ID, "tester", "ANNULE"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown statut, got %v", err)
	}
}

func TestCreateRecordsAuditEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := seedMarche(env.store, "m1", "XOF")

	res, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindAccompte, Amount: amt("1000"),
	})
	if err != nil {
		t.Fatalf("accompte: %v", err)
	}

	// Recording runs off the request goroutine, so give it a moment.
	var entries []audit.Entry
	deadline := time.Now().Add(2 * time.Second)
	for {
		entries = env.auditor.Entries()
		if len(entries) > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(entries))
	}

	entry := entries[0]
	if entry.Action != audit.ActionCreate {
		t.Fatalf("expected action CREATE, got %s", entry.Action)
	}
	if entry.EntityType != "mouvement" || entry.EntityID != res.Movement.ID {
		t.Fatalf("entry points at %s/%s, want mouvement/%s", entry.EntityType, entry.EntityID, res.Movement.ID)
	}
	if entry.ActorID != "tester" {
		t.Fatalf("expected actor tester, got %s", entry.ActorID)
	}
	if entry.Before != nil || entry.After == nil {
		t.Fatalf("create must carry only an after snapshot, got before=%s after=%s", entry.Before, entry.After)
	}
}

func TestAvailableBalanceIncludesHeadroom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := seedMarche(env.store, "m1", "XOF")
	env.store.SeedPrefinancement(Prefinancement{
		ID: "pf1", MarcheID: "m1",
		Authorized: amt("500"), Remaining: amt("500"), Active: true,
	})
	if _, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindAccompte, Amount: amt("1000"),
	}); err != nil {
		t.Fatalf("accompte: %v", err)
	}

	bal, err := env.engine.AvailableBalance(ctx, ref, "")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !bal.Available.Equal(amt("1500")) {
		t.Fatalf("expected available 1500, got %s", bal.Available)
	}
	if !bal.Headroom.Equal(amt("500")) {
		t.Fatalf("expected headroom 500, got %s", bal.Headroom)
	}
}

func TestMutationInvalidatesOwnerCacheNamespace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := seedMarche(env.store, "m1", "XOF")

	key := cache.OwnerPrefix(string(ref.Kind), ref.ID) + "daily:-:-"
	if err := env.cache.Set(ctx, key, []byte("stale"), time.Minute); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	if _, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindAccompte, Amount: amt("10"),
	}); err != nil {
		t.Fatalf("accompte: %v", err)
	}

	if _, ok, _ := env.cache.Get(ctx, key); ok {
		t.Fatal("expected cached view invalidated by the mutation")
	}
}

func TestKindShapeValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	marcheRef := seedMarche(env.store, "m1", "XOF")
	activiteRef := seedActivite(env.store, "a1")

	cases := []struct {
		name  string
		owner OwnerRef
		in    MovementInput
	}{
		{"accompte with source", marcheRef, MovementInput{Kind: KindAccompte, Amount: amt("1"), Source: SourceTresorerie}},
		{"mouvement without sens", activiteRef, MovementInput{Kind: KindMouvement, Amount: amt("1")}},
		{"mouvement on marché", marcheRef, MovementInput{Kind: KindMouvement, Amount: amt("1"), Sens: SensEntree}},
		{"accompte on activité", activiteRef, MovementInput{Kind: KindAccompte, Amount: amt("1")}},
		{"zero amount", marcheRef, MovementInput{Kind: KindAccompte, Amount: decimal.Zero}},
		{"unknown kind", marcheRef, MovementInput{Kind: "VIREMENT", Amount: amt("1")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.engine.CreateMovement(ctx, tc.owner, "tester", tc.in); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestMissingRateRejectsMovement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := seedMarche(env.store, "m-gbp", "GBP")

	_, err := env.engine.CreateMovement(ctx, ref, "tester", MovementInput{
		Kind: KindAccompte, Amount: amt("10"),
	})
	if !errors.Is(err, currency.ErrRateNotFound) {
		t.Fatalf("expected ErrRateNotFound, got %v", err)
	}
	// Nothing may be committed when conversion fails.
	owner, _ := env.store.GetOwner(ctx, ref)
	if !owner.CashIn.IsZero() {
		t.Fatalf("partial application: cash_in %s", owner.CashIn)
	}
}
