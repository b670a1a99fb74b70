package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gilandre/emeraude-treasury/internal/alert"
	"github.com/gilandre/emeraude-treasury/internal/audit"
	"github.com/gilandre/emeraude-treasury/internal/cache"
	"github.com/gilandre/emeraude-treasury/internal/currency"
	"github.com/gilandre/emeraude-treasury/internal/metrics"
)

const sideEffectTimeout = 5 * time.Second

// Engine performs the atomic create/update/delete of monetary movements:
// fund-sufficiency validation, write-time currency conversion, denormalized
// aggregate updates and préfinancement utilization, all inside one Store.Atomic
// unit, followed by post-commit audit, alert and cache side effects.
type Engine struct {
	store   Store
	rates   *currency.Service
	auditor audit.Recorder
	alerts  alert.Dispatcher
	cache   cache.Cache
	logger  *slog.Logger
}

// NewEngine wires the ledger engine with its collaborators. auditor, alerts
// and cache may be nil; the corresponding side effect is then skipped.
func NewEngine(store Store, rates *currency.Service, auditor audit.Recorder, alerts alert.Dispatcher, c cache.Cache, logger *slog.Logger) *Engine {
	return &Engine{store: store, rates: rates, auditor: auditor, alerts: alerts, cache: c, logger: logger}
}

// MovementInput carries the client-provided fields of a new movement.
type MovementInput struct {
	Kind         Kind
	Amount       decimal.Decimal
	Date         time.Time
	Source       Source
	Sens         Sens
	Status       DecaissementStatus
	Reference    string
	Description  string
	Categorie    string
	Beneficiaire string
	ModePaiement string
}

// UpdateInput carries the proposed new state of an existing movement. The
// kind never changes; empty Source/Sens mean "keep the stored value". The
// metadata fields (Reference, Description, Categorie, Beneficiaire,
// ModePaiement) replace the stored values wholesale, so an omitted field
// clears it. A zero Date keeps the stored date.
type UpdateInput struct {
	Amount       decimal.Decimal
	Date         time.Time
	Source       Source
	Sens         Sens
	Reference    string
	Description  string
	Categorie    string
	Beneficiaire string
	ModePaiement string
}

// Result is the committed movement together with the owner's updated
// aggregate snapshot.
type Result struct {
	Movement Movement
	Owner    Owner
}

// CreateMovement validates and commits a new movement under the owner.
func (e *Engine) CreateMovement(ctx context.Context, ownerRef OwnerRef, actorID string, in MovementInput) (Result, error) {
	in, err := normalizeCreate(ownerRef, in)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	var res Result
	var events []alert.Event

	err = e.store.Atomic(ctx, ownerRef, func(tx Tx) error {
		owner := tx.Owner()
		if !owner.AllowsMutation() {
			return fmt.Errorf("%s %s has status %s: %w", owner.Ref.Kind, owner.Ref.ID, owner.Status, ErrInvalidState)
		}

		converted, rate, err := e.convert(ctx, in.Amount, owner.Currency)
		if err != nil {
			return err
		}

		var pf Prefinancement
		var pfFound bool
		if in.Kind == KindDecaissement {
			if in.Source == SourcePrefinancement {
				pf, pfFound, err = tx.Prefinancement(ctx)
				if err != nil {
					return err
				}
				if !pfFound || !pf.Active {
					return &InsufficientFundsError{Requested: in.Amount, Available: decimal.Zero}
				}
				if in.Amount.GreaterThan(pf.Headroom()) {
					return &InsufficientFundsError{Requested: in.Amount, Available: pf.Headroom()}
				}
			} else {
				bal, err := computeBalance(ctx, tx, "")
				if err != nil {
					return err
				}
				if in.Amount.GreaterThan(bal.Available) {
					return &InsufficientFundsError{Requested: in.Amount, Available: bal.Available}
				}
			}
		}

		now := time.Now().UTC()
		date := in.Date
		if date.IsZero() {
			date = now
		}
		mv := Movement{
			ID:           uuid.NewString(),
			Owner:        owner.Ref,
			Kind:         in.Kind,
			Amount:       in.Amount,
			AmountXOF:    converted,
			Rate:         rate,
			Date:         date,
			Source:       in.Source,
			Sens:         in.Sens,
			Status:       in.Status,
			Reference:    in.Reference,
			Description:  in.Description,
			Categorie:    in.Categorie,
			Beneficiaire: in.Beneficiaire,
			ModePaiement: in.ModePaiement,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.InsertMovement(ctx, mv); err != nil {
			return err
		}

		agg := aggregatesOf(owner).apply(mv, false)
		if err := tx.UpdateAggregates(ctx, agg); err != nil {
			return err
		}

		if mv.Kind == KindDecaissement && mv.Source == SourcePrefinancement {
			pf.Utilized = pf.Utilized.Add(mv.Amount)
			pf.UtilizedXOF = pf.UtilizedXOF.Add(mv.AmountXOF)
			pf.Remaining = pf.Authorized.Sub(pf.Utilized)
			pf.RemainingXOF = pf.AuthorizedXOF.Sub(pf.UtilizedXOF)
			if err := tx.UpdatePrefinancement(ctx, pf); err != nil {
				return err
			}
		}

		updated := owner.withAggregates(agg)
		res = Result{Movement: mv, Owner: updated}
		events = append(events, alert.Event{
			Type:       alert.EventMovementCreated,
			OwnerID:    owner.Ref.ID,
			OwnerCode:  owner.Code,
			OwnerLabel: owner.Label,
			Currency:   owner.Currency,
			Amount:     mv.Amount,
			Message:    fmt.Sprintf("%s de %s %s enregistré sur %s", kindLabel(mv.Kind), mv.Amount, owner.Currency, owner.Code),
		})
		events = appendNegativeCrossing(events, owner, updated)
		return nil
	})
	if err != nil {
		e.observeFailure(err)
		return Result{}, err
	}

	metrics.LedgerOperations.WithLabelValues(string(in.Kind), "create").Inc()
	metrics.LedgerOperationDuration.WithLabelValues(string(in.Kind), "create").Observe(time.Since(start).Seconds())

	e.finish(ctx, res.Owner.Ref, audit.Entry{
		ActorID:     actorID,
		Action:      audit.ActionCreate,
		EntityType:  "mouvement",
		EntityID:    res.Movement.ID,
		After:       audit.Snapshot(res.Movement),
		Description: fmt.Sprintf("création %s %s", kindLabel(res.Movement.Kind), res.Movement.ID),
	}, events)

	return res, nil
}

// UpdateMovement applies the reverse-then-reapply edit of an existing
// movement: the old contribution is removed from the owner's aggregates (and
// préfinancement utilization when applicable) and the proposed one applied,
// atomically, after validating sufficiency with the movement excluded.
func (e *Engine) UpdateMovement(ctx context.Context, movementID, actorID string, in UpdateInput) (Result, error) {
	if in.Amount.Sign() <= 0 {
		return Result{}, fmt.Errorf("amount must be positive: %w", ErrInvalidInput)
	}

	located, err := e.store.FindMovement(ctx, movementID)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	var res Result
	var events []alert.Event
	var entry audit.Entry

	err = e.store.Atomic(ctx, located.Owner, func(tx Tx) error {
		owner := tx.Owner()
		if !owner.AllowsMutation() {
			return fmt.Errorf("%s %s has status %s: %w", owner.Ref.Kind, owner.Ref.ID, owner.Status, ErrInvalidState)
		}

		old, err := tx.Movement(ctx, movementID)
		if err != nil {
			return err
		}

		next, err := mergeUpdate(old, in)
		if err != nil {
			return err
		}

		// The stored rate is reused for unrelated field edits; only an amount
		// change resolves a fresh rate, preserving historical fidelity.
		if !next.Amount.Equal(old.Amount) {
			converted, rate, err := e.convert(ctx, next.Amount, owner.Currency)
			if err != nil {
				return err
			}
			next.AmountXOF = converted
			next.Rate = rate
		} else {
			next.AmountXOF = old.AmountXOF
			next.Rate = old.Rate
		}
		next.UpdatedAt = time.Now().UTC()

		var pf Prefinancement
		var pfFound bool
		if old.Kind == KindDecaissement {
			if next.Source == SourcePrefinancement {
				pf, pfFound, err = tx.Prefinancement(ctx)
				if err != nil {
					return err
				}
				if !pfFound || !pf.Active {
					return &InsufficientFundsError{Requested: next.Amount, Available: decimal.Zero}
				}
				// The old draw is handed back before the new one is compared.
				effective := pf.Headroom()
				if old.Source == SourcePrefinancement {
					effective = effective.Add(old.Amount)
				}
				if next.Amount.GreaterThan(effective) {
					return &InsufficientFundsError{Requested: next.Amount, Available: effective}
				}
			} else {
				bal, err := computeBalance(ctx, tx, old.ID)
				if err != nil {
					return err
				}
				if next.Amount.GreaterThan(bal.Available) {
					return &InsufficientFundsError{Requested: next.Amount, Available: bal.Available}
				}
			}
		}

		agg := aggregatesOf(owner).apply(old, true).apply(next, false)
		if err := tx.UpdateMovement(ctx, next); err != nil {
			return err
		}
		if err := tx.UpdateAggregates(ctx, agg); err != nil {
			return err
		}

		if old.Kind == KindDecaissement {
			oldDraw := old.Source == SourcePrefinancement
			newDraw := next.Source == SourcePrefinancement
			amountChanged := !next.Amount.Equal(old.Amount)
			if (oldDraw || newDraw) && (oldDraw != newDraw || amountChanged) {
				if !pfFound {
					pf, pfFound, err = tx.Prefinancement(ctx)
					if err != nil {
						return err
					}
				}
				if pfFound {
					if oldDraw {
						pf.Utilized = clampSub(pf.Utilized, old.Amount)
						pf.UtilizedXOF = clampSub(pf.UtilizedXOF, old.AmountXOF)
					}
					if newDraw {
						pf.Utilized = pf.Utilized.Add(next.Amount)
						pf.UtilizedXOF = pf.UtilizedXOF.Add(next.AmountXOF)
					}
					pf.Remaining = pf.Authorized.Sub(pf.Utilized)
					pf.RemainingXOF = pf.AuthorizedXOF.Sub(pf.UtilizedXOF)
					if err := tx.UpdatePrefinancement(ctx, pf); err != nil {
						return err
					}
				}
			}
		}

		updated := owner.withAggregates(agg)
		res = Result{Movement: next, Owner: updated}
		events = append(events, alert.Event{
			Type:       alert.EventMovementUpdated,
			OwnerID:    owner.Ref.ID,
			OwnerCode:  owner.Code,
			OwnerLabel: owner.Label,
			Currency:   owner.Currency,
			Amount:     next.Amount,
			Message:    fmt.Sprintf("%s %s modifié sur %s", kindLabel(next.Kind), next.ID, owner.Code),
		})
		events = appendNegativeCrossing(events, owner, updated)

		entry = audit.Entry{
			ActorID:     actorID,
			Action:      audit.ActionUpdate,
			EntityType:  "mouvement",
			EntityID:    next.ID,
			Before:      audit.Snapshot(old),
			After:       audit.Snapshot(next),
			Description: fmt.Sprintf("modification %s %s", kindLabel(next.Kind), next.ID),
		}
		return nil
	})
	if err != nil {
		e.observeFailure(err)
		return Result{}, err
	}

	metrics.LedgerOperations.WithLabelValues(string(located.Kind), "update").Inc()
	metrics.LedgerOperationDuration.WithLabelValues(string(located.Kind), "update").Observe(time.Since(start).Seconds())

	e.finish(ctx, res.Owner.Ref, entry, events)
	return res, nil
}

// DeleteMovement reverses the movement's full contribution from the owner's
// aggregates (and préfinancement utilization when applicable) and removes the
// row. Removing a movement can only increase headroom, so no sufficiency
// check applies; deletion is allowed regardless of the owner's status.
func (e *Engine) DeleteMovement(ctx context.Context, movementID, actorID string) (Result, error) {
	located, err := e.store.FindMovement(ctx, movementID)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	var res Result
	var events []alert.Event

	err = e.store.Atomic(ctx, located.Owner, func(tx Tx) error {
		owner := tx.Owner()
		old, err := tx.Movement(ctx, movementID)
		if err != nil {
			return err
		}

		agg := aggregatesOf(owner).apply(old, true)
		if err := tx.DeleteMovement(ctx, old.ID); err != nil {
			return err
		}
		if err := tx.UpdateAggregates(ctx, agg); err != nil {
			return err
		}

		if old.Kind == KindDecaissement && old.Source == SourcePrefinancement {
			pf, ok, err := tx.Prefinancement(ctx)
			if err != nil {
				return err
			}
			if ok {
				pf.Utilized = clampSub(pf.Utilized, old.Amount)
				pf.UtilizedXOF = clampSub(pf.UtilizedXOF, old.AmountXOF)
				pf.Remaining = pf.Authorized.Sub(pf.Utilized)
				pf.RemainingXOF = pf.AuthorizedXOF.Sub(pf.UtilizedXOF)
				if err := tx.UpdatePrefinancement(ctx, pf); err != nil {
					return err
				}
			}
		}

		updated := owner.withAggregates(agg)
		res = Result{Movement: old, Owner: updated}
		events = append(events, alert.Event{
			Type:       alert.EventMovementDeleted,
			OwnerID:    owner.Ref.ID,
			OwnerCode:  owner.Code,
			OwnerLabel: owner.Label,
			Currency:   owner.Currency,
			Amount:     old.Amount,
			Message:    fmt.Sprintf("%s %s supprimé de %s", kindLabel(old.Kind), old.ID, owner.Code),
		})
		return nil
	})
	if err != nil {
		e.observeFailure(err)
		return Result{}, err
	}

	metrics.LedgerOperations.WithLabelValues(string(located.Kind), "delete").Inc()
	metrics.LedgerOperationDuration.WithLabelValues(string(located.Kind), "delete").Observe(time.Since(start).Seconds())

	e.finish(ctx, res.Owner.Ref, audit.Entry{
		ActorID:     actorID,
		Action:      audit.ActionDelete,
		EntityType:  "mouvement",
		EntityID:    res.Movement.ID,
		Before:      audit.Snapshot(res.Movement),
		Description: fmt.Sprintf("suppression %s %s", kindLabel(res.Movement.Kind), res.Movement.ID),
	}, events)

	return res, nil
}

// SetDecaissementStatus transitions a committed décaissement among
// PREVU/VALIDE/PAYE without touching its amounts or the owner's aggregates.
func (e *Engine) SetDecaissementStatus(ctx context.Context, movementID, actorID string, status DecaissementStatus) (Result, error) {
	switch status {
	case StatusPrevu, StatusValide, StatusPaye:
	default:
		return Result{}, fmt.Errorf("unknown statut %q: %w", status, ErrInvalidInput)
	}

	located, err := e.store.FindMovement(ctx, movementID)
	if err != nil {
		return Result{}, err
	}
	if located.Kind != KindDecaissement {
		return Result{}, fmt.Errorf("movement %s is not a décaissement: %w", movementID, ErrInvalidState)
	}

	var res Result
	var events []alert.Event

	err = e.store.Atomic(ctx, located.Owner, func(tx Tx) error {
		owner := tx.Owner()
		old, err := tx.Movement(ctx, movementID)
		if err != nil {
			return err
		}
		next := old
		next.Status = status
		next.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateMovement(ctx, next); err != nil {
			return err
		}
		res = Result{Movement: next, Owner: owner}

		switch status {
		case StatusValide:
			events = append(events, alert.Event{
				Type:       alert.EventDecaissementValide,
				OwnerID:    owner.Ref.ID,
				OwnerCode:  owner.Code,
				OwnerLabel: owner.Label,
				Currency:   owner.Currency,
				Amount:     next.Amount,
				Message:    fmt.Sprintf("décaissement de %s %s validé sur %s", next.Amount, owner.Currency, owner.Code),
			})
		case StatusPaye:
			events = append(events, alert.Event{
				Type:       alert.EventDecaissementPaye,
				OwnerID:    owner.Ref.ID,
				OwnerCode:  owner.Code,
				OwnerLabel: owner.Label,
				Currency:   owner.Currency,
				Amount:     next.Amount,
				Message:    fmt.Sprintf("décaissement de %s %s payé sur %s", next.Amount, owner.Currency, owner.Code),
			})
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	e.finish(ctx, res.Owner.Ref, audit.Entry{
		ActorID:     actorID,
		Action:      audit.ActionUpdate,
		EntityType:  "mouvement",
		EntityID:    res.Movement.ID,
		After:       audit.Snapshot(res.Movement),
		Description: fmt.Sprintf("statut décaissement %s -> %s", res.Movement.ID, status),
	}, events)

	return res, nil
}

// AvailableBalance exposes the balance calculator: cash position plus
// préfinancement headroom, optionally excluding one in-flight movement.
func (e *Engine) AvailableBalance(ctx context.Context, ownerRef OwnerRef, excludeID string) (Balance, error) {
	var bal Balance
	err := e.store.Atomic(ctx, ownerRef, func(tx Tx) error {
		var err error
		bal, err = computeBalance(ctx, tx, excludeID)
		return err
	})
	if err != nil {
		return Balance{}, err
	}
	return bal, nil
}

// Movements lists the owner's committed movements ordered by date; zero
// bounds are unbounded.
func (e *Engine) Movements(ctx context.Context, ownerRef OwnerRef, from, to time.Time) ([]Movement, error) {
	return e.store.ListMovements(ctx, ownerRef, from, to)
}

// convert resolves the write-time rate and converted amount, recording the
// lookup outcome.
func (e *Engine) convert(ctx context.Context, amount decimal.Decimal, code string) (decimal.Decimal, decimal.Decimal, error) {
	converted, rate, err := e.rates.ConvertToReporting(ctx, amount, code)
	switch {
	case err == nil:
		metrics.RateLookups.WithLabelValues("ok").Inc()
	case errors.Is(err, currency.ErrRateUnavailable):
		metrics.RateLookups.WithLabelValues("unavailable").Inc()
	default:
		metrics.RateLookups.WithLabelValues("not_found").Inc()
	}
	return converted, rate, err
}

// finish runs the post-commit side effects: cache invalidation so the next
// read is never stale, then audit (non-blocking) and alert dispatch (awaited).
// None of their failures unwind the committed mutation.
func (e *Engine) finish(ctx context.Context, ownerRef OwnerRef, entry audit.Entry, events []alert.Event) {
	if e.cache != nil {
		if err := e.cache.InvalidatePrefix(ctx, cache.OwnerPrefix(string(ownerRef.Kind), ownerRef.ID)); err != nil {
			e.logger.Warn("cache invalidation failed", "owner_id", ownerRef.ID, "error", err)
		}
	}

	if e.auditor != nil {
		go func(entry audit.Entry) {
			recordCtx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
			defer cancel()
			if err := e.auditor.Record(recordCtx, entry); err != nil {
				e.logger.Warn("audit record failed", "entity_id", entry.EntityID, "error", err)
			}
		}(entry)
	}

	if e.alerts == nil {
		return
	}
	for _, event := range events {
		if event.Type == alert.EventBalanceNegative {
			metrics.NegativeBalanceAlerts.Inc()
		}
		if err := e.alerts.Dispatch(ctx, event); err != nil {
			e.logger.Warn("alert dispatch failed", "type", string(event.Type), "error", err)
		}
	}
}

func (e *Engine) observeFailure(err error) {
	if errors.Is(err, ErrInsufficientFunds) {
		metrics.InsufficientFundsRejections.Inc()
	}
	if errors.Is(err, ErrConcurrencyConflict) {
		metrics.ConcurrencyConflicts.Inc()
	}
}

// appendNegativeCrossing adds a distinct alert when the owner's solde crossed
// from non-negative to negative.
func appendNegativeCrossing(events []alert.Event, before, after Owner) []alert.Event {
	if before.Solde.Sign() >= 0 && after.Solde.Sign() < 0 {
		events = append(events, alert.Event{
			Type:       alert.EventBalanceNegative,
			OwnerID:    after.Ref.ID,
			OwnerCode:  after.Code,
			OwnerLabel: after.Label,
			Currency:   after.Currency,
			Amount:     after.Solde,
			Message:    fmt.Sprintf("solde de %s négatif: %s %s", after.Code, after.Solde, after.Currency),
		})
	}
	return events
}

func normalizeCreate(ownerRef OwnerRef, in MovementInput) (MovementInput, error) {
	if !in.Kind.Valid() {
		return in, fmt.Errorf("unknown movement kind %q: %w", in.Kind, ErrInvalidInput)
	}
	caps := in.Kind.caps()
	if caps.ownerKind != ownerRef.Kind {
		return in, fmt.Errorf("%s cannot belong to a %s: %w", kindLabel(in.Kind), ownerRef.Kind, ErrInvalidInput)
	}
	if in.Amount.Sign() <= 0 {
		return in, fmt.Errorf("amount must be positive: %w", ErrInvalidInput)
	}

	if caps.hasSource {
		if in.Source == "" {
			in.Source = SourceTresorerie
		}
		if in.Source != SourceTresorerie && in.Source != SourcePrefinancement {
			return in, fmt.Errorf("unknown source %q: %w", in.Source, ErrInvalidInput)
		}
		if in.Status == "" {
			in.Status = StatusPrevu
		}
		switch in.Status {
		case StatusPrevu, StatusValide, StatusPaye:
		default:
			return in, fmt.Errorf("unknown statut %q: %w", in.Status, ErrInvalidInput)
		}
	} else {
		if in.Source != "" || in.Status != "" {
			return in, fmt.Errorf("%s carries no source or statut: %w", kindLabel(in.Kind), ErrInvalidInput)
		}
	}

	if caps.hasSens {
		if in.Sens != SensEntree && in.Sens != SensSortie {
			return in, fmt.Errorf("sens must be ENTREE or SORTIE: %w", ErrInvalidInput)
		}
	} else if in.Sens != "" {
		return in, fmt.Errorf("%s carries no sens: %w", kindLabel(in.Kind), ErrInvalidInput)
	}

	return in, nil
}

// mergeUpdate applies the UpdateInput contract: metadata is replaced
// wholesale, a zero date is kept, Source/Sens change only when provided.
func mergeUpdate(old Movement, in UpdateInput) (Movement, error) {
	next := old
	next.Amount = in.Amount
	if !in.Date.IsZero() {
		next.Date = in.Date
	}
	next.Reference = in.Reference
	next.Description = in.Description
	next.Categorie = in.Categorie
	next.Beneficiaire = in.Beneficiaire
	next.ModePaiement = in.ModePaiement

	caps := old.Kind.caps()
	if in.Source != "" {
		if !caps.hasSource {
			return Movement{}, fmt.Errorf("%s carries no source: %w", kindLabel(old.Kind), ErrInvalidInput)
		}
		if in.Source != SourceTresorerie && in.Source != SourcePrefinancement {
			return Movement{}, fmt.Errorf("unknown source %q: %w", in.Source, ErrInvalidInput)
		}
		next.Source = in.Source
	}
	if in.Sens != "" {
		if !caps.hasSens {
			return Movement{}, fmt.Errorf("%s carries no sens: %w", kindLabel(old.Kind), ErrInvalidInput)
		}
		if in.Sens != SensEntree && in.Sens != SensSortie {
			return Movement{}, fmt.Errorf("sens must be ENTREE or SORTIE: %w", ErrInvalidInput)
		}
		next.Sens = in.Sens
	}
	return next, nil
}

func kindLabel(k Kind) string {
	switch k {
	case KindAccompte:
		return "accompte"
	case KindDecaissement:
		return "décaissement"
	case KindMouvement:
		return "mouvement"
	default:
		return string(k)
	}
}
