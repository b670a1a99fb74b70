package alert

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
)

// EventType identifies the business condition behind an alert.
type EventType string

const (
	// EventMovementCreated signals a committed monetary movement.
	EventMovementCreated EventType = "mouvement_cree"
	// EventMovementUpdated signals an edit to a committed movement.
	EventMovementUpdated EventType = "mouvement_modifie"
	// EventMovementDeleted signals the reversal of a committed movement.
	EventMovementDeleted EventType = "mouvement_supprime"
	// EventBalanceNegative signals that an owner's solde crossed below zero.
	EventBalanceNegative EventType = "solde_negatif"
	// EventDecaissementValide signals a disbursement moving to VALIDE.
	EventDecaissementValide EventType = "decaissement_valide"
	// EventDecaissementPaye signals a disbursement moving to PAYE.
	EventDecaissementPaye EventType = "decaissement_paye"
)

// Event carries enough structured context for the downstream notification
// subsystem to render a message without re-querying the ledger.
type Event struct {
	Type       EventType
	OwnerID    string
	OwnerCode  string
	OwnerLabel string
	Currency   string
	Amount     decimal.Decimal
	Message    string
}

// Dispatcher delivers alert events to the notification subsystem. Dispatch is
// awaited by the caller but its failure never unwinds a committed mutation.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// LoggerDispatcher is a stub implementation that writes alerts to the logger.
type LoggerDispatcher struct {
	logger *slog.Logger
}

// NewLoggerDispatcher constructs a logging dispatcher stub.
func NewLoggerDispatcher(logger *slog.Logger) *LoggerDispatcher {
	return &LoggerDispatcher{logger: logger}
}

// Dispatch writes the event to the structured logger.
func (d *LoggerDispatcher) Dispatch(_ context.Context, event Event) error {
	if d == nil || d.logger == nil {
		return nil
	}
	d.logger.Info("alert",
		"type", string(event.Type),
		"owner_id", event.OwnerID,
		"owner_code", event.OwnerCode,
		"currency", event.Currency,
		"amount", event.Amount.String(),
		"message", event.Message,
	)
	return nil
}
