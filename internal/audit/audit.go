package audit

import (
	"context"
	"encoding/json"
	"time"
)

// Action classifies an audited mutation.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Entry is one immutable audit record: who did what to which entity, with
// before/after snapshots for mutations of existing rows.
type Entry struct {
	ID          string
	ActorID     string
	Action      Action
	EntityType  string
	EntityID    string
	Before      json.RawMessage
	After       json.RawMessage
	Description string
	CreatedAt   time.Time
}

// Recorder persists audit entries. Recording is fire-and-forget from the
// ledger's point of view: a recorder failure is logged, never propagated.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Snapshot marshals an entity state for the before/after fields, dropping the
// value silently when it cannot be encoded.
func Snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
