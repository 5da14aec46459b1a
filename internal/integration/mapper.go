package integration

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/stockroom/internal/inventory"
)

// EventMovementPosted is the envelope type for committed ledger movements.
const EventMovementPosted = "inventory.movement_posted"

// Envelope wraps an event payload for the message bus.
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Version    string          `json:"version"`
	AccountID  int64           `json:"account_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// movementEnvelope maps a posted movement onto the bus envelope.
func movementEnvelope(evt inventory.MovementPostedEvent, now time.Time) (Envelope, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, err
	}
	occurred := evt.PostedAt
	if occurred.IsZero() {
		occurred = now
	}
	return Envelope{
		ID:         uuid.New(),
		Type:       EventMovementPosted,
		Version:    "1",
		AccountID:  evt.AccountID,
		OccurredAt: occurred.UTC(),
		Payload:    payload,
	}, nil
}

// movementSubject returns <prefix>.<kind>, e.g. stockroom.movements.reverse_export.
func movementSubject(prefix string, kind inventory.EntryKind) string {
	return strings.TrimSuffix(prefix, ".") + "." + strings.ToLower(string(kind))
}
