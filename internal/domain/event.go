package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type SettlementEventStatus string

const (
	SettlementEventStatusPending    SettlementEventStatus = "pending"
	SettlementEventStatusDispatched SettlementEventStatus = "dispatched"
	SettlementEventStatusFailed     SettlementEventStatus = "failed"
)

type SettlementEventType string

const (
	EventTransferCreated      SettlementEventType = "transfer.created"
	EventTransferAcknowledged SettlementEventType = "transfer.acknowledged"
	EventTransferAccepted     SettlementEventType = "transfer.accepted"
	EventTransferRejected     SettlementEventType = "transfer.rejected"
)

// SettlementEvent is an outbox row written in the same transaction as the
// state change it describes. A background dispatcher delivers it to the
// notification channel; delivery is at-least-once, subscribers must be
// idempotent.
type SettlementEvent struct {
	ID          uuid.UUID
	EventType   SettlementEventType
	TransferID  uuid.UUID
	Payload     json.RawMessage
	Status      SettlementEventStatus
	Attempts    int
	LastAttempt *time.Time
	CreatedAt   time.Time
}

// TransferEventPayload is the wire payload for transfer.* events.
type TransferEventPayload struct {
	TransferID  uuid.UUID      `json:"transfer_id"`
	FromActorID uuid.UUID      `json:"from_actor_id"`
	ToActorID   uuid.UUID      `json:"to_actor_id"`
	Amount      string         `json:"amount"`
	Currency    Currency       `json:"currency"`
	Country     string         `json:"country"`
	Status      TransferStatus `json:"status"`
}
