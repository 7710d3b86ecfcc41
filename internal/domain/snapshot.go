package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementSnapshot freezes the reconciliation view of an actor at the moment
// a transfer reached its accepting terminal state. It is created exactly once
// per accepted transfer, read many times, and never recomputed, even if the
// underlying order facts are later corrected.
type SettlementSnapshot struct {
	ID             uuid.UUID
	TransferID     uuid.UUID
	FromActorID    uuid.UUID
	ToActorID      uuid.UUID
	Country        string
	Currency       Currency
	Amount         decimal.Decimal
	Method         TransferMethod
	ProofRef       *string
	CollectedSum   decimal.Decimal
	SettledSum     decimal.Decimal
	PendingBalance decimal.Decimal
	DeliveredCount int
	CancelledCount int
	ReturnedCount  int
	PeriodFrom     *time.Time
	PeriodTo       *time.Time
	// DocumentRef is the opaque reference returned by the document generator.
	// Nil when rendering failed or has not happened yet; a later render call
	// backfills it without touching the financial fields.
	DocumentRef *string
	CreatedAt   time.Time
}
