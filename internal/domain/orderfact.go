package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderOutcome string

const (
	OrderOutcomeDelivered OrderOutcome = "delivered"
	OrderOutcomeCancelled OrderOutcome = "cancelled"
	OrderOutcomeReturned  OrderOutcome = "returned"
)

func (o OrderOutcome) IsValid() bool {
	switch o {
	case OrderOutcomeDelivered, OrderOutcomeCancelled, OrderOutcomeReturned:
		return true
	}
	return false
}

// OrderFact is an immutable per-order summary ingested from the order ledger.
// Facts are append-only: the engine never updates or deletes them, balances
// are always recomputed from the full set.
type OrderFact struct {
	ID              uuid.UUID
	ActorID         uuid.UUID
	Country         string
	Outcome         OrderOutcome
	DeliveredAt     time.Time
	CollectedAmount decimal.Decimal
	Currency        Currency
	CreatedAt       time.Time
}
