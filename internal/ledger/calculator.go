package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wasel-app/settlement-engine/internal/domain"
)

// Balance is the derived reconciliation state of one actor within one scope.
// It is never stored: callers recompute it from order facts and settled
// transfers whenever they need it, so there is no running balance to drift.
type Balance struct {
	CollectedSum   decimal.Decimal
	SettledSum     decimal.Decimal
	PendingBalance decimal.Decimal
	Currency       domain.Currency
	DeliveredCount int
	CancelledCount int
	ReturnedCount  int
}

// Compute derives a balance from immutable order facts and the sum of
// accepted transfers. Only delivered orders contribute to the collected sum;
// cancelled and returned orders are counted but carry no cash.
//
// Facts carrying a currency other than the actor's assigned one indicate an
// upstream configuration error and fail with CurrencyMismatch rather than
// being silently summed. An actor with no facts and no settled transfers gets
// an all-zero balance, not an error.
func Compute(currency domain.Currency, facts []domain.OrderFact, settledSum decimal.Decimal) (*Balance, error) {
	b := &Balance{
		CollectedSum: decimal.Zero,
		SettledSum:   settledSum,
		Currency:     currency,
	}

	for _, f := range facts {
		if f.Currency != currency {
			return nil, fmt.Errorf("Compute: fact %s has %s, actor settles in %s: %w",
				f.ID, f.Currency, currency, domain.ErrCurrencyMismatch)
		}
		switch f.Outcome {
		case domain.OrderOutcomeDelivered:
			b.DeliveredCount++
			b.CollectedSum = b.CollectedSum.Add(f.CollectedAmount)
		case domain.OrderOutcomeCancelled:
			b.CancelledCount++
		case domain.OrderOutcomeReturned:
			b.ReturnedCount++
		}
	}

	b.PendingBalance = b.CollectedSum.Sub(b.SettledSum)
	return b, nil
}
