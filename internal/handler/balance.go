package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wasel-app/settlement-engine/internal/auth"
	"github.com/wasel-app/settlement-engine/internal/ledger"
	"github.com/wasel-app/settlement-engine/internal/logging"
)

type balanceService interface {
	BalanceForCaller(ctx context.Context, callerID, actorID uuid.UUID, scope ledger.Scope) (*ledger.Balance, error)
}

type BalanceHandler struct {
	balances balanceService
}

func NewBalanceHandler(balances balanceService) *BalanceHandler {
	return &BalanceHandler{balances: balances}
}

type balanceDTO struct {
	ActorID        uuid.UUID `json:"actor_id"`
	Country        string    `json:"country,omitempty"`
	CollectedSum   string    `json:"collected_sum"`
	SettledSum     string    `json:"settled_sum"`
	PendingBalance string    `json:"pending_balance"`
	Currency       string    `json:"currency"`
	DeliveredCount int       `json:"delivered_count"`
	CancelledCount int       `json:"cancelled_count"`
	ReturnedCount  int       `json:"returned_count"`
}

// Get computes the live pending balance for an actor. Query parameters:
// country, from/to (RFC 3339, half-open), settled_mode (all_time|in_period).
// Actors see their own balance, company actors see any.
func (h *BalanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.ActorIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	actorID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	scope := ledger.Scope{
		Country:     r.URL.Query().Get("country"),
		SettledMode: ledger.SettledAllTime,
	}
	if r.URL.Query().Get("settled_mode") == string(ledger.SettledInPeriod) {
		scope.SettledMode = ledger.SettledInPeriod
	}

	var fields []FieldError
	scope.From, fields = parseTimeParam(r, "from", fields)
	scope.To, fields = parseTimeParam(r, "to", fields)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	bal, err := h.balances.BalanceForCaller(r.Context(), callerID, actorID, scope)
	if err != nil {
		logging.FromContext(r.Context()).Warn("balance computation failed", "actor_id", actorID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, balanceDTO{
		ActorID:        actorID,
		Country:        scope.Country,
		CollectedSum:   bal.CollectedSum.String(),
		SettledSum:     bal.SettledSum.String(),
		PendingBalance: bal.PendingBalance.String(),
		Currency:       string(bal.Currency),
		DeliveredCount: bal.DeliveredCount,
		CancelledCount: bal.CancelledCount,
		ReturnedCount:  bal.ReturnedCount,
	})
}

func parseTimeParam(r *http.Request, name string, fields []FieldError) (*time.Time, []FieldError) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, fields
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, append(fields, FieldError{Field: name, Message: "must be RFC 3339"})
	}
	return &t, fields
}
