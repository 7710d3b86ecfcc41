package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wasel-app/settlement-engine/internal/auth"
	"github.com/wasel-app/settlement-engine/internal/domain"
	"github.com/wasel-app/settlement-engine/internal/logging"
)

type orderFactRepo interface {
	Create(ctx context.Context, fact *domain.OrderFact) error
}

type OrderFactHandler struct {
	facts orderFactRepo
}

func NewOrderFactHandler(facts orderFactRepo) *OrderFactHandler {
	return &OrderFactHandler{facts: facts}
}

type createOrderFactRequest struct {
	ActorID         string `json:"actor_id"`
	Country         string `json:"country"`
	Outcome         string `json:"outcome"`
	DeliveredAt     string `json:"delivered_at"`
	CollectedAmount string `json:"collected_amount"`
	Currency        string `json:"currency"`
}

func (r createOrderFactRequest) Validate() []FieldError {
	var errs []FieldError

	if _, err := uuid.Parse(r.ActorID); err != nil {
		errs = append(errs, FieldError{Field: "actor_id", Message: "must be a valid UUID"})
	}
	if r.Country == "" {
		errs = append(errs, FieldError{Field: "country", Message: "required"})
	}
	if !domain.OrderOutcome(r.Outcome).IsValid() {
		errs = append(errs, FieldError{Field: "outcome", Message: "must be delivered, cancelled, or returned"})
	}
	if _, err := time.Parse(time.RFC3339, r.DeliveredAt); err != nil {
		errs = append(errs, FieldError{Field: "delivered_at", Message: "must be RFC 3339"})
	}
	if amt, err := decimal.NewFromString(r.CollectedAmount); err != nil {
		errs = append(errs, FieldError{Field: "collected_amount", Message: "must be a decimal number"})
	} else if amt.IsNegative() {
		errs = append(errs, FieldError{Field: "collected_amount", Message: "must not be negative"})
	}
	if !domain.Currency(r.Currency).IsValid() {
		errs = append(errs, FieldError{Field: "currency", Message: "must be SAR, AED, or EGP"})
	}

	return errs
}

// Create ingests an immutable order fact from the order ledger feed.
func (h *OrderFactHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if _, ok := auth.ActorIDFromContext(r.Context()); !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createOrderFactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	deliveredAt, _ := time.Parse(time.RFC3339, req.DeliveredAt)
	collected, _ := decimal.NewFromString(req.CollectedAmount)

	fact := &domain.OrderFact{
		ID:              uuid.New(),
		ActorID:         uuid.MustParse(req.ActorID),
		Country:         req.Country,
		Outcome:         domain.OrderOutcome(req.Outcome),
		DeliveredAt:     deliveredAt,
		CollectedAmount: collected,
		Currency:        domain.Currency(req.Currency),
		CreatedAt:       time.Now().UTC(),
	}

	if err := h.facts.Create(r.Context(), fact); err != nil {
		log.Error("order fact ingestion failed", "actor_id", fact.ActorID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, map[string]any{"id": fact.ID})
}
