package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wasel-app/settlement-engine/internal/auth"
	"github.com/wasel-app/settlement-engine/internal/domain"
	"github.com/wasel-app/settlement-engine/internal/logging"
	"github.com/wasel-app/settlement-engine/internal/settlement"
)

type settlementService interface {
	Submit(ctx context.Context, req settlement.SubmitRequest) (*domain.TransferRecord, error)
	Acknowledge(ctx context.Context, transferID, byActorID uuid.UUID) (*domain.TransferRecord, error)
	Decide(ctx context.Context, transferID, byActorID uuid.UUID, outcome domain.DecisionOutcome, reason *string) (*domain.TransferRecord, error)
	GetTransfer(ctx context.Context, transferID, callerID uuid.UUID) (*domain.TransferRecord, error)
	ListTransfers(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]domain.TransferRecord, error)
}

type TransferHandler struct {
	settlements settlementService
}

func NewTransferHandler(settlements settlementService) *TransferHandler {
	return &TransferHandler{settlements: settlements}
}

type submitTransferRequest struct {
	FromActorID string  `json:"from_actor_id"`
	ToActorID   string  `json:"to_actor_id"`
	Amount      string  `json:"amount"`
	Method      string  `json:"method"`
	ProofRef    *string `json:"proof_ref"`
	Note        *string `json:"note"`
	Country     string  `json:"country"`
}

func (r submitTransferRequest) Validate() []FieldError {
	var errs []FieldError

	if _, err := uuid.Parse(r.FromActorID); err != nil {
		errs = append(errs, FieldError{Field: "from_actor_id", Message: "must be a valid UUID"})
	}
	if _, err := uuid.Parse(r.ToActorID); err != nil {
		errs = append(errs, FieldError{Field: "to_actor_id", Message: "must be a valid UUID"})
	}

	if r.Amount == "" {
		errs = append(errs, FieldError{Field: "amount", Message: "required"})
	} else if amt, err := decimal.NewFromString(r.Amount); err != nil {
		errs = append(errs, FieldError{Field: "amount", Message: "must be a decimal number"})
	} else if !amt.IsPositive() {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}

	if r.Method == "" {
		errs = append(errs, FieldError{Field: "method", Message: "required"})
	} else if !domain.TransferMethod(r.Method).IsValid() {
		errs = append(errs, FieldError{Field: "method", Message: "must be hand or transfer"})
	}

	return errs
}

type decideRequest struct {
	Outcome string  `json:"outcome"`
	Reason  *string `json:"reason"`
}

type transferDTO struct {
	ID           uuid.UUID  `json:"id"`
	Kind         string     `json:"kind"`
	FromActorID  uuid.UUID  `json:"from_actor_id"`
	ToActorID    uuid.UUID  `json:"to_actor_id"`
	Amount       string     `json:"amount"`
	Currency     string     `json:"currency"`
	Method       string     `json:"method"`
	ProofRef     *string    `json:"proof_ref,omitempty"`
	Note         *string    `json:"note,omitempty"`
	Country      string     `json:"country"`
	Status       string     `json:"status"`
	RejectReason *string    `json:"reject_reason,omitempty"`
	SnapshotRef  *uuid.UUID `json:"snapshot_ref,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
	DecidedBy    *uuid.UUID `json:"decided_by,omitempty"`
}

func toTransferDTO(rec *domain.TransferRecord) transferDTO {
	return transferDTO{
		ID:           rec.ID,
		Kind:         string(rec.Kind),
		FromActorID:  rec.FromActorID,
		ToActorID:    rec.ToActorID,
		Amount:       rec.Amount.String(),
		Currency:     string(rec.Currency),
		Method:       string(rec.Method),
		ProofRef:     rec.ProofRef,
		Note:         rec.Note,
		Country:      rec.Country,
		Status:       string(rec.Status),
		RejectReason: rec.RejectReason,
		SnapshotRef:  rec.SnapshotRef,
		CreatedAt:    rec.CreatedAt,
		DecidedAt:    rec.DecidedAt,
		DecidedBy:    rec.DecidedBy,
	}
}

func (h *TransferHandler) Submit(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	actorID, ok := auth.ActorIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req submitTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	amount, _ := decimal.NewFromString(req.Amount)
	rec, err := h.settlements.Submit(r.Context(), settlement.SubmitRequest{
		SubmittedBy: actorID,
		FromActorID: uuid.MustParse(req.FromActorID),
		ToActorID:   uuid.MustParse(req.ToActorID),
		Amount:      amount,
		Method:      domain.TransferMethod(req.Method),
		ProofRef:    req.ProofRef,
		Note:        req.Note,
		Country:     req.Country,
	})
	if err != nil {
		log.Warn("transfer submission failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/transfers/%s", rec.ID))
	RespondSuccess(w, http.StatusCreated, toTransferDTO(rec))
}

func (h *TransferHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	actorID, ok := auth.ActorIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	transferID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	rec, err := h.settlements.Acknowledge(r.Context(), transferID, actorID)
	if err != nil {
		log.Warn("transfer acknowledge failed", "transfer_id", transferID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransferDTO(rec))
}

func (h *TransferHandler) Decide(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	actorID, ok := auth.ActorIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	transferID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	outcome := domain.DecisionOutcome(req.Outcome)
	if outcome != domain.OutcomeAccept && outcome != domain.OutcomeReject {
		RespondValidationError(w, []FieldError{{Field: "outcome", Message: "must be accept or reject"}})
		return
	}

	rec, err := h.settlements.Decide(r.Context(), transferID, actorID, outcome, req.Reason)
	if err != nil {
		log.Warn("transfer decision failed", "transfer_id", transferID, "outcome", outcome, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransferDTO(rec))
}

func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, ok := auth.ActorIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	transferID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	rec, err := h.settlements.GetTransfer(r.Context(), transferID, actorID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("transfer lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransferDTO(rec))
}

func (h *TransferHandler) List(w http.ResponseWriter, r *http.Request) {
	actorID, ok := auth.ActorIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	limit := parseIntParam(r, "limit", 50)
	offset := parseIntParam(r, "offset", 0)
	if limit > 200 {
		limit = 200
	}

	recs, err := h.settlements.ListTransfers(r.Context(), actorID, limit, offset)
	if err != nil {
		logging.FromContext(r.Context()).Warn("transfer list failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]transferDTO, 0, len(recs))
	for i := range recs {
		dtos = append(dtos, toTransferDTO(&recs[i]))
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
