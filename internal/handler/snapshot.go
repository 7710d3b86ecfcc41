package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wasel-app/settlement-engine/internal/auth"
	"github.com/wasel-app/settlement-engine/internal/domain"
	"github.com/wasel-app/settlement-engine/internal/logging"
)

type snapshotService interface {
	GetSnapshot(ctx context.Context, snapshotID, callerID uuid.UUID) (*domain.SettlementSnapshot, error)
	RenderSnapshot(ctx context.Context, snapshotID, callerID uuid.UUID) (*domain.SettlementSnapshot, error)
}

type SnapshotHandler struct {
	snapshots snapshotService
}

func NewSnapshotHandler(snapshots snapshotService) *SnapshotHandler {
	return &SnapshotHandler{snapshots: snapshots}
}

type snapshotDTO struct {
	ID             uuid.UUID  `json:"id"`
	TransferID     uuid.UUID  `json:"transfer_id"`
	FromActorID    uuid.UUID  `json:"from_actor_id"`
	ToActorID      uuid.UUID  `json:"to_actor_id"`
	Country        string     `json:"country"`
	Currency       string     `json:"currency"`
	Amount         string     `json:"amount"`
	Method         string     `json:"method"`
	ProofRef       *string    `json:"proof_ref,omitempty"`
	CollectedSum   string     `json:"collected_sum"`
	SettledSum     string     `json:"settled_sum"`
	PendingBalance string     `json:"pending_balance"`
	DeliveredCount int        `json:"delivered_count"`
	CancelledCount int        `json:"cancelled_count"`
	ReturnedCount  int        `json:"returned_count"`
	DocumentRef    *string    `json:"document_ref"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toSnapshotDTO(snap *domain.SettlementSnapshot) snapshotDTO {
	return snapshotDTO{
		ID:             snap.ID,
		TransferID:     snap.TransferID,
		FromActorID:    snap.FromActorID,
		ToActorID:      snap.ToActorID,
		Country:        snap.Country,
		Currency:       string(snap.Currency),
		Amount:         snap.Amount.String(),
		Method:         string(snap.Method),
		ProofRef:       snap.ProofRef,
		CollectedSum:   snap.CollectedSum.String(),
		SettledSum:     snap.SettledSum.String(),
		PendingBalance: snap.PendingBalance.String(),
		DeliveredCount: snap.DeliveredCount,
		CancelledCount: snap.CancelledCount,
		ReturnedCount:  snap.ReturnedCount,
		DocumentRef:    snap.DocumentRef,
		CreatedAt:      snap.CreatedAt,
	}
}

func (h *SnapshotHandler) Get(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.ActorIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	snapshotID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	snap, err := h.snapshots.GetSnapshot(r.Context(), snapshotID, callerID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("snapshot lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toSnapshotDTO(snap))
}

// Render retries document generation for snapshots whose render failed at
// accept time.
func (h *SnapshotHandler) Render(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.ActorIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	snapshotID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	snap, err := h.snapshots.RenderSnapshot(r.Context(), snapshotID, callerID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("snapshot render failed", "snapshot_id", snapshotID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toSnapshotDTO(snap))
}
