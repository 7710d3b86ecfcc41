package settlement

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wasel-app/settlement-engine/internal/domain"
	"github.com/wasel-app/settlement-engine/internal/logging"
)

// buildSnapshot freezes the sender's reconciliation state inside the
// accepting transaction, so no accepted transfer ever lacks a snapshot. The
// balance is computed after the transition, so the snapshot shows the world
// with this transfer settled.
func (s *Service) buildSnapshot(ctx context.Context, tx *sql.Tx, rec *domain.TransferRecord, now time.Time) (*domain.SettlementSnapshot, error) {
	bal, err := s.senderBalance(ctx, tx, rec.Kind, rec.FromActorID, rec.Country)
	if err != nil {
		return nil, fmt.Errorf("buildSnapshot: %w", err)
	}

	snap := &domain.SettlementSnapshot{
		ID:             uuid.New(),
		TransferID:     rec.ID,
		FromActorID:    rec.FromActorID,
		ToActorID:      rec.ToActorID,
		Country:        rec.Country,
		Currency:       rec.Currency,
		Amount:         rec.Amount,
		Method:         rec.Method,
		ProofRef:       rec.ProofRef,
		CollectedSum:   bal.CollectedSum,
		SettledSum:     bal.SettledSum,
		PendingBalance: bal.PendingBalance,
		DeliveredCount: bal.DeliveredCount,
		CancelledCount: bal.CancelledCount,
		ReturnedCount:  bal.ReturnedCount,
		CreatedAt:      now,
	}

	if err := s.snapshots.Create(ctx, tx, snap); err != nil {
		return nil, fmt.Errorf("buildSnapshot: %w", err)
	}
	if err := s.transfers.SetSnapshotRef(ctx, tx, rec.ID, snap.ID); err != nil {
		return nil, fmt.Errorf("buildSnapshot: %w", err)
	}

	return snap, nil
}

// renderDocument asks the document generator for a receipt. Failures are
// logged and the snapshot keeps a null document_ref; RenderSnapshot can
// backfill it later.
func (s *Service) renderDocument(ctx context.Context, snap *domain.SettlementSnapshot) {
	log := logging.FromContext(ctx)

	ref, err := s.docs.Render(ctx, snap)
	if err != nil {
		log.Warn("settlement document render failed, deferring",
			"snapshot_id", snap.ID,
			"transfer_id", snap.TransferID,
			"error", err,
		)
		return
	}

	if err := s.snapshots.SetDocumentRef(ctx, snap.ID, ref); err != nil {
		log.Error("failed to store document ref", "snapshot_id", snap.ID, "error", err)
		return
	}
	snap.DocumentRef = &ref
}

// RenderSnapshot retries document generation for a snapshot whose render
// failed at accept time. Already-rendered snapshots are returned as-is. The
// caller must be able to see the snapshot in the first place.
func (s *Service) RenderSnapshot(ctx context.Context, snapshotID, callerID uuid.UUID) (*domain.SettlementSnapshot, error) {
	snap, err := s.snapshots.GetByID(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("RenderSnapshot: %w", err)
	}
	if err := s.authorizeSnapshotRead(ctx, snap, callerID); err != nil {
		return nil, fmt.Errorf("RenderSnapshot: %w", err)
	}
	if snap.DocumentRef != nil {
		return snap, nil
	}

	ref, err := s.docs.Render(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("RenderSnapshot: %w", err)
	}
	if err := s.snapshots.SetDocumentRef(ctx, snap.ID, ref); err != nil {
		return nil, fmt.Errorf("RenderSnapshot: %w", err)
	}
	snap.DocumentRef = &ref
	return snap, nil
}

func (s *Service) writeTransferEvent(ctx context.Context, tx *sql.Tx, eventType domain.SettlementEventType, rec *domain.TransferRecord, now time.Time) error {
	payload, err := json.Marshal(domain.TransferEventPayload{
		TransferID:  rec.ID,
		FromActorID: rec.FromActorID,
		ToActorID:   rec.ToActorID,
		Amount:      rec.Amount.String(),
		Currency:    rec.Currency,
		Country:     rec.Country,
		Status:      rec.Status,
	})
	if err != nil {
		return fmt.Errorf("writeTransferEvent: marshal: %w", err)
	}

	event := &domain.SettlementEvent{
		ID:         uuid.New(),
		EventType:  eventType,
		TransferID: rec.ID,
		Payload:    payload,
		Status:     domain.SettlementEventStatusPending,
		CreatedAt:  now,
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("writeTransferEvent: %w", err)
	}
	return nil
}
