package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wasel-app/settlement-engine/internal/domain"
	"github.com/wasel-app/settlement-engine/internal/logging"
)

// Acknowledge records the intermediate manager checkpoint on a hierarchical
// transfer. It is advisory: the balance only settles on the final decision.
// Acknowledging a transfer that is already manager_accepted is a no-op.
func (s *Service) Acknowledge(ctx context.Context, transferID, byActorID uuid.UUID) (*domain.TransferRecord, error) {
	log := logging.FromContext(ctx)

	rec, err := s.transfers.GetByID(ctx, s.db, transferID)
	if err != nil {
		return nil, fmt.Errorf("Acknowledge: %w", err)
	}

	by, err := s.actors.GetByID(ctx, byActorID)
	if err != nil {
		return nil, fmt.Errorf("Acknowledge: %w", err)
	}
	if err := authorizeAcknowledge(by, rec); err != nil {
		return nil, fmt.Errorf("Acknowledge: %w", err)
	}

	if rec.Status == domain.TransferStatusManagerAccepted {
		return rec, nil
	}
	if rec.Status.IsTerminal() {
		return nil, fmt.Errorf("Acknowledge: status %s: %w", rec.Status, domain.ErrAlreadyDecided)
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Acknowledge: begin tx: %w", err)
	}
	defer tx.Rollback()

	moved, err := s.transfers.Transition(ctx, tx,
		rec.ID,
		[]domain.TransferStatus{domain.TransferStatusPending},
		domain.TransferStatusManagerAccepted,
		nil, nil, nil,
	)
	if err != nil {
		return nil, fmt.Errorf("Acknowledge: %w", err)
	}
	if !moved {
		tx.Rollback()
		return s.resolveLostAcknowledge(ctx, rec.ID)
	}

	rec.Status = domain.TransferStatusManagerAccepted
	if err := s.writeTransferEvent(ctx, tx, domain.EventTransferAcknowledged, rec, now); err != nil {
		return nil, fmt.Errorf("Acknowledge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Acknowledge: commit: %w", err)
	}

	log.Info("transfer acknowledged", "transfer_id", rec.ID, "manager", byActorID)
	return rec, nil
}

// resolveLostAcknowledge handles the losing side of an acknowledge race: a
// concurrent acknowledge reaching the same state counts as success, a
// concurrent final decision does not.
func (s *Service) resolveLostAcknowledge(ctx context.Context, transferID uuid.UUID) (*domain.TransferRecord, error) {
	current, err := s.transfers.GetByID(ctx, s.db, transferID)
	if err != nil {
		return nil, fmt.Errorf("resolveLostAcknowledge: %w", err)
	}
	if current.Status == domain.TransferStatusManagerAccepted {
		return current, nil
	}
	return nil, fmt.Errorf("resolveLostAcknowledge: status %s: %w", current.Status, domain.ErrAlreadyDecided)
}

// Decide applies the final accept/reject. Exactly one of any number of
// concurrent calls performs the effectful transition: losers re-read the row
// and either observe the outcome they wanted (treated as success, without a
// duplicate snapshot or event) or get AlreadyDecided.
func (s *Service) Decide(ctx context.Context, transferID, byActorID uuid.UUID, outcome domain.DecisionOutcome, reason *string) (*domain.TransferRecord, error) {
	log := logging.FromContext(ctx)

	rec, err := s.transfers.GetByID(ctx, s.db, transferID)
	if err != nil {
		return nil, fmt.Errorf("Decide: %w", err)
	}

	by, err := s.actors.GetByID(ctx, byActorID)
	if err != nil {
		return nil, fmt.Errorf("Decide: %w", err)
	}
	if err := authorizeDecide(by); err != nil {
		return nil, fmt.Errorf("Decide: %w", err)
	}

	var target domain.TransferStatus
	switch outcome {
	case domain.OutcomeAccept:
		target = rec.Kind.AcceptedStatus()
	case domain.OutcomeReject:
		target = domain.TransferStatusRejected
	default:
		return nil, fmt.Errorf("Decide: outcome %q: %w", outcome, domain.ErrInvalidRequest)
	}

	if rec.Status.IsTerminal() {
		return s.resolveTerminal(rec, target)
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Decide: begin tx: %w", err)
	}
	defer tx.Rollback()

	// Re-validate the over-remittance rule at decide time: two submits racing
	// against a stale balance can together overcommit, and this is the last
	// line of defense before money settles. The sender row lock serializes
	// concurrent accepts of distinct transfers from the same sender, so the
	// re-check cannot run against a balance another decide is about to settle.
	if outcome == domain.OutcomeAccept {
		if _, err := s.actors.GetForUpdate(ctx, tx, rec.FromActorID); err != nil {
			return nil, fmt.Errorf("Decide: %w", err)
		}
		bal, err := s.senderBalance(ctx, tx, rec.Kind, rec.FromActorID, rec.Country)
		if err != nil {
			return nil, fmt.Errorf("Decide: %w", err)
		}
		if exceedsBalance(rec.Amount, bal) {
			return nil, fmt.Errorf("Decide: %s exceeds pending %s: %w",
				rec.Amount, bal.PendingBalance, domain.ErrExceedsBalance)
		}
	}

	var rejectReason *string
	if outcome == domain.OutcomeReject {
		rejectReason = reason
	}

	moved, err := s.transfers.Transition(ctx, tx,
		rec.ID,
		rec.Kind.DecidableStatuses(),
		target,
		&byActorID, &now, rejectReason,
	)
	if err != nil {
		return nil, fmt.Errorf("Decide: %w", err)
	}
	if !moved {
		tx.Rollback()
		return s.resolveLostDecide(ctx, rec.ID, target)
	}

	rec.Status = target
	rec.DecidedAt = &now
	rec.DecidedBy = &byActorID
	rec.RejectReason = rejectReason

	if outcome == domain.OutcomeAccept {
		snap, err := s.buildSnapshot(ctx, tx, rec, now)
		if err != nil {
			return nil, fmt.Errorf("Decide: %w", err)
		}
		rec.SnapshotRef = &snap.ID

		if err := s.writeTransferEvent(ctx, tx, domain.EventTransferAccepted, rec, now); err != nil {
			return nil, fmt.Errorf("Decide: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("Decide: commit: %w", err)
		}

		log.Info("transfer settled",
			"transfer_id", rec.ID,
			"status", rec.Status,
			"decided_by", byActorID,
			"snapshot_id", snap.ID,
		)

		// Document rendering happens strictly after commit: a slow or failed
		// render must never roll back the settled financial state.
		s.renderDocument(ctx, snap)
		return rec, nil
	}

	if err := s.writeTransferEvent(ctx, tx, domain.EventTransferRejected, rec, now); err != nil {
		return nil, fmt.Errorf("Decide: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Decide: commit: %w", err)
	}

	log.Info("transfer rejected", "transfer_id", rec.ID, "decided_by", byActorID)
	return rec, nil
}

// resolveTerminal implements the idempotency rule for decide on an
// already-terminal record: same outcome is a no-op returning the current
// state, a conflicting outcome reports AlreadyDecided.
func (s *Service) resolveTerminal(rec *domain.TransferRecord, target domain.TransferStatus) (*domain.TransferRecord, error) {
	if rec.Status == target {
		return rec, nil
	}
	return nil, fmt.Errorf("resolveTerminal: status %s, wanted %s: %w", rec.Status, target, domain.ErrAlreadyDecided)
}

func (s *Service) resolveLostDecide(ctx context.Context, transferID uuid.UUID, target domain.TransferStatus) (*domain.TransferRecord, error) {
	current, err := s.transfers.GetByID(ctx, s.db, transferID)
	if err != nil {
		return nil, fmt.Errorf("resolveLostDecide: %w", err)
	}
	if !current.Status.IsTerminal() {
		return nil, fmt.Errorf("resolveLostDecide: transfer %s stuck in %s: %w", transferID, current.Status, domain.ErrAlreadyDecided)
	}
	return s.resolveTerminal(current, target)
}
