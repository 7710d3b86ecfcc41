package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/wasel-app/settlement-engine/internal/domain"
)

const snapshotColumns = `id, transfer_id, from_actor_id, to_actor_id, country, currency,
	amount, method, proof_ref, collected_sum, settled_sum, pending_balance,
	delivered_count, cancelled_count, returned_count, period_from, period_to,
	document_ref, created_at`

type SnapshotRepository struct {
	db *sql.DB
}

func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) Create(ctx context.Context, tx *sql.Tx, snap *domain.SettlementSnapshot) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO settlement_snapshots (
			id, transfer_id, from_actor_id, to_actor_id, country, currency,
			amount, method, proof_ref, collected_sum, settled_sum, pending_balance,
			delivered_count, cancelled_count, returned_count, period_from, period_to,
			document_ref, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19
		)`,
		snap.ID, snap.TransferID, snap.FromActorID, snap.ToActorID, snap.Country, snap.Currency,
		snap.Amount, snap.Method, snap.ProofRef, snap.CollectedSum, snap.SettledSum, snap.PendingBalance,
		snap.DeliveredCount, snap.CancelledCount, snap.ReturnedCount, snap.PeriodFrom, snap.PeriodTo,
		snap.DocumentRef, snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SettlementSnapshot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM settlement_snapshots WHERE id = $1`, id,
	)
	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return snap, nil
}

// SetDocumentRef backfills the document reference after a successful render.
// Only the document_ref column is touched; financial fields stay frozen.
func (r *SnapshotRepository) SetDocumentRef(ctx context.Context, id uuid.UUID, documentRef string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE settlement_snapshots SET document_ref = $1 WHERE id = $2`,
		documentRef, id,
	)
	if err != nil {
		return fmt.Errorf("SetDocumentRef: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("SetDocumentRef: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("SetDocumentRef: %w", domain.ErrNotFound)
	}
	return nil
}

func scanSnapshot(s scanner) (*domain.SettlementSnapshot, error) {
	var snap domain.SettlementSnapshot
	err := s.Scan(
		&snap.ID, &snap.TransferID, &snap.FromActorID, &snap.ToActorID, &snap.Country, &snap.Currency,
		&snap.Amount, &snap.Method, &snap.ProofRef, &snap.CollectedSum, &snap.SettledSum, &snap.PendingBalance,
		&snap.DeliveredCount, &snap.CancelledCount, &snap.ReturnedCount, &snap.PeriodFrom, &snap.PeriodTo,
		&snap.DocumentRef, &snap.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
