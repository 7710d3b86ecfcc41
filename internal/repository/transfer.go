package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/wasel-app/settlement-engine/internal/domain"
)

const transferColumns = `id, kind, from_actor_id, to_actor_id, amount, currency,
	method, proof_ref, note, country, status, reject_reason, snapshot_ref,
	created_at, decided_at, decided_by`

type TransferRepository struct {
	db *sql.DB
}

func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) Create(ctx context.Context, tx *sql.Tx, rec *domain.TransferRecord) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transfer_records (
			id, kind, from_actor_id, to_actor_id, amount, currency,
			method, proof_ref, note, country, status, reject_reason, snapshot_ref,
			created_at, decided_at, decided_by
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)`,
		rec.ID, rec.Kind, rec.FromActorID, rec.ToActorID, rec.Amount, rec.Currency,
		rec.Method, rec.ProofRef, rec.Note, rec.Country, rec.Status, rec.RejectReason, rec.SnapshotRef,
		rec.CreatedAt, rec.DecidedAt, rec.DecidedBy,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransferRepository) GetByID(ctx context.Context, q Querier, id uuid.UUID) (*domain.TransferRecord, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfer_records WHERE id = $1`, id,
	)
	rec, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return rec, nil
}

// Transition performs the compare-and-set at the heart of the state machine:
// the row moves to newStatus only if its current status is still one of
// expected. Returns false when a concurrent writer got there first; the caller
// reloads and applies the idempotency rules.
func (r *TransferRepository) Transition(ctx context.Context, tx *sql.Tx, id uuid.UUID, expected []domain.TransferStatus, newStatus domain.TransferStatus, decidedBy *uuid.UUID, decidedAt *time.Time, rejectReason *string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE transfer_records
		SET status = $1, decided_by = $2, decided_at = $3, reject_reason = $4
		WHERE id = $5 AND status = ANY($6)`,
		newStatus, decidedBy, decidedAt, rejectReason, id, pq.Array(statusStrings(expected)),
	)
	if err != nil {
		return false, fmt.Errorf("Transition: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Transition: rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *TransferRepository) SetSnapshotRef(ctx context.Context, tx *sql.Tx, id, snapshotID uuid.UUID) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transfer_records SET snapshot_ref = $1 WHERE id = $2 AND snapshot_ref IS NULL`,
		snapshotID, id,
	)
	if err != nil {
		return fmt.Errorf("SetSnapshotRef: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("SetSnapshotRef: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("SetSnapshotRef: %w", domain.ErrAlreadyDecided)
	}
	return nil
}

// SumSettledFrom sums accepted/approved amounts sent by an actor, optionally
// restricted to a [from, to) interval over created_at. Runs on the caller's
// Querier so decide-time checks can read inside their own transaction.
func (r *TransferRepository) SumSettledFrom(ctx context.Context, q Querier, actorID uuid.UUID, country string, from, to *time.Time) (decimal.Decimal, error) {
	return r.sumSettled(ctx, q, "from_actor_id", actorID, country, from, to)
}

// SumSettledTo sums accepted/approved amounts received by an actor. Used for
// the company treasury capacity check on payouts.
func (r *TransferRepository) SumSettledTo(ctx context.Context, q Querier, actorID uuid.UUID, country string, from, to *time.Time) (decimal.Decimal, error) {
	return r.sumSettled(ctx, q, "to_actor_id", actorID, country, from, to)
}

func (r *TransferRepository) sumSettled(ctx context.Context, q Querier, column string, actorID uuid.UUID, country string, from, to *time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM transfer_records
		WHERE ` + column + ` = $1 AND status IN ('accepted', 'approved')`
	args := []any{actorID}

	if country != "" {
		args = append(args, country)
		query += fmt.Sprintf(" AND country = $%d", len(args))
	}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}

	var sum decimal.Decimal
	if err := q.QueryRowContext(ctx, query, args...).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sumSettled: %w", err)
	}
	return sum, nil
}

// ListByActor returns transfers where the actor is sender or receiver, newest
// first.
func (r *TransferRepository) ListByActor(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]domain.TransferRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transferColumns+` FROM transfer_records
		WHERE from_actor_id = $1 OR to_actor_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		actorID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByActor: %w", err)
	}
	defer rows.Close()

	var recs []domain.TransferRecord
	for rows.Next() {
		rec, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByActor: scan: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByActor: rows: %w", err)
	}
	return recs, nil
}

func scanTransfer(s scanner) (*domain.TransferRecord, error) {
	var rec domain.TransferRecord
	var snapshotRef uuid.NullUUID
	var decidedBy uuid.NullUUID

	err := s.Scan(
		&rec.ID, &rec.Kind, &rec.FromActorID, &rec.ToActorID, &rec.Amount, &rec.Currency,
		&rec.Method, &rec.ProofRef, &rec.Note, &rec.Country, &rec.Status, &rec.RejectReason, &snapshotRef,
		&rec.CreatedAt, &rec.DecidedAt, &decidedBy,
	)
	if err != nil {
		return nil, err
	}

	if snapshotRef.Valid {
		rec.SnapshotRef = &snapshotRef.UUID
	}
	if decidedBy.Valid {
		rec.DecidedBy = &decidedBy.UUID
	}
	return &rec, nil
}

func statusStrings(statuses []domain.TransferStatus) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}
