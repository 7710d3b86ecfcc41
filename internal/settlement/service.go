package settlement

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wasel-app/settlement-engine/internal/domain"
	"github.com/wasel-app/settlement-engine/internal/ledger"
	"github.com/wasel-app/settlement-engine/internal/repository"
)

type transferRepo interface {
	Create(ctx context.Context, tx *sql.Tx, rec *domain.TransferRecord) error
	GetByID(ctx context.Context, q repository.Querier, id uuid.UUID) (*domain.TransferRecord, error)
	Transition(ctx context.Context, tx *sql.Tx, id uuid.UUID, expected []domain.TransferStatus, newStatus domain.TransferStatus, decidedBy *uuid.UUID, decidedAt *time.Time, rejectReason *string) (bool, error)
	SetSnapshotRef(ctx context.Context, tx *sql.Tx, id, snapshotID uuid.UUID) error
	ListByActor(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]domain.TransferRecord, error)
}

type actorRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Actor, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Actor, error)
}

type snapshotRepo interface {
	Create(ctx context.Context, tx *sql.Tx, snap *domain.SettlementSnapshot) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SettlementSnapshot, error)
	SetDocumentRef(ctx context.Context, id uuid.UUID, documentRef string) error
}

type eventRepo interface {
	Create(ctx context.Context, tx *sql.Tx, event *domain.SettlementEvent) error
}

type balanceService interface {
	ComputeBalance(ctx context.Context, actorID uuid.UUID, scope ledger.Scope) (*ledger.Balance, error)
	ComputeBalanceTx(ctx context.Context, tx *sql.Tx, actorID uuid.UUID, scope ledger.Scope) (*ledger.Balance, error)
	TreasuryBalance(ctx context.Context, q repository.Querier, companyID uuid.UUID) (*ledger.Balance, error)
}

type documentRenderer interface {
	Render(ctx context.Context, snap *domain.SettlementSnapshot) (string, error)
}

type Service struct {
	transfers transferRepo
	actors    actorRepo
	snapshots snapshotRepo
	events    eventRepo
	balances  balanceService
	docs      documentRenderer
	db        *sql.DB
}

func NewService(
	transfers transferRepo,
	actors actorRepo,
	snapshots snapshotRepo,
	events eventRepo,
	balances balanceService,
	docs documentRenderer,
	db *sql.DB,
) *Service {
	return &Service{
		transfers: transfers,
		actors:    actors,
		snapshots: snapshots,
		events:    events,
		balances:  balances,
		docs:      docs,
		db:        db,
	}
}

// GetTransfer returns a transfer visible to the caller: its sender, its
// receiver, or a company actor.
func (s *Service) GetTransfer(ctx context.Context, transferID, callerID uuid.UUID) (*domain.TransferRecord, error) {
	rec, err := s.transfers.GetByID(ctx, s.db, transferID)
	if err != nil {
		return nil, fmt.Errorf("GetTransfer: %w", err)
	}

	if rec.FromActorID != callerID && rec.ToActorID != callerID {
		caller, err := s.actors.GetByID(ctx, callerID)
		if err != nil {
			return nil, fmt.Errorf("GetTransfer: %w", err)
		}
		if caller.Role != domain.RoleCompany {
			return nil, fmt.Errorf("GetTransfer: %w", domain.ErrNotFound)
		}
	}

	return rec, nil
}

func (s *Service) ListTransfers(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]domain.TransferRecord, error) {
	recs, err := s.transfers.ListByActor(ctx, actorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ListTransfers: %w", err)
	}
	return recs, nil
}

// GetSnapshot returns a snapshot under the same visibility rule as
// GetTransfer: the transfer's sender, its receiver, or a company actor.
func (s *Service) GetSnapshot(ctx context.Context, snapshotID, callerID uuid.UUID) (*domain.SettlementSnapshot, error) {
	snap, err := s.snapshots.GetByID(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("GetSnapshot: %w", err)
	}
	if err := s.authorizeSnapshotRead(ctx, snap, callerID); err != nil {
		return nil, fmt.Errorf("GetSnapshot: %w", err)
	}
	return snap, nil
}

func (s *Service) authorizeSnapshotRead(ctx context.Context, snap *domain.SettlementSnapshot, callerID uuid.UUID) error {
	if snap.FromActorID == callerID || snap.ToActorID == callerID {
		return nil
	}
	caller, err := s.actors.GetByID(ctx, callerID)
	if err != nil {
		return err
	}
	if caller.Role != domain.RoleCompany {
		return domain.ErrNotFound
	}
	return nil
}

// senderBalance picks the balance derivation matching the transfer kind: the
// company treasury for payouts, the actor's reconciliation ledger otherwise.
// The settled-all-time mode is deliberate: a transfer may settle collections
// older than any reporting period.
func (s *Service) senderBalance(ctx context.Context, tx *sql.Tx, kind domain.TransferKind, fromActorID uuid.UUID, country string) (*ledger.Balance, error) {
	if kind == domain.KindPayout {
		if tx != nil {
			return s.balances.TreasuryBalance(ctx, tx, fromActorID)
		}
		return s.balances.TreasuryBalance(ctx, nil, fromActorID)
	}

	scope := ledger.Scope{Country: country, SettledMode: ledger.SettledAllTime}
	if tx != nil {
		return s.balances.ComputeBalanceTx(ctx, tx, fromActorID, scope)
	}
	return s.balances.ComputeBalance(ctx, fromActorID, scope)
}

func exceedsBalance(amount decimal.Decimal, bal *ledger.Balance) bool {
	return amount.GreaterThan(bal.PendingBalance)
}
