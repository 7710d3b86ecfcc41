package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wasel-app/settlement-engine/internal/domain"
	"github.com/wasel-app/settlement-engine/internal/repository"
)

// SettledMode selects how the settled sum relates to the scope's date range.
type SettledMode string

const (
	// SettledAllTime ignores the date range for settled transfers: a transfer
	// may legitimately settle collections older than the requested period.
	// This is the mode used for over-remittance checks.
	SettledAllTime SettledMode = "all_time"
	// SettledInPeriod restricts settled transfers to the scope's range over
	// their creation time, for period reports.
	SettledInPeriod SettledMode = "in_period"
)

// Scope narrows a balance computation to a country and an optional [From, To)
// interval over order delivery time.
type Scope struct {
	Country     string
	From        *time.Time
	To          *time.Time
	SettledMode SettledMode
}

type factRepo interface {
	ListByActor(ctx context.Context, q repository.Querier, actorID uuid.UUID, country string, from, to *time.Time) ([]domain.OrderFact, error)
}

type transferRepo interface {
	SumSettledFrom(ctx context.Context, q repository.Querier, actorID uuid.UUID, country string, from, to *time.Time) (decimal.Decimal, error)
	SumSettledTo(ctx context.Context, q repository.Querier, actorID uuid.UUID, country string, from, to *time.Time) (decimal.Decimal, error)
}

type actorRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Actor, error)
}

type Service struct {
	facts     factRepo
	transfers transferRepo
	actors    actorRepo
	db        *sql.DB
}

func NewService(facts factRepo, transfers transferRepo, actors actorRepo, db *sql.DB) *Service {
	return &Service{facts: facts, transfers: transfers, actors: actors, db: db}
}

func (s *Service) ComputeBalance(ctx context.Context, actorID uuid.UUID, scope Scope) (*Balance, error) {
	return s.computeBalance(ctx, s.db, actorID, scope)
}

// BalanceForCaller applies the read rule for the balance endpoint: an actor
// reads their own balance, a company actor reads anyone's.
func (s *Service) BalanceForCaller(ctx context.Context, callerID, actorID uuid.UUID, scope Scope) (*Balance, error) {
	if callerID != actorID {
		caller, err := s.actors.GetByID(ctx, callerID)
		if err != nil {
			return nil, fmt.Errorf("BalanceForCaller: %w", err)
		}
		if caller.Role != domain.RoleCompany {
			return nil, fmt.Errorf("BalanceForCaller: %w", domain.ErrNotFound)
		}
	}
	return s.computeBalance(ctx, s.db, actorID, scope)
}

// ComputeBalanceTx runs the same derivation inside the caller's transaction,
// so a decide-time re-check sees a consistent view of settled transfers.
func (s *Service) ComputeBalanceTx(ctx context.Context, tx *sql.Tx, actorID uuid.UUID, scope Scope) (*Balance, error) {
	return s.computeBalance(ctx, tx, actorID, scope)
}

func (s *Service) computeBalance(ctx context.Context, q repository.Querier, actorID uuid.UUID, scope Scope) (*Balance, error) {
	actor, err := s.actors.GetByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("computeBalance: %w", err)
	}

	country := scope.Country
	if country == "" {
		country = actor.Country
	}

	facts, err := s.facts.ListByActor(ctx, q, actorID, country, scope.From, scope.To)
	if err != nil {
		return nil, fmt.Errorf("computeBalance: %w", err)
	}

	var settledFrom, settledTo *time.Time
	if scope.SettledMode == SettledInPeriod {
		settledFrom, settledTo = scope.From, scope.To
	}
	settled, err := s.transfers.SumSettledFrom(ctx, q, actorID, country, settledFrom, settledTo)
	if err != nil {
		return nil, fmt.Errorf("computeBalance: %w", err)
	}

	b, err := Compute(actor.Currency, facts, settled)
	if err != nil {
		return nil, fmt.Errorf("computeBalance: %w", err)
	}

	// A manager holds no order facts of their own; the cash they owe upward is
	// what drivers have settled into their custody. Accepted inbound transfers
	// count as collected. Payouts to drivers are earnings, not custody, so this
	// applies to managers only.
	if actor.Role == domain.RoleManager {
		inbound, err := s.transfers.SumSettledTo(ctx, q, actorID, country, settledFrom, settledTo)
		if err != nil {
			return nil, fmt.Errorf("computeBalance: %w", err)
		}
		b.CollectedSum = b.CollectedSum.Add(inbound)
		b.PendingBalance = b.PendingBalance.Add(inbound)
	}

	return b, nil
}

// TreasuryBalance is the company analogue of an actor balance: accepted
// remittances received stand in for the collected sum, approved payouts for
// the settled sum. The company holds no order facts, so its payout capacity
// is capped by its settled inflow.
func (s *Service) TreasuryBalance(ctx context.Context, q repository.Querier, companyID uuid.UUID) (*Balance, error) {
	if q == nil {
		q = s.db
	}

	company, err := s.actors.GetByID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("TreasuryBalance: %w", err)
	}

	inflow, err := s.transfers.SumSettledTo(ctx, q, companyID, "", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("TreasuryBalance: %w", err)
	}
	outflow, err := s.transfers.SumSettledFrom(ctx, q, companyID, "", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("TreasuryBalance: %w", err)
	}

	return &Balance{
		CollectedSum:   inflow,
		SettledSum:     outflow,
		PendingBalance: inflow.Sub(outflow),
		Currency:       company.Currency,
	}, nil
}
