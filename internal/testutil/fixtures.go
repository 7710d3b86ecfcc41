package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wasel-app/settlement-engine/internal/domain"
)

var CompanyID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// SeedCompany inserts the company treasury actor. Company actors are not
// country scoped, so country stays empty.
func SeedCompany(t *testing.T, db *sql.DB, currency domain.Currency) *domain.Actor {
	t.Helper()

	a := &domain.Actor{
		ID:        CompanyID,
		Name:      "Wasel HQ",
		Role:      domain.RoleCompany,
		Country:   "",
		Currency:  currency,
		Status:    domain.ActorStatusActive,
		CreatedAt: time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO actors (id, name, role, country, currency, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		a.ID, a.Name, a.Role, a.Country, a.Currency, a.Status, a.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed company actor: %v", err)
	}
	return a
}

func SeedActor(t *testing.T, db *sql.DB, name string, role domain.Role, country string, currency domain.Currency) *domain.Actor {
	t.Helper()

	a := &domain.Actor{
		ID:        uuid.New(),
		Name:      name,
		Role:      role,
		Country:   country,
		Currency:  currency,
		Status:    domain.ActorStatusActive,
		CreatedAt: time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO actors (id, name, role, country, currency, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Name, a.Role, a.Country, a.Currency, a.Status, a.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed actor %s: %v", name, err)
	}
	return a
}

func DisableActor(t *testing.T, db *sql.DB, actorID uuid.UUID) {
	t.Helper()

	if _, err := db.Exec(`UPDATE actors SET status = 'disabled' WHERE id = $1`, actorID); err != nil {
		t.Fatalf("disable actor %s: %v", actorID, err)
	}
}

func SeedOrderFact(t *testing.T, db *sql.DB, actorID uuid.UUID, country string, outcome domain.OrderOutcome, collected string, currency domain.Currency, deliveredAt time.Time) *domain.OrderFact {
	t.Helper()

	f := &domain.OrderFact{
		ID:              uuid.New(),
		ActorID:         actorID,
		Country:         country,
		Outcome:         outcome,
		DeliveredAt:     deliveredAt,
		CollectedAmount: decimal.RequireFromString(collected),
		Currency:        currency,
		CreatedAt:       time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO order_facts (id, actor_id, country, outcome, delivered_at, collected_amount, currency, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, f.ActorID, f.Country, f.Outcome, f.DeliveredAt, f.CollectedAmount, f.Currency, f.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed order fact for %s: %v", actorID, err)
	}
	return f
}

func GetTransferStatus(t *testing.T, db *sql.DB, transferID uuid.UUID) domain.TransferStatus {
	t.Helper()

	var status string
	if err := db.QueryRow(`SELECT status FROM transfer_records WHERE id = $1`, transferID).Scan(&status); err != nil {
		t.Fatalf("get transfer status %s: %v", transferID, err)
	}
	return domain.TransferStatus(status)
}

func CountSnapshots(t *testing.T, db *sql.DB, transferID uuid.UUID) int {
	t.Helper()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM settlement_snapshots WHERE transfer_id = $1`, transferID).Scan(&count); err != nil {
		t.Fatalf("count snapshots for transfer %s: %v", transferID, err)
	}
	return count
}

func CountEvents(t *testing.T, db *sql.DB, transferID uuid.UUID, eventType domain.SettlementEventType) int {
	t.Helper()

	var count int
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM settlement_events WHERE transfer_id = $1 AND event_type = $2`,
		transferID, eventType,
	).Scan(&count); err != nil {
		t.Fatalf("count events for transfer %s: %v", transferID, err)
	}
	return count
}
