package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wasel-app/settlement-engine/internal/domain"
)

const orderFactColumns = `id, actor_id, country, outcome, delivered_at,
	collected_amount, currency, created_at`

type OrderFactRepository struct {
	db *sql.DB
}

func NewOrderFactRepository(db *sql.DB) *OrderFactRepository {
	return &OrderFactRepository{db: db}
}

// Create appends a fact. Facts are immutable: there is no update or delete.
func (r *OrderFactRepository) Create(ctx context.Context, fact *domain.OrderFact) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO order_facts (
			id, actor_id, country, outcome, delivered_at, collected_amount, currency, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		fact.ID, fact.ActorID, fact.Country, fact.Outcome, fact.DeliveredAt,
		fact.CollectedAmount, fact.Currency, fact.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// ListByActor returns facts for an actor and country, optionally restricted to
// a [from, to) half-open interval over delivered_at.
func (r *OrderFactRepository) ListByActor(ctx context.Context, q Querier, actorID uuid.UUID, country string, from, to *time.Time) ([]domain.OrderFact, error) {
	query := `SELECT ` + orderFactColumns + ` FROM order_facts WHERE actor_id = $1 AND country = $2`
	args := []any{actorID, country}

	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND delivered_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND delivered_at < $%d", len(args))
	}
	query += " ORDER BY delivered_at"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListByActor: %w", err)
	}
	defer rows.Close()

	var facts []domain.OrderFact
	for rows.Next() {
		f, err := scanOrderFact(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByActor: scan: %w", err)
		}
		facts = append(facts, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByActor: rows: %w", err)
	}
	return facts, nil
}

func scanOrderFact(s scanner) (*domain.OrderFact, error) {
	var f domain.OrderFact
	err := s.Scan(
		&f.ID, &f.ActorID, &f.Country, &f.Outcome, &f.DeliveredAt,
		&f.CollectedAmount, &f.Currency, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
