package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/wasel-app/settlement-engine/internal/domain"
)

const actorColumns = `id, name, role, country, currency, status, created_at`

// ActorRepository is read-only: actors are provisioned by the identity
// subsystem, the engine only resolves role, country, and currency.
type ActorRepository struct {
	db *sql.DB
}

func NewActorRepository(db *sql.DB) *ActorRepository {
	return &ActorRepository{db: db}
}

func (r *ActorRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Actor, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+actorColumns+` FROM actors WHERE id = $1`, id,
	)
	a, err := scanActor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return a, nil
}

// GetForUpdate locks the actor row for the duration of the caller's
// transaction. Concurrent decides against the same sender serialize on this
// lock, so a balance re-check always sees every already-settled transfer.
func (r *ActorRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Actor, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+actorColumns+` FROM actors WHERE id = $1 FOR UPDATE`, id,
	)
	a, err := scanActor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return a, nil
}

func (r *ActorRepository) GetCompany(ctx context.Context) (*domain.Actor, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+actorColumns+` FROM actors WHERE role = $1 LIMIT 1`, domain.RoleCompany,
	)
	a, err := scanActor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetCompany: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetCompany: %w", err)
	}
	return a, nil
}

func scanActor(s scanner) (*domain.Actor, error) {
	var a domain.Actor
	err := s.Scan(&a.ID, &a.Name, &a.Role, &a.Country, &a.Currency, &a.Status, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
