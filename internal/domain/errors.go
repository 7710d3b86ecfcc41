package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrMissingProof     = errors.New("proof reference required for bank transfers")
	ErrExceedsBalance   = errors.New("amount exceeds pending balance")
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrUnauthorized     = errors.New("actor not authorized for this action")
	ErrAlreadyDecided   = errors.New("transfer already decided")
	ErrActorDisabled    = errors.New("actor is disabled")
	ErrInvalidTransfer  = errors.New("no transfer chain exists for this actor pair")
	ErrInvalidRequest   = errors.New("invalid request")
)
