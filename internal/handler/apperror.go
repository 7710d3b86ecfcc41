package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidAmount    = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrMissingProof     = &AppError{http.StatusBadRequest, "MISSING_PROOF", "Proof reference is required for bank transfers"}
	ErrExceedsBalance   = &AppError{http.StatusUnprocessableEntity, "EXCEEDS_BALANCE", "Amount exceeds pending balance"}
	ErrCurrencyMismatch = &AppError{http.StatusUnprocessableEntity, "CURRENCY_MISMATCH", "Currency mismatch"}
	ErrUnauthorized     = &AppError{http.StatusForbidden, "UNAUTHORIZED", "Actor is not authorized for this action"}
	ErrAlreadyDecided   = &AppError{http.StatusConflict, "ALREADY_DECIDED", "Transfer already decided with a different outcome"}
	ErrActorDisabled    = &AppError{http.StatusUnprocessableEntity, "ACTOR_DISABLED", "Actor is disabled"}
	ErrInvalidTransfer  = &AppError{http.StatusUnprocessableEntity, "INVALID_TRANSFER", "No transfer chain exists for this actor pair"}

	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
)
