package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wasel-app/settlement-engine/internal/domain"
	"github.com/wasel-app/settlement-engine/internal/logging"
)

type SubmitRequest struct {
	SubmittedBy uuid.UUID
	FromActorID uuid.UUID
	ToActorID   uuid.UUID
	Amount      decimal.Decimal
	Method      domain.TransferMethod
	ProofRef    *string
	Note        *string
	Country     string
}

// Submit creates a pending TransferRecord. Validation and the over-remittance
// check run before anything is written; a failed submit leaves no record
// behind.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*domain.TransferRecord, error) {
	log := logging.FromContext(ctx)

	if err := validateSubmit(req); err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}

	from, err := s.actors.GetByID(ctx, req.FromActorID)
	if err != nil {
		return nil, fmt.Errorf("Submit: sender: %w", err)
	}
	to, err := s.actors.GetByID(ctx, req.ToActorID)
	if err != nil {
		return nil, fmt.Errorf("Submit: receiver: %w", err)
	}

	kind, ok := domain.KindForRoles(from.Role, to.Role)
	if !ok {
		return nil, fmt.Errorf("Submit: %s to %s: %w", from.Role, to.Role, domain.ErrInvalidTransfer)
	}

	country := req.Country
	if country == "" {
		country = from.Country
	}
	if country == "" {
		country = to.Country
	}

	if err := authorizeSubmit(from, req.SubmittedBy, country); err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}
	if to.Status != domain.ActorStatusActive {
		return nil, fmt.Errorf("Submit: receiver: %w", domain.ErrActorDisabled)
	}
	if from.Currency != to.Currency {
		return nil, fmt.Errorf("Submit: sender settles in %s, receiver in %s: %w",
			from.Currency, to.Currency, domain.ErrCurrencyMismatch)
	}

	bal, err := s.senderBalance(ctx, nil, kind, from.ID, country)
	if err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}
	if exceedsBalance(req.Amount, bal) {
		return nil, fmt.Errorf("Submit: %s exceeds pending %s: %w",
			req.Amount, bal.PendingBalance, domain.ErrExceedsBalance)
	}

	now := time.Now().UTC()
	rec := &domain.TransferRecord{
		ID:          uuid.New(),
		Kind:        kind,
		FromActorID: from.ID,
		ToActorID:   to.ID,
		Amount:      req.Amount,
		Currency:    from.Currency,
		Method:      req.Method,
		ProofRef:    req.ProofRef,
		Note:        req.Note,
		Country:     country,
		Status:      domain.TransferStatusPending,
		CreatedAt:   now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Submit: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.transfers.Create(ctx, tx, rec); err != nil {
		return nil, fmt.Errorf("Submit: create transfer: %w", err)
	}
	if err := s.writeTransferEvent(ctx, tx, domain.EventTransferCreated, rec, now); err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Submit: commit: %w", err)
	}

	log.Info("transfer submitted",
		"transfer_id", rec.ID,
		"kind", rec.Kind,
		"from_actor", rec.FromActorID,
		"to_actor", rec.ToActorID,
		"amount", rec.Amount,
		"currency", rec.Currency,
		"country", rec.Country,
	)

	return rec, nil
}

func validateSubmit(req SubmitRequest) error {
	if !req.Amount.IsPositive() {
		return fmt.Errorf("validateSubmit: %w", domain.ErrInvalidAmount)
	}
	if !req.Method.IsValid() {
		return fmt.Errorf("validateSubmit: method %q: %w", req.Method, domain.ErrInvalidRequest)
	}
	if req.Method == domain.MethodTransfer && (req.ProofRef == nil || *req.ProofRef == "") {
		return fmt.Errorf("validateSubmit: %w", domain.ErrMissingProof)
	}
	return nil
}
