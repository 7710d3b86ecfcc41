package settlement

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/wasel-app/settlement-engine/internal/domain"
)

// The approval coordinator's authorization rules. Who may act is decided
// here; how much may move is decided by the balance checks in submit/decide.

// authorizeSubmit requires the caller to be the sending actor itself, active,
// and inside its own country scope.
func authorizeSubmit(caller *domain.Actor, fromActorID uuid.UUID, country string) error {
	if caller.ID != fromActorID {
		return fmt.Errorf("authorizeSubmit: caller is not the sender: %w", domain.ErrUnauthorized)
	}
	if caller.Status != domain.ActorStatusActive {
		return fmt.Errorf("authorizeSubmit: %w", domain.ErrActorDisabled)
	}
	if caller.IsCountryScoped() && caller.Country != country {
		return fmt.Errorf("authorizeSubmit: actor %s not assigned to %s: %w", caller.ID, country, domain.ErrUnauthorized)
	}
	return nil
}

// authorizeAcknowledge allows only the designated intermediate approver: the
// receiving manager of a transfer kind that carries the checkpoint.
func authorizeAcknowledge(by *domain.Actor, rec *domain.TransferRecord) error {
	if !rec.Kind.HasCheckpoint() {
		return fmt.Errorf("authorizeAcknowledge: kind %s has no checkpoint: %w", rec.Kind, domain.ErrUnauthorized)
	}
	if by.Status != domain.ActorStatusActive {
		return fmt.Errorf("authorizeAcknowledge: %w", domain.ErrActorDisabled)
	}
	if by.Role != domain.RoleManager || by.ID != rec.ToActorID {
		return fmt.Errorf("authorizeAcknowledge: actor %s is not the receiving manager: %w", by.ID, domain.ErrUnauthorized)
	}
	if by.Country != rec.Country {
		return fmt.Errorf("authorizeAcknowledge: manager %s outside scope %s: %w", by.ID, rec.Country, domain.ErrUnauthorized)
	}
	return nil
}

// authorizeDecide allows only company-level actors to give the final
// decision. A manager's acknowledgement is advisory and never settles a
// balance on its own.
func authorizeDecide(by *domain.Actor) error {
	if by.Status != domain.ActorStatusActive {
		return fmt.Errorf("authorizeDecide: %w", domain.ErrActorDisabled)
	}
	if by.Role != domain.RoleCompany {
		return fmt.Errorf("authorizeDecide: role %s cannot give final decisions: %w", by.Role, domain.ErrUnauthorized)
	}
	return nil
}
