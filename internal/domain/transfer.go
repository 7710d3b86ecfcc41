package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferKind describes the shape of a transfer's approval chain.
type TransferKind string

const (
	// KindHierarchical is a driver remittance to a manager: the manager may
	// acknowledge receipt as an intermediate checkpoint, the company gives the
	// final decision.
	KindHierarchical TransferKind = "hierarchical"
	// KindDirect is an upward remittance with no checkpoint (manager to
	// company).
	KindDirect TransferKind = "direct"
	// KindPayout is a downward payout from the company to a driver, agent, or
	// investor.
	KindPayout TransferKind = "payout"
)

type TransferStatus string

const (
	TransferStatusPending         TransferStatus = "pending"
	TransferStatusManagerAccepted TransferStatus = "manager_accepted"
	TransferStatusAccepted        TransferStatus = "accepted"
	TransferStatusApproved        TransferStatus = "approved"
	TransferStatusRejected        TransferStatus = "rejected"
)

// IsTerminal reports whether no further transition is permitted.
func (s TransferStatus) IsTerminal() bool {
	switch s {
	case TransferStatusAccepted, TransferStatusApproved, TransferStatusRejected:
		return true
	}
	return false
}

type TransferMethod string

const (
	MethodHand     TransferMethod = "hand"
	MethodTransfer TransferMethod = "transfer"
)

func (m TransferMethod) IsValid() bool {
	return m == MethodHand || m == MethodTransfer
}

type DecisionOutcome string

const (
	OutcomeAccept DecisionOutcome = "accept"
	OutcomeReject DecisionOutcome = "reject"
)

// TransferRecord is the persisted unit of a money hand-off attempt. Amount is
// always positive; ProofRef is required iff Method is "transfer"; status
// transitions are monotonic and terminal states never re-open.
type TransferRecord struct {
	ID           uuid.UUID
	Kind         TransferKind
	FromActorID  uuid.UUID
	ToActorID    uuid.UUID
	Amount       decimal.Decimal
	Currency     Currency
	Method       TransferMethod
	ProofRef     *string
	Note         *string
	Country      string
	Status       TransferStatus
	RejectReason *string
	SnapshotRef  *uuid.UUID
	CreatedAt    time.Time
	DecidedAt    *time.Time
	DecidedBy    *uuid.UUID
}

// KindForRoles derives the approval chain shape from the sender/receiver role
// pair. Unknown pairings are not transferable.
func KindForRoles(from, to Role) (TransferKind, bool) {
	switch {
	case from == RoleDriver && to == RoleManager:
		return KindHierarchical, true
	case from == RoleManager && to == RoleCompany:
		return KindDirect, true
	case from == RoleCompany && (to == RoleDriver || to == RoleAgent || to == RoleInvestor):
		return KindPayout, true
	}
	return "", false
}

// AcceptedStatus is the terminal state a transfer of the given kind reaches on
// a positive decision. Remittances settle as "accepted", payouts as
// "approved".
func (k TransferKind) AcceptedStatus() TransferStatus {
	if k == KindPayout {
		return TransferStatusApproved
	}
	return TransferStatusAccepted
}

// transitions is the state machine table, keyed by kind. Each entry lists the
// statuses a decide call may move away from.
var decidableFrom = map[TransferKind][]TransferStatus{
	KindHierarchical: {TransferStatusPending, TransferStatusManagerAccepted},
	KindDirect:       {TransferStatusPending},
	KindPayout:       {TransferStatusPending},
}

// DecidableStatuses returns the non-terminal statuses from which a final
// decision is valid for this kind.
func (k TransferKind) DecidableStatuses() []TransferStatus {
	return decidableFrom[k]
}

// HasCheckpoint reports whether the kind carries the intermediate
// manager_accepted checkpoint.
func (k TransferKind) HasCheckpoint() bool {
	return k == KindHierarchical
}
