package settlement

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/wasel-app/settlement-engine/internal/domain"
	"github.com/wasel-app/settlement-engine/internal/ledger"
)

func strptr(s string) *string { return &s }

func activeActor(role domain.Role, country string) *domain.Actor {
	return &domain.Actor{
		ID:       uuid.New(),
		Name:     "Test " + string(role),
		Role:     role,
		Country:  country,
		Currency: domain.CurrencySAR,
		Status:   domain.ActorStatusActive,
	}
}

func TestValidateSubmit(t *testing.T) {
	tests := []struct {
		name    string
		req     SubmitRequest
		wantErr error
	}{
		{
			name: "valid hand transfer",
			req:  SubmitRequest{Amount: decimal.NewFromInt(100), Method: domain.MethodHand},
		},
		{
			name: "valid bank transfer with proof",
			req:  SubmitRequest{Amount: decimal.NewFromInt(100), Method: domain.MethodTransfer, ProofRef: strptr("rcpt-001")},
		},
		{
			name:    "amount zero",
			req:     SubmitRequest{Amount: decimal.Zero, Method: domain.MethodHand},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "amount negative",
			req:     SubmitRequest{Amount: decimal.NewFromInt(-50), Method: domain.MethodHand},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "unknown method",
			req:     SubmitRequest{Amount: decimal.NewFromInt(100), Method: domain.TransferMethod("wire")},
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name:    "bank transfer without proof",
			req:     SubmitRequest{Amount: decimal.NewFromInt(100), Method: domain.MethodTransfer},
			wantErr: domain.ErrMissingProof,
		},
		{
			name:    "bank transfer with empty proof",
			req:     SubmitRequest{Amount: decimal.NewFromInt(100), Method: domain.MethodTransfer, ProofRef: strptr("")},
			wantErr: domain.ErrMissingProof,
		},
		{
			name: "hand transfer needs no proof",
			req:  SubmitRequest{Amount: decimal.NewFromInt(100), Method: domain.MethodHand, ProofRef: nil},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validateSubmit(tc.req)

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAuthorizeSubmit(t *testing.T) {
	driver := activeActor(domain.RoleDriver, "SA")

	tests := []struct {
		name    string
		caller  *domain.Actor
		fromID  uuid.UUID
		country string
		wantErr error
	}{
		{
			name:    "sender submits in own country",
			caller:  driver,
			fromID:  driver.ID,
			country: "SA",
		},
		{
			name:    "caller is not the sender",
			caller:  driver,
			fromID:  uuid.New(),
			country: "SA",
			wantErr: domain.ErrUnauthorized,
		},
		{
			name: "disabled sender",
			caller: func() *domain.Actor {
				a := activeActor(domain.RoleDriver, "SA")
				a.Status = domain.ActorStatusDisabled
				return a
			}(),
			country: "SA",
			wantErr: domain.ErrActorDisabled,
		},
		{
			name:    "driver outside own country scope",
			caller:  driver,
			fromID:  driver.ID,
			country: "AE",
			wantErr: domain.ErrUnauthorized,
		},
		{
			name:    "company is not country scoped",
			caller:  activeActor(domain.RoleCompany, ""),
			country: "SA",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fromID := tc.fromID
			if fromID == uuid.Nil {
				fromID = tc.caller.ID
			}
			err := authorizeSubmit(tc.caller, fromID, tc.country)

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAuthorizeAcknowledge(t *testing.T) {
	manager := activeActor(domain.RoleManager, "SA")

	hierarchical := &domain.TransferRecord{
		ID:        uuid.New(),
		Kind:      domain.KindHierarchical,
		ToActorID: manager.ID,
		Country:   "SA",
		Status:    domain.TransferStatusPending,
	}

	t.Run("receiving manager may acknowledge", func(t *testing.T) {
		require.NoError(t, authorizeAcknowledge(manager, hierarchical))
	})

	t.Run("direct transfers have no checkpoint", func(t *testing.T) {
		direct := &domain.TransferRecord{Kind: domain.KindDirect, ToActorID: manager.ID, Country: "SA"}
		require.ErrorIs(t, authorizeAcknowledge(manager, direct), domain.ErrUnauthorized)
	})

	t.Run("other manager cannot acknowledge", func(t *testing.T) {
		other := activeActor(domain.RoleManager, "SA")
		require.ErrorIs(t, authorizeAcknowledge(other, hierarchical), domain.ErrUnauthorized)
	})

	t.Run("manager outside country scope", func(t *testing.T) {
		out := activeActor(domain.RoleManager, "AE")
		rec := &domain.TransferRecord{Kind: domain.KindHierarchical, ToActorID: out.ID, Country: "SA"}
		require.ErrorIs(t, authorizeAcknowledge(out, rec), domain.ErrUnauthorized)
	})

	t.Run("disabled manager", func(t *testing.T) {
		disabled := activeActor(domain.RoleManager, "SA")
		disabled.Status = domain.ActorStatusDisabled
		rec := &domain.TransferRecord{Kind: domain.KindHierarchical, ToActorID: disabled.ID, Country: "SA"}
		require.ErrorIs(t, authorizeAcknowledge(disabled, rec), domain.ErrActorDisabled)
	})
}

func TestAuthorizeDecide(t *testing.T) {
	t.Run("company decides", func(t *testing.T) {
		require.NoError(t, authorizeDecide(activeActor(domain.RoleCompany, "")))
	})

	t.Run("manager cannot give final decision", func(t *testing.T) {
		require.ErrorIs(t, authorizeDecide(activeActor(domain.RoleManager, "SA")), domain.ErrUnauthorized)
	})

	t.Run("driver cannot give final decision", func(t *testing.T) {
		require.ErrorIs(t, authorizeDecide(activeActor(domain.RoleDriver, "SA")), domain.ErrUnauthorized)
	})

	t.Run("disabled company actor", func(t *testing.T) {
		disabled := activeActor(domain.RoleCompany, "")
		disabled.Status = domain.ActorStatusDisabled
		require.ErrorIs(t, authorizeDecide(disabled), domain.ErrActorDisabled)
	})
}

func TestExceedsBalance(t *testing.T) {
	bal := &ledger.Balance{PendingBalance: decimal.NewFromInt(200)}
	require.False(t, exceedsBalance(decimal.NewFromInt(200), bal))
	require.False(t, exceedsBalance(decimal.NewFromInt(199), bal))
	require.True(t, exceedsBalance(decimal.NewFromInt(201), bal))
}
