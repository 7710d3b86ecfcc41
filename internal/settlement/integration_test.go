package settlement_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasel-app/settlement-engine/internal/domain"
	"github.com/wasel-app/settlement-engine/internal/ledger"
	"github.com/wasel-app/settlement-engine/internal/repository"
	"github.com/wasel-app/settlement-engine/internal/settlement"
	"github.com/wasel-app/settlement-engine/internal/testutil"
)

type stubRenderer struct {
	mu    sync.Mutex
	fail  bool
	calls int
}

func (s *stubRenderer) Render(_ context.Context, snap *domain.SettlementSnapshot) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return "", errors.New("document generator unavailable")
	}
	return "receipts/" + snap.ID.String() + ".pdf", nil
}

func (s *stubRenderer) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func setupEngine(t *testing.T, db *sql.DB, docs *stubRenderer) (*settlement.Service, *ledger.Service) {
	t.Helper()

	actorRepo := repository.NewActorRepository(db)
	factRepo := repository.NewOrderFactRepository(db)
	transferRepo := repository.NewTransferRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	eventRepo := repository.NewSettlementEventRepository(db)

	balances := ledger.NewService(factRepo, transferRepo, actorRepo, db)
	svc := settlement.NewService(transferRepo, actorRepo, snapshotRepo, eventRepo, balances, docs, db)
	return svc, balances
}

func pendingBalance(t *testing.T, balances *ledger.Service, actorID uuid.UUID, country string) decimal.Decimal {
	t.Helper()
	b, err := balances.ComputeBalance(context.Background(), actorID, ledger.Scope{
		Country:     country,
		SettledMode: ledger.SettledAllTime,
	})
	require.NoError(t, err)
	return b.PendingBalance
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestDriverRemittance_FullChain(t *testing.T) {
	db := testutil.SetupTestDB(t)
	docs := &stubRenderer{}
	svc, balances := setupEngine(t, db, docs)
	ctx := context.Background()

	company := testutil.SeedCompany(t, db, domain.CurrencySAR)
	driver := testutil.SeedActor(t, db, "Driver One", domain.RoleDriver, "SA", domain.CurrencySAR)
	manager := testutil.SeedActor(t, db, "Manager One", domain.RoleManager, "SA", domain.CurrencySAR)

	now := time.Now().UTC()
	testutil.SeedOrderFact(t, db, driver.ID, "SA", domain.OrderOutcomeDelivered, "200", domain.CurrencySAR, now.Add(-2*time.Hour))
	testutil.SeedOrderFact(t, db, driver.ID, "SA", domain.OrderOutcomeDelivered, "300", domain.CurrencySAR, now.Add(-1*time.Hour))
	testutil.SeedOrderFact(t, db, driver.ID, "SA", domain.OrderOutcomeCancelled, "0", domain.CurrencySAR, now.Add(-1*time.Hour))

	assertDecimal(t, "500", pendingBalance(t, balances, driver.ID, "SA"))

	rec, err := svc.Submit(ctx, settlement.SubmitRequest{
		SubmittedBy: driver.ID,
		FromActorID: driver.ID,
		ToActorID:   manager.ID,
		Amount:      decimal.NewFromInt(500),
		Method:      domain.MethodHand,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusPending, rec.Status)
	assert.Equal(t, domain.KindHierarchical, rec.Kind)
	assert.Equal(t, "SA", rec.Country)
	assert.Equal(t, 1, testutil.CountEvents(t, db, rec.ID, domain.EventTransferCreated))

	// A pending transfer does not settle anything yet.
	assertDecimal(t, "500", pendingBalance(t, balances, driver.ID, "SA"))

	acked, err := svc.Acknowledge(ctx, rec.ID, manager.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusManagerAccepted, acked.Status)
	assert.Equal(t, 1, testutil.CountEvents(t, db, rec.ID, domain.EventTransferAcknowledged))

	// The checkpoint is advisory: the balance is still unsettled.
	assertDecimal(t, "500", pendingBalance(t, balances, driver.ID, "SA"))

	decided, err := svc.Decide(ctx, rec.ID, company.ID, domain.OutcomeAccept, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusAccepted, decided.Status)
	require.NotNil(t, decided.SnapshotRef)
	require.NotNil(t, decided.DecidedAt)
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, company.ID, *decided.DecidedBy)

	assertDecimal(t, "0", pendingBalance(t, balances, driver.ID, "SA"))
	assert.Equal(t, 1, testutil.CountSnapshots(t, db, rec.ID))
	assert.Equal(t, 1, testutil.CountEvents(t, db, rec.ID, domain.EventTransferAccepted))

	snap, err := svc.GetSnapshot(ctx, *decided.SnapshotRef, company.ID)
	require.NoError(t, err)
	assertDecimal(t, "500", snap.CollectedSum)
	assertDecimal(t, "500", snap.SettledSum)
	assertDecimal(t, "0", snap.PendingBalance)
	assert.Equal(t, 2, snap.DeliveredCount)
	assert.Equal(t, 1, snap.CancelledCount)
	require.NotNil(t, snap.DocumentRef)
	assert.Contains(t, *snap.DocumentRef, snap.ID.String())

	// Fully settled: even one more riyal is over-remittance.
	_, err = svc.Submit(ctx, settlement.SubmitRequest{
		SubmittedBy: driver.ID,
		FromActorID: driver.ID,
		ToActorID:   manager.ID,
		Amount:      decimal.NewFromInt(1),
		Method:      domain.MethodHand,
	})
	require.ErrorIs(t, err, domain.ErrExceedsBalance)
}

func TestSubmit_FailuresLeaveNoRecord(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := setupEngine(t, db, &stubRenderer{})
	ctx := context.Background()

	testutil.SeedCompany(t, db, domain.CurrencySAR)
	driver := testutil.SeedActor(t, db, "Driver", domain.RoleDriver, "SA", domain.CurrencySAR)
	manager := testutil.SeedActor(t, db, "Manager", domain.RoleManager, "SA", domain.CurrencySAR)
	otherDriver := testutil.SeedActor(t, db, "Other Driver", domain.RoleDriver, "SA", domain.CurrencySAR)
	aedManager := testutil.SeedActor(t, db, "AE Manager", domain.RoleManager, "AE", domain.CurrencyAED)

	testutil.SeedOrderFact(t, db, driver.ID, "SA", domain.OrderOutcomeDelivered, "100", domain.CurrencySAR, time.Now().UTC())

	tests := []struct {
		name    string
		req     settlement.SubmitRequest
		wantErr error
	}{
		{
			name: "bank transfer without proof",
			req: settlement.SubmitRequest{
				SubmittedBy: driver.ID, FromActorID: driver.ID, ToActorID: manager.ID,
				Amount: decimal.NewFromInt(50), Method: domain.MethodTransfer,
			},
			wantErr: domain.ErrMissingProof,
		},
		{
			name: "amount exceeds collected cash",
			req: settlement.SubmitRequest{
				SubmittedBy: driver.ID, FromActorID: driver.ID, ToActorID: manager.ID,
				Amount: decimal.NewFromInt(101), Method: domain.MethodHand,
			},
			wantErr: domain.ErrExceedsBalance,
		},
		{
			name: "driver to driver is not a transfer chain",
			req: settlement.SubmitRequest{
				SubmittedBy: driver.ID, FromActorID: driver.ID, ToActorID: otherDriver.ID,
				Amount: decimal.NewFromInt(50), Method: domain.MethodHand,
			},
			wantErr: domain.ErrInvalidTransfer,
		},
		{
			name: "receiver settles in another currency",
			req: settlement.SubmitRequest{
				SubmittedBy: driver.ID, FromActorID: driver.ID, ToActorID: aedManager.ID,
				Amount: decimal.NewFromInt(50), Method: domain.MethodHand,
			},
			wantErr: domain.ErrCurrencyMismatch,
		},
		{
			name: "caller is not the sender",
			req: settlement.SubmitRequest{
				SubmittedBy: otherDriver.ID, FromActorID: driver.ID, ToActorID: manager.ID,
				Amount: decimal.NewFromInt(50), Method: domain.MethodHand,
			},
			wantErr: domain.ErrUnauthorized,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, tc.req)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM transfer_records`).Scan(&count))
	assert.Equal(t, 0, count, "failed submits must not persist records")
}

func TestSubmit_DisabledReceiver(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := setupEngine(t, db, &stubRenderer{})
	ctx := context.Background()

	driver := testutil.SeedActor(t, db, "Driver", domain.RoleDriver, "SA", domain.CurrencySAR)
	manager := testutil.SeedActor(t, db, "Manager", domain.RoleManager, "SA", domain.CurrencySAR)
	testutil.SeedOrderFact(t, db, driver.ID, "SA", domain.OrderOutcomeDelivered, "100", domain.CurrencySAR, time.Now().UTC())
	testutil.DisableActor(t, db, manager.ID)

	_, err := svc.Submit(ctx, settlement.SubmitRequest{
		SubmittedBy: driver.ID,
		FromActorID: driver.ID,
		ToActorID:   manager.ID,
		Amount:      decimal.NewFromInt(50),
		Method:      domain.MethodHand,
	})
	require.ErrorIs(t, err, domain.ErrActorDisabled)
}

func TestReject_LeavesBalanceUntouched(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, balances := setupEngine(t, db, &stubRenderer{})
	ctx := context.Background()

	company := testutil.SeedCompany(t, db, domain.CurrencySAR)
	driver := testutil.SeedActor(t, db, "Driver", domain.RoleDriver, "SA", domain.CurrencySAR)
	manager := testutil.SeedActor(t, db, "Manager", domain.RoleManager, "SA", domain.CurrencySAR)
	testutil.SeedOrderFact(t, db, driver.ID, "SA", domain.OrderOutcomeDelivered, "400", domain.CurrencySAR, time.Now().UTC())

	rec, err := svc.Submit(ctx, settlement.SubmitRequest{
		SubmittedBy: driver.ID,
		FromActorID: driver.ID,
		ToActorID:   manager.ID,
		Amount:      decimal.NewFromInt(400),
		Method:      domain.MethodTransfer,
		ProofRef:    strref("bank-slip-77"),
	})
	require.NoError(t, err)

	_, err = svc.Acknowledge(ctx, rec.ID, manager.ID)
	require.NoError(t, err)

	reason := "proof does not match the deposit slip"
	decided, err := svc.Decide(ctx, rec.ID, company.ID, domain.OutcomeReject, &reason)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusRejected, decided.Status)
	require.NotNil(t, decided.RejectReason)
	assert.Equal(t, reason, *decided.RejectReason)
	assert.Nil(t, decided.SnapshotRef)

	assert.Equal(t, 0, testutil.CountSnapshots(t, db, rec.ID))
	assert.Equal(t, 1, testutil.CountEvents(t, db, rec.ID, domain.EventTransferRejected))
	assertDecimal(t, "400", pendingBalance(t, balances, driver.ID, "SA"))

	// Rejected is terminal: the same transfer cannot be accepted later.
	_, err = svc.Decide(ctx, rec.ID, company.ID, domain.OutcomeAccept, nil)
	require.ErrorIs(t, err, domain.ErrAlreadyDecided)
}

func TestDecide_IdempotentOnTerminal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := setupEngine(t, db, &stubRenderer{})
	ctx := context.Background()

	company := testutil.SeedCompany(t, db, domain.CurrencySAR)
	driver := testutil.SeedActor(t, db, "Driver", domain.RoleDriver, "SA", domain.CurrencySAR)
	manager := testutil.SeedActor(t, db, "Manager", domain.RoleManager, "SA", domain.CurrencySAR)
	testutil.SeedOrderFact(t, db, driver.ID, "SA", domain.OrderOutcomeDelivered, "300", domain.CurrencySAR, time.Now().UTC())

	rec, err := svc.Submit(ctx, settlement.SubmitRequest{
		SubmittedBy: driver.ID,
		FromActorID: driver.ID,
		ToActorID:   manager.ID,
		Amount:      decimal.NewFromInt(300),
		Method:      domain.MethodHand,
	})
	require.NoError(t, err)

	first, err := svc.Decide(ctx, rec.ID, company.ID, domain.OutcomeAccept, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusAccepted, first.Status)

	// Repeating the same decision is a no-op success, without new effects.
	second, err := svc.Decide(ctx, rec.ID, company.ID, domain.OutcomeAccept, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusAccepted, second.Status)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, 1, testutil.CountSnapshots(t, db, rec.ID))
	assert.Equal(t, 1, testutil.CountEvents(t, db, rec.ID, domain.EventTransferAccepted))

	// The conflicting decision is not.
	_, err = svc.Decide(ctx, rec.ID, company.ID, domain.OutcomeReject, nil)
	require.ErrorIs(t, err, domain.ErrAlreadyDecided)
}

func TestDecide_ConcurrentAccepts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := setupEngine(t, db, &stubRenderer{})
	ctx := context.Background()

	company := testutil.SeedCompany(t, db, domain.CurrencySAR)
	driver := testutil.SeedActor(t, db, "Driver", domain.RoleDriver, "SA", domain.CurrencySAR)
	manager := testutil.SeedActor(t, db, "Manager", domain.RoleManager, "SA", domain.CurrencySAR)
	testutil.SeedOrderFact(t, db, driver.ID, "SA", domain.OrderOutcomeDelivered, "300", domain.CurrencySAR, time.Now().UTC())

	rec, err := svc.Submit(ctx, settlement.SubmitRequest{
		SubmittedBy: driver.ID,
		FromActorID: driver.ID,
		ToActorID:   manager.ID,
		Amount:      decimal.NewFromInt(300),
		Method:      domain.MethodHand,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Decide(ctx, rec.ID, company.ID, domain.OutcomeAccept, nil)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	for err := range results {
		assert.NoError(t, err, "both concurrent accepts should resolve to the same outcome")
	}

	assert.Equal(t, domain.TransferStatusAccepted, testutil.GetTransferStatus(t, db, rec.ID))
	assert.Equal(t, 1, testutil.CountSnapshots(t, db, rec.ID), "exactly one snapshot despite the race")
	assert.Equal(t, 1, testutil.CountEvents(t, db, rec.ID, domain.EventTransferAccepted))
}

func TestDecide_ConcurrentAcceptsDistinctTransfers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, balances := setupEngine(t, db, &stubRenderer{})
	ctx := context.Background()

	company := testutil.SeedCompany(t, db, domain.CurrencySAR)
	driver := testutil.SeedActor(t, db, "Driver", domain.RoleDriver, "SA", domain.CurrencySAR)
	manager := testutil.SeedActor(t, db, "Manager", domain.RoleManager, "SA", domain.CurrencySAR)
	testutil.SeedOrderFact(t, db, driver.ID, "SA", domain.OrderOutcomeDelivered, "500", domain.CurrencySAR, time.Now().UTC())

	// Two pending transfers from the same driver that together overcommit the
	// collected 500.
	submit := func() *domain.TransferRecord {
		rec, err := svc.Submit(ctx, settlement.SubmitRequest{
			SubmittedBy: driver.ID,
			FromActorID: driver.ID,
			ToActorID:   manager.ID,
			Amount:      decimal.NewFromInt(300),
			Method:      domain.MethodHand,
		})
		require.NoError(t, err)
		return rec
	}
	first := submit()
	second := submit()

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for _, id := range []uuid.UUID{first.ID, second.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Decide(ctx, id, company.ID, domain.OutcomeAccept, nil)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	// The sender row lock serializes the two decides: whichever runs second
	// sees the first one settled and fails the re-check.
	var settled, blocked int
	for err := range results {
		if err == nil {
			settled++
			continue
		}
		require.ErrorIs(t, err, domain.ErrExceedsBalance)
		blocked++
	}
	assert.Equal(t, 1, settled)
	assert.Equal(t, 1, blocked)

	assert.ElementsMatch(t,
		[]domain.TransferStatus{domain.TransferStatusAccepted, domain.TransferStatusPending},
		[]domain.TransferStatus{
			testutil.GetTransferStatus(t, db, first.ID),
			testutil.GetTransferStatus(t, db, second.ID),
		},
	)
	assertDecimal(t, "200", pendingBalance(t, balances, driver.ID, "SA"))
}

func TestDecide_RecheckCatchesOvercommit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := setupEngine(t, db, &stubRenderer{})
	ctx := context.Background()

	company := testutil.SeedCompany(t, db, domain.CurrencySAR)
	driver := testutil.SeedActor(t, db, "Driver", domain.RoleDriver, "SA", domain.CurrencySAR)
	manager := testutil.SeedActor(t, db, "Manager", domain.RoleManager, "SA", domain.CurrencySAR)
	testutil.SeedOrderFact(t, db, driver.ID, "SA", domain.OrderOutcomeDelivered, "500", domain.CurrencySAR, time.Now().UTC())

	// Two submits against the same balance: each alone fits, together they
	// overcommit. Both pass the submit-time check because neither is settled.
	submit := func() *domain.TransferRecord {
		rec, err := svc.Submit(ctx, settlement.SubmitRequest{
			SubmittedBy: driver.ID,
			FromActorID: driver.ID,
			ToActorID:   manager.ID,
			Amount:      decimal.NewFromInt(300),
			Method:      domain.MethodHand,
		})
		require.NoError(t, err)
		return rec
	}
	first := submit()
	second := submit()

	_, err := svc.Decide(ctx, first.ID, company.ID, domain.OutcomeAccept, nil)
	require.NoError(t, err)

	// Only 200 remains; accepting the second 300 would settle money that was
	// never collected.
	_, err = svc.Decide(ctx, second.ID, company.ID, domain.OutcomeAccept, nil)
	require.ErrorIs(t, err, domain.ErrExceedsBalance)
	assert.Equal(t, domain.TransferStatusPending, testutil.GetTransferStatus(t, db, second.ID))

	// An explicit reject still closes it out.
	_, err = svc.Decide(ctx, second.ID, company.ID, domain.OutcomeReject, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusRejected, testutil.GetTransferStatus(t, db, second.ID))
}

func TestDecide_ManagerCannotSettle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := setupEngine(t, db, &stubRenderer{})
	ctx := context.Background()

	testutil.SeedCompany(t, db, domain.CurrencySAR)
	driver := testutil.SeedActor(t, db, "Driver", domain.RoleDriver, "SA", domain.CurrencySAR)
	manager := testutil.SeedActor(t, db, "Manager", domain.RoleManager, "SA", domain.CurrencySAR)
	testutil.SeedOrderFact(t, db, driver.ID, "SA", domain.OrderOutcomeDelivered, "100", domain.CurrencySAR, time.Now().UTC())

	rec, err := svc.Submit(ctx, settlement.SubmitRequest{
		SubmittedBy: driver.ID,
		FromActorID: driver.ID,
		ToActorID:   manager.ID,
		Amount:      decimal.NewFromInt(100),
		Method:      domain.MethodHand,
	})
	require.NoError(t, err)

	_, err = svc.Decide(ctx, rec.ID, manager.ID, domain.OutcomeAccept, nil)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, domain.TransferStatusPending, testutil.GetTransferStatus(t, db, rec.ID))
}

func TestUpwardChainAndPayout(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, balances := setupEngine(t, db, &stubRenderer{})
	ctx := context.Background()

	company := testutil.SeedCompany(t, db, domain.CurrencySAR)
	driver := testutil.SeedActor(t, db, "Driver", domain.RoleDriver, "SA", domain.CurrencySAR)
	manager := testutil.SeedActor(t, db, "Manager", domain.RoleManager, "SA", domain.CurrencySAR)
	investor := testutil.SeedActor(t, db, "Investor", domain.RoleInvestor, "", domain.CurrencySAR)
	testutil.SeedOrderFact(t, db, driver.ID, "SA", domain.OrderOutcomeDelivered, "500", domain.CurrencySAR, time.Now().UTC())

	// Driver hands 500 to the manager; company accepts.
	up, err := svc.Submit(ctx, settlement.SubmitRequest{
		SubmittedBy: driver.ID,
		FromActorID: driver.ID,
		ToActorID:   manager.ID,
		Amount:      decimal.NewFromInt(500),
		Method:      domain.MethodHand,
	})
	require.NoError(t, err)
	_, err = svc.Decide(ctx, up.ID, company.ID, domain.OutcomeAccept, nil)
	require.NoError(t, err)

	// The manager now custodies 500 and forwards it to the company.
	assertDecimal(t, "500", pendingBalance(t, balances, manager.ID, "SA"))

	fwd, err := svc.Submit(ctx, settlement.SubmitRequest{
		SubmittedBy: manager.ID,
		FromActorID: manager.ID,
		ToActorID:   company.ID,
		Amount:      decimal.NewFromInt(500),
		Method:      domain.MethodTransfer,
		ProofRef:    strref("deposit-001"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.KindDirect, fwd.Kind)

	// Direct transfers have no manager checkpoint.
	_, err = svc.Acknowledge(ctx, fwd.ID, manager.ID)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	decided, err := svc.Decide(ctx, fwd.ID, company.ID, domain.OutcomeAccept, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusAccepted, decided.Status)
	assertDecimal(t, "0", pendingBalance(t, balances, manager.ID, "SA"))

	// The company treasury holds 500 and pays 300 out to the investor.
	treasury, err := balances.TreasuryBalance(ctx, nil, company.ID)
	require.NoError(t, err)
	assertDecimal(t, "500", treasury.PendingBalance)

	payout, err := svc.Submit(ctx, settlement.SubmitRequest{
		SubmittedBy: company.ID,
		FromActorID: company.ID,
		ToActorID:   investor.ID,
		Amount:      decimal.NewFromInt(300),
		Method:      domain.MethodTransfer,
		ProofRef:    strref("payout-001"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.KindPayout, payout.Kind)

	approved, err := svc.Decide(ctx, payout.ID, company.ID, domain.OutcomeAccept, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusApproved, approved.Status)
	require.NotNil(t, approved.SnapshotRef)

	treasury, err = balances.TreasuryBalance(ctx, nil, company.ID)
	require.NoError(t, err)
	assertDecimal(t, "200", treasury.PendingBalance)

	// Payout capacity is capped by the treasury.
	_, err = svc.Submit(ctx, settlement.SubmitRequest{
		SubmittedBy: company.ID,
		FromActorID: company.ID,
		ToActorID:   investor.ID,
		Amount:      decimal.NewFromInt(300),
		Method:      domain.MethodTransfer,
		ProofRef:    strref("payout-002"),
	})
	require.ErrorIs(t, err, domain.ErrExceedsBalance)
}

func TestAcknowledge_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := setupEngine(t, db, &stubRenderer{})
	ctx := context.Background()

	testutil.SeedCompany(t, db, domain.CurrencySAR)
	driver := testutil.SeedActor(t, db, "Driver", domain.RoleDriver, "SA", domain.CurrencySAR)
	manager := testutil.SeedActor(t, db, "Manager", domain.RoleManager, "SA", domain.CurrencySAR)
	testutil.SeedOrderFact(t, db, driver.ID, "SA", domain.OrderOutcomeDelivered, "100", domain.CurrencySAR, time.Now().UTC())

	rec, err := svc.Submit(ctx, settlement.SubmitRequest{
		SubmittedBy: driver.ID,
		FromActorID: driver.ID,
		ToActorID:   manager.ID,
		Amount:      decimal.NewFromInt(100),
		Method:      domain.MethodHand,
	})
	require.NoError(t, err)

	_, err = svc.Acknowledge(ctx, rec.ID, manager.ID)
	require.NoError(t, err)

	again, err := svc.Acknowledge(ctx, rec.ID, manager.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusManagerAccepted, again.Status)
	assert.Equal(t, 1, testutil.CountEvents(t, db, rec.ID, domain.EventTransferAcknowledged))
}

func TestRenderFailure_DeferredThenBackfilled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	docs := &stubRenderer{fail: true}
	svc, _ := setupEngine(t, db, docs)
	ctx := context.Background()

	company := testutil.SeedCompany(t, db, domain.CurrencySAR)
	driver := testutil.SeedActor(t, db, "Driver", domain.RoleDriver, "SA", domain.CurrencySAR)
	manager := testutil.SeedActor(t, db, "Manager", domain.RoleManager, "SA", domain.CurrencySAR)
	testutil.SeedOrderFact(t, db, driver.ID, "SA", domain.OrderOutcomeDelivered, "100", domain.CurrencySAR, time.Now().UTC())

	rec, err := svc.Submit(ctx, settlement.SubmitRequest{
		SubmittedBy: driver.ID,
		FromActorID: driver.ID,
		ToActorID:   manager.ID,
		Amount:      decimal.NewFromInt(100),
		Method:      domain.MethodHand,
	})
	require.NoError(t, err)

	// A failed render must not block settlement.
	decided, err := svc.Decide(ctx, rec.ID, company.ID, domain.OutcomeAccept, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusAccepted, decided.Status)
	require.NotNil(t, decided.SnapshotRef)

	snap, err := svc.GetSnapshot(ctx, *decided.SnapshotRef, company.ID)
	require.NoError(t, err)
	assert.Nil(t, snap.DocumentRef)

	// Once the generator recovers, an explicit retry backfills the document.
	docs.setFail(false)
	snap, err = svc.RenderSnapshot(ctx, *decided.SnapshotRef, company.ID)
	require.NoError(t, err)
	require.NotNil(t, snap.DocumentRef)
	assert.Contains(t, *snap.DocumentRef, snap.ID.String())

	// Rendering an already-rendered snapshot does not call the generator again.
	before := docs.calls
	_, err = svc.RenderSnapshot(ctx, *decided.SnapshotRef, company.ID)
	require.NoError(t, err)
	assert.Equal(t, before, docs.calls)
}

func TestSnapshotAndBalanceVisibility(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, balances := setupEngine(t, db, &stubRenderer{})
	ctx := context.Background()

	company := testutil.SeedCompany(t, db, domain.CurrencySAR)
	driver := testutil.SeedActor(t, db, "Driver", domain.RoleDriver, "SA", domain.CurrencySAR)
	manager := testutil.SeedActor(t, db, "Manager", domain.RoleManager, "SA", domain.CurrencySAR)
	outsider := testutil.SeedActor(t, db, "Other Driver", domain.RoleDriver, "SA", domain.CurrencySAR)
	testutil.SeedOrderFact(t, db, driver.ID, "SA", domain.OrderOutcomeDelivered, "100", domain.CurrencySAR, time.Now().UTC())

	rec, err := svc.Submit(ctx, settlement.SubmitRequest{
		SubmittedBy: driver.ID,
		FromActorID: driver.ID,
		ToActorID:   manager.ID,
		Amount:      decimal.NewFromInt(100),
		Method:      domain.MethodHand,
	})
	require.NoError(t, err)
	decided, err := svc.Decide(ctx, rec.ID, company.ID, domain.OutcomeAccept, nil)
	require.NoError(t, err)
	require.NotNil(t, decided.SnapshotRef)

	// Sender, receiver, and company see the snapshot.
	for _, caller := range []uuid.UUID{driver.ID, manager.ID, company.ID} {
		_, err := svc.GetSnapshot(ctx, *decided.SnapshotRef, caller)
		require.NoError(t, err)
	}

	// An uninvolved actor does not, and cannot use the render path instead.
	_, err = svc.GetSnapshot(ctx, *decided.SnapshotRef, outsider.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.RenderSnapshot(ctx, *decided.SnapshotRef, outsider.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// Balances: self and company only.
	scope := ledger.Scope{Country: "SA", SettledMode: ledger.SettledAllTime}
	_, err = balances.BalanceForCaller(ctx, driver.ID, driver.ID, scope)
	require.NoError(t, err)
	_, err = balances.BalanceForCaller(ctx, company.ID, driver.ID, scope)
	require.NoError(t, err)
	_, err = balances.BalanceForCaller(ctx, outsider.ID, driver.ID, scope)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func strref(s string) *string { return &s }
