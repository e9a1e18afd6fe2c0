package services

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"gift-backend/internal/config"
	"gift-backend/internal/models"
	"gift-backend/internal/retry"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testSignature(fill byte) string {
	var sig solana.Signature
	for i := range sig {
		sig[i] = fill
	}
	return sig.String()
}

var testFamilies = []config.ProofFamilyConfig{
	{Name: "fam1", ProofPrefix: "fam1_"},
	{Name: "shadowwire-dev", ProofPrefix: "sw_proof_", CommitmentPrefix: "sw_commit_"},
	{Name: "shadowwire", ProofPrefix: "shadow_proof_"},
}

func exampleProof() models.PaymentProof {
	return models.PaymentProof{
		Commitment:  "c1",
		ProofBlob:   "fam1_abc",
		Nullifier:   "n1",
		LedgerTxRef: testSignature(1),
	}
}

// fakeLedger answers lookups from a script, one entry per call; the last entry repeats.
type fakeLedger struct {
	mu     sync.Mutex
	script []ledgerAnswer
	calls  int
}

type ledgerAnswer struct {
	status *models.TransactionStatus
	err    error
}

func (f *fakeLedger) GetTransactionStatus(context.Context, string) (*models.TransactionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	f.calls++
	return f.script[i].status, f.script[i].err
}

func (f *fakeLedger) Kind() string { return config.LedgerSolana }

func (f *fakeLedger) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var (
	answerNotFound = ledgerAnswer{status: &models.TransactionStatus{Exists: false}}
	answerSuccess  = ledgerAnswer{status: &models.TransactionStatus{Exists: true, Confirmed: true, Success: true, Slot: 77}}
	answerFailed   = ledgerAnswer{status: &models.TransactionStatus{Exists: true, Confirmed: true, Success: false, ErrorReason: "custom program error"}}
)

func newTestPoller(ledger *fakeLedger) (*ConfirmationPoller, *retry.FakeClock) {
	clock := retry.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewConfirmationPoller(ledger, retry.NewPolicy(time.Second, 8*time.Second, 0), clock, testLogger()), clock
}

func requireDecimalEqual(t *testing.T, expected, actual decimal.Decimal) {
	t.Helper()
	require.True(t, expected.Equal(actual), "expected %s, got %s", expected, actual)
}

// requireSameRecord compares records field by field, decimals by value
func requireSameRecord(t *testing.T, expected, actual *models.GiftRecord) {
	t.Helper()
	require.Equal(t, expected.ID, actual.ID)
	require.Equal(t, expected.CommitmentHash, actual.CommitmentHash)
	require.Equal(t, expected.Recipient, actual.Recipient)
	require.Equal(t, expected.Message, actual.Message)
	require.Equal(t, expected.Theme, actual.Theme)
	require.Equal(t, expected.TokenSymbol, actual.TokenSymbol)
	requireDecimalEqual(t, expected.TokenAmount, actual.TokenAmount)
	requireDecimalEqual(t, expected.USDEquivalent, actual.USDEquivalent)
	requireTimePtrEqual(t, expected.ScheduledAt, actual.ScheduledAt)
	require.Equal(t, expected.Status, actual.Status)
	require.Equal(t, expected.FailureReason, actual.FailureReason)
	require.True(t, expected.CreatedAt.Equal(actual.CreatedAt))
	requireTimePtrEqual(t, expected.DeliveredAt, actual.DeliveredAt)
	requireTimePtrEqual(t, expected.ClaimedAt, actual.ClaimedAt)

	if expected.Card == nil {
		require.Nil(t, actual.Card)
		return
	}
	require.NotNil(t, actual.Card)
	require.Equal(t, expected.Card.ExternalID, actual.Card.ExternalID)
	require.Equal(t, expected.Card.Number, actual.Card.Number)
	require.Equal(t, expected.Card.CVV, actual.Card.CVV)
	require.Equal(t, expected.Card.MaskedNumber, actual.Card.MaskedNumber)
	require.Equal(t, expected.Card.Expiry, actual.Card.Expiry)
	require.Equal(t, expected.Card.IsProtocolBacked, actual.Card.IsProtocolBacked)
	requireDecimalEqual(t, expected.Card.Balance, actual.Card.Balance)
	requireDecimalEqual(t, expected.Card.Fee, actual.Card.Fee)
	require.True(t, expected.Card.IssuedAt.Equal(actual.Card.IssuedAt))
}

func requireTimePtrEqual(t *testing.T, expected, actual *time.Time) {
	t.Helper()
	if expected == nil {
		require.Nil(t, actual)
		return
	}
	require.NotNil(t, actual)
	require.True(t, expected.Equal(*actual), "expected %s, got %s", expected, actual)
}
