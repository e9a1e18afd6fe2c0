package services

import (
	"context"
	"sync"
	"testing"

	"gift-backend/internal/config"
	"gift-backend/internal/errs"
	"gift-backend/internal/repository"

	"github.com/stretchr/testify/require"
)

func newTestVerifier(ledger *fakeLedger, strict bool) (*PaymentVerifier, *repository.MemoryNullifierRepository) {
	nullifiers := repository.NewMemoryNullifierRepository()
	poller, _ := newTestPoller(ledger)
	verifier := NewPaymentVerifier(
		NewProofValidator(config.LedgerSolana, testFamilies),
		poller,
		nullifiers,
		PaymentVerifierConfig{Strict: strict, MaxPollAttempts: 3},
		testLogger(),
	)
	return verifier, nullifiers
}

func TestVerifierAcceptsConfirmedPayment(t *testing.T) {
	verifier, nullifiers := newTestVerifier(&fakeLedger{script: []ledgerAnswer{answerSuccess}}, false)
	proof := exampleProof()

	verdict := verifier.Verify(context.Background(), &proof)
	require.True(t, verdict.Verified, verdict.Reason)
	require.Equal(t, "n1", verdict.Nullifier)

	record, err := nullifiers.GetByNullifier(context.Background(), "n1")
	require.NoError(t, err)
	require.Equal(t, CommitmentHash("c1"), record.CommitmentHash)
}

func TestVerifierRejectsMalformedWithoutLedgerCall(t *testing.T) {
	ledger := &fakeLedger{script: []ledgerAnswer{answerSuccess}}
	verifier, nullifiers := newTestVerifier(ledger, false)
	proof := exampleProof()
	proof.ProofBlob = "unknown_abc"

	verdict := verifier.Verify(context.Background(), &proof)
	require.False(t, verdict.Verified)
	require.Equal(t, errs.CodeUnrecognizedProofFormat, verdict.Code)
	require.Zero(t, ledger.Calls())

	_, err := nullifiers.GetByNullifier(context.Background(), "n1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestVerifierRejectsFailedTransaction(t *testing.T) {
	verifier, nullifiers := newTestVerifier(&fakeLedger{script: []ledgerAnswer{answerFailed}}, false)
	proof := exampleProof()

	verdict := verifier.Verify(context.Background(), &proof)
	require.False(t, verdict.Verified)
	require.Equal(t, errs.CodeLedgerTransactionFailed, verdict.Code)

	// a failed payment never consumes its nullifier
	_, err := nullifiers.GetByNullifier(context.Background(), "n1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestVerifierProofFirstTolerance(t *testing.T) {
	verifier, _ := newTestVerifier(&fakeLedger{script: []ledgerAnswer{answerNotFound}}, false)
	proof := exampleProof()

	verdict := verifier.Verify(context.Background(), &proof)
	require.True(t, verdict.Verified, verdict.Reason)
}

func TestVerifierStrictModeRejectsUnconfirmed(t *testing.T) {
	verifier, _ := newTestVerifier(&fakeLedger{script: []ledgerAnswer{answerNotFound}}, true)
	proof := exampleProof()

	verdict := verifier.Verify(context.Background(), &proof)
	require.False(t, verdict.Verified)
	require.Equal(t, errs.CodeLedgerUnconfirmed, verdict.Code)
}

func TestVerifierRejectsReusedNullifier(t *testing.T) {
	verifier, _ := newTestVerifier(&fakeLedger{script: []ledgerAnswer{answerSuccess}}, false)
	proof := exampleProof()

	require.True(t, verifier.Verify(context.Background(), &proof).Verified)

	again := exampleProof()
	again.Commitment = "c2"
	verdict := verifier.Verify(context.Background(), &again)
	require.False(t, verdict.Verified)
	require.Equal(t, errs.CodeNullifierReused, verdict.Code)
}

func TestVerifierRejectsReusedCommitment(t *testing.T) {
	verifier, _ := newTestVerifier(&fakeLedger{script: []ledgerAnswer{answerSuccess}}, false)
	proof := exampleProof()

	require.True(t, verifier.Verify(context.Background(), &proof).Verified)

	// same commitment, fresh nullifier and transaction
	again := exampleProof()
	again.Nullifier = "n2"
	again.LedgerTxRef = testSignature(2)
	verdict := verifier.Verify(context.Background(), &again)
	require.False(t, verdict.Verified)
	require.Equal(t, errs.CodeNullifierReused, verdict.Code)
}

func TestVerifierDerivesMissingNullifier(t *testing.T) {
	verifier, nullifiers := newTestVerifier(&fakeLedger{script: []ledgerAnswer{answerSuccess}}, false)
	proof := exampleProof()
	proof.Nullifier = ""

	verdict := verifier.Verify(context.Background(), &proof)
	require.True(t, verdict.Verified)
	require.Equal(t, DeriveNullifier("c1", proof.LedgerTxRef), verdict.Nullifier)

	record, err := nullifiers.GetByNullifier(context.Background(), verdict.Nullifier)
	require.NoError(t, err)
	require.True(t, record.Derived)

	verdict = verifier.Verify(context.Background(), &proof)
	require.Equal(t, errs.CodeNullifierReused, verdict.Code)
}

func TestVerifierNullifierUniqueUnderConcurrency(t *testing.T) {
	verifier, _ := newTestVerifier(&fakeLedger{script: []ledgerAnswer{answerSuccess}}, false)

	const workers = 20
	verdicts := make(chan bool, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			proof := exampleProof()
			verdicts <- verifier.Verify(context.Background(), &proof).Verified
		}()
	}
	wg.Wait()
	close(verdicts)

	accepted := 0
	for v := range verdicts {
		if v {
			accepted++
		}
	}
	require.Equal(t, 1, accepted)
}

func TestCommitmentHashIsKeccakHex(t *testing.T) {
	hash := CommitmentHash("c1")
	require.Len(t, hash, 66)
	require.Equal(t, "0x", hash[:2])
	require.Equal(t, hash, CommitmentHash("c1"))
	require.NotEqual(t, hash, CommitmentHash("c2"))
}
