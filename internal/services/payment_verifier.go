package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gift-backend/internal/errs"
	"gift-backend/internal/metrics"
	"gift-backend/internal/models"
	"gift-backend/internal/repository"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// PaymentVerifierConfig verification policy
type PaymentVerifierConfig struct {
	// Strict turns "not found after retries" into a terminal failure.
	Strict          bool
	MaxPollAttempts int
}

// PaymentVerifier proof-first payment verification with nullifier uniqueness
type PaymentVerifier struct {
	validator  *ProofValidator
	poller     *ConfirmationPoller
	nullifiers repository.NullifierRepository
	cfg        PaymentVerifierConfig
	now        func() time.Time
	logger     *logrus.Logger
}

// NewPaymentVerifier Create a payment verifier
func NewPaymentVerifier(
	validator *ProofValidator,
	poller *ConfirmationPoller,
	nullifiers repository.NullifierRepository,
	cfg PaymentVerifierConfig,
	logger *logrus.Logger,
) *PaymentVerifier {
	return &PaymentVerifier{
		validator:  validator,
		poller:     poller,
		nullifiers: nullifiers,
		cfg:        cfg,
		now:        time.Now,
		logger:     logger,
	}
}

// CommitmentHash keccak256 of the commitment string, 0x-hex
func CommitmentHash(commitment string) string {
	return hexutil.Encode(crypto.Keccak256([]byte(commitment)))
}

// DeriveNullifier stands in for a missing nullifier so one payment still backs one gift
func DeriveNullifier(commitment, ledgerTxRef string) string {
	return hexutil.Encode(crypto.Keccak256([]byte(commitment), []byte(ledgerTxRef)))
}

// Verify runs format validation, best-effort ledger confirmation and the
// nullifier check-and-record. The nullifier is only consumed on success.
func (v *PaymentVerifier) Verify(ctx context.Context, proof *models.PaymentProof) models.VerificationVerdict {
	verdict := v.verify(ctx, proof)
	metrics.VerificationVerdicts.WithLabelValues(strconv.FormatBool(verdict.Verified), string(verdict.Code)).Inc()
	return verdict
}

func (v *PaymentVerifier) verify(ctx context.Context, proof *models.PaymentProof) models.VerificationVerdict {
	if result := v.validator.Validate(proof); !result.OK {
		return rejected(result.Code, result.Reason)
	}

	fields := logrus.Fields{
		"commitment":            shortRef(proof.Commitment),
		"tx_ref":                shortRef(proof.LedgerTxRef),
		"reported_slot":         proof.ReportedSlot,
		"reported_confirmation": proof.ReportedConfirmationStatus,
	}

	confirmation, err := v.poller.Poll(ctx, proof.LedgerTxRef, v.cfg.MaxPollAttempts)
	switch {
	case err == nil && confirmation.Failed:
		v.logger.WithFields(fields).WithField("ledger_error", confirmation.ErrorReason).
			Warn("❌ Payment transaction failed on-chain")
		return rejected(errs.CodeLedgerTransactionFailed, "payment transaction failed on the ledger")
	case err == nil:
		v.logger.WithFields(fields).WithField("slot", confirmation.Slot).Info("✅ Payment transaction confirmed")
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return rejected(errs.CodeLedgerUnconfirmed, "verification cancelled before confirmation")
	default:
		if v.cfg.Strict {
			v.logger.WithFields(fields).WithError(err).Warn("❌ Payment transaction unconfirmed (strict mode)")
			return rejected(errs.CodeLedgerUnconfirmed, "payment transaction not found on the ledger")
		}
		// proof-first: an unconfirmed transaction does not block a well-formed proof
		v.logger.WithFields(fields).WithError(err).WithField("code", errs.CodeLedgerUnconfirmed).
			Warn("⚠️ Payment transaction unconfirmed, accepting on proof")
	}

	if ctx.Err() != nil {
		return rejected(errs.CodeLedgerUnconfirmed, "verification cancelled before recording")
	}

	nullifier := proof.Nullifier
	derived := false
	if nullifier == "" {
		nullifier = DeriveNullifier(proof.Commitment, proof.LedgerTxRef)
		derived = true
	}

	err = v.nullifiers.Consume(ctx, &models.ConsumedNullifier{
		Nullifier:      nullifier,
		CommitmentHash: CommitmentHash(proof.Commitment),
		LedgerTxRef:    proof.LedgerTxRef,
		Derived:        derived,
		ConsumedAt:     v.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, errs.ErrNullifierReused) {
			metrics.NullifierCollisions.Inc()
			v.logger.WithFields(fields).Warn("❌ Nullifier already consumed")
			return rejected(errs.CodeNullifierReused, "payment has already been used")
		}
		v.logger.WithFields(fields).WithError(err).Error("❌ Failed to record nullifier")
		return rejected(errs.CodeInternal, "could not record payment")
	}

	return models.VerificationVerdict{Verified: true, Reason: "payment verified", Nullifier: nullifier}
}

func rejected(code errs.Code, reason string) models.VerificationVerdict {
	return models.VerificationVerdict{Verified: false, Code: code, Reason: reason}
}
