package services

import (
	"context"
	"errors"
	"fmt"

	"gift-backend/internal/interfaces"
	"gift-backend/internal/metrics"
	"gift-backend/internal/models"
	"gift-backend/internal/retry"

	"github.com/sirupsen/logrus"
)

// ErrLedgerNotFound the ledger never reported the transaction within the attempt budget
var ErrLedgerNotFound = errors.New("transaction not found on ledger")

// ConfirmationPoller polls the ledger until a transaction is found or attempts run out
type ConfirmationPoller struct {
	ledger interfaces.LedgerClient
	policy *retry.Policy
	clock  retry.Clock
	logger *logrus.Logger
}

// NewConfirmationPoller Create a poller
func NewConfirmationPoller(ledger interfaces.LedgerClient, policy *retry.Policy, clock retry.Clock, logger *logrus.Logger) *ConfirmationPoller {
	if clock == nil {
		clock = retry.SystemClock()
	}
	return &ConfirmationPoller{ledger: ledger, policy: policy, clock: clock, logger: logger}
}

// Poll performs up to maxAttempts lookups. Lookup errors and "not yet indexed"
// both consume an attempt; a found transaction returns immediately whether it
// succeeded or failed on-chain.
func (p *ConfirmationPoller) Poll(ctx context.Context, txRef string, maxAttempts int) (*models.Confirmation, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := retry.Wait(ctx, p.clock, p.policy.Delay(attempt-1)); err != nil {
				metrics.LedgerPollAttempts.Observe(float64(attempt))
				return nil, err
			}
		}

		status, err := p.ledger.GetTransactionStatus(ctx, txRef)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				metrics.LedgerPollAttempts.Observe(float64(attempt + 1))
				return nil, ctxErr
			}
			lastErr = err
			metrics.LedgerLookupErrors.WithLabelValues(p.ledger.Kind()).Inc()
			p.logger.WithFields(logrus.Fields{
				"tx_ref":  shortRef(txRef),
				"attempt": attempt + 1,
				"error":   err.Error(),
			}).Warn("⚠️ Ledger lookup failed, will retry")
			continue
		}

		if status.Exists {
			metrics.LedgerPollAttempts.Observe(float64(attempt + 1))
			return &models.Confirmation{
				TxRef:       txRef,
				Slot:        status.Slot,
				Confirmed:   status.Confirmed,
				Failed:      !status.Success,
				ErrorReason: status.ErrorReason,
				Attempts:    attempt + 1,
			}, nil
		}

		p.logger.WithFields(logrus.Fields{
			"tx_ref":  shortRef(txRef),
			"attempt": attempt + 1,
		}).Debug("Transaction not indexed yet")
	}

	metrics.LedgerPollAttempts.Observe(float64(maxAttempts))
	if lastErr != nil {
		return nil, fmt.Errorf("%w after %d attempts (last error: %v)", ErrLedgerNotFound, maxAttempts, lastErr)
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrLedgerNotFound, maxAttempts)
}

// shortRef truncates proof material for logs
func shortRef(ref string) string {
	if len(ref) <= 16 {
		return ref
	}
	return ref[:16] + "..."
}
