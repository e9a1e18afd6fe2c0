package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gift-backend/internal/config"
	"gift-backend/internal/models"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
)

// solanaTransactionReader is the subset of *rpc.Client the ledger client needs
type solanaTransactionReader interface {
	GetTransaction(ctx context.Context, sig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
}

// SolanaLedgerClient looks up transaction signatures over Solana JSON-RPC
type SolanaLedgerClient struct {
	rpc        solanaTransactionReader
	commitment rpc.CommitmentType
	timeout    time.Duration
	logger     *logrus.Logger
}

// NewSolanaLedgerClient Create a Solana ledger client from configuration
func NewSolanaLedgerClient(cfg config.LedgerConfig, logger *logrus.Logger) *SolanaLedgerClient {
	logger.WithFields(logrus.Fields{
		"endpoint":   cfg.RPCEndpoint,
		"commitment": cfg.Commitment,
	}).Info("🔧 [Solana] Creating ledger client")
	return newSolanaLedgerClient(rpc.New(cfg.RPCEndpoint), cfg, logger)
}

func newSolanaLedgerClient(reader solanaTransactionReader, cfg config.LedgerConfig, logger *logrus.Logger) *SolanaLedgerClient {
	commitment := rpc.CommitmentConfirmed
	if cfg.Commitment == string(rpc.CommitmentFinalized) {
		commitment = rpc.CommitmentFinalized
	}
	return &SolanaLedgerClient{
		rpc:        reader,
		commitment: commitment,
		timeout:    cfg.LookupTimeout(),
		logger:     logger,
	}
}

func (c *SolanaLedgerClient) Kind() string { return config.LedgerSolana }

// GetTransactionStatus fetches a transaction by signature. A transaction the
// node has not seen at the configured commitment is reported as not existing.
func (c *SolanaLedgerClient) GetTransactionStatus(ctx context.Context, txRef string) (*models.TransactionStatus, error) {
	sig, err := solana.SignatureFromBase58(txRef)
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	maxVersion := uint64(0)
	result, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     c.commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return &models.TransactionStatus{Exists: false}, nil
		}
		return nil, fmt.Errorf("getTransaction failed: %w", err)
	}
	if result == nil {
		return &models.TransactionStatus{Exists: false}, nil
	}

	status := &models.TransactionStatus{
		Exists:    true,
		Confirmed: true,
		Success:   true,
		Slot:      result.Slot,
	}
	if result.Meta != nil && result.Meta.Err != nil {
		status.Success = false
		status.ErrorReason = fmt.Sprintf("%v", result.Meta.Err)
	}

	c.logger.WithFields(logrus.Fields{
		"signature": shortRef(txRef),
		"slot":      status.Slot,
		"success":   status.Success,
	}).Debug("Solana transaction found")
	return status, nil
}

// shortRef truncates a ledger reference for logs
func shortRef(ref string) string {
	if len(ref) <= 16 {
		return ref
	}
	return ref[:16] + "..."
}
