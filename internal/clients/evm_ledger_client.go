package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gift-backend/internal/config"
	"gift-backend/internal/models"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// receiptReader is the subset of *ethclient.Client the ledger client needs
type receiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// EVMLedgerClient looks up transaction receipts over EVM JSON-RPC
type EVMLedgerClient struct {
	client  receiptReader
	timeout time.Duration
	logger  *logrus.Logger
}

// NewEVMLedgerClient Dial the configured RPC endpoint
func NewEVMLedgerClient(cfg config.LedgerConfig, logger *logrus.Logger) (*EVMLedgerClient, error) {
	client, err := ethclient.Dial(cfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM RPC: %w", err)
	}
	logger.WithField("endpoint", cfg.RPCEndpoint).Info("🔧 [EVM] Ledger client connected")
	return newEVMLedgerClient(client, cfg, logger), nil
}

func newEVMLedgerClient(client receiptReader, cfg config.LedgerConfig, logger *logrus.Logger) *EVMLedgerClient {
	return &EVMLedgerClient{client: client, timeout: cfg.LookupTimeout(), logger: logger}
}

func (c *EVMLedgerClient) Kind() string { return config.LedgerEVM }

// GetTransactionStatus fetches the receipt for a transaction hash. Pending or
// unknown transactions are reported as not existing.
func (c *EVMLedgerClient) GetTransactionStatus(ctx context.Context, txRef string) (*models.TransactionStatus, error) {
	raw, err := hexutil.Decode(txRef)
	if err != nil || len(raw) != common.HashLength {
		return nil, fmt.Errorf("invalid transaction hash %q", shortRef(txRef))
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	receipt, err := c.client.TransactionReceipt(ctx, common.BytesToHash(raw))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return &models.TransactionStatus{Exists: false}, nil
		}
		return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
	}

	status := &models.TransactionStatus{
		Exists:    true,
		Confirmed: true,
		Success:   receipt.Status == types.ReceiptStatusSuccessful,
	}
	if receipt.BlockNumber != nil {
		status.Slot = receipt.BlockNumber.Uint64()
	}
	if !status.Success {
		status.ErrorReason = "transaction reverted"
	}

	c.logger.WithFields(logrus.Fields{
		"tx_hash": shortRef(txRef),
		"block":   status.Slot,
		"success": status.Success,
	}).Debug("EVM transaction receipt found")
	return status, nil
}
