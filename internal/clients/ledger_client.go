package clients

import (
	"fmt"

	"gift-backend/internal/config"
	"gift-backend/internal/interfaces"

	"github.com/sirupsen/logrus"
)

// NewLedgerClient builds the ledger client selected by ledger.kind
func NewLedgerClient(cfg config.LedgerConfig, logger *logrus.Logger) (interfaces.LedgerClient, error) {
	switch cfg.Kind {
	case config.LedgerSolana:
		return NewSolanaLedgerClient(cfg, logger), nil
	case config.LedgerEVM:
		client, err := NewEVMLedgerClient(cfg, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported ledger kind %q", cfg.Kind)
	}
}
