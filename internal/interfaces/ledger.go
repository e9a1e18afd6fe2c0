package interfaces

import (
	"context"

	"gift-backend/internal/models"
)

// LedgerClient looks up a transaction on the ledger.
// A transaction the ledger has not indexed yet is reported as Exists=false, not as an error.
type LedgerClient interface {
	GetTransactionStatus(ctx context.Context, txRef string) (*models.TransactionStatus, error)
	// Kind names the ledger for logs and metrics.
	Kind() string
}

// LifecycleEvent a gift state change published to side outputs
type LifecycleEvent struct {
	EventID        string            `json:"event_id"`
	CommitmentHash string            `json:"commitment_hash"`
	Status         models.GiftStatus `json:"status"`
	Recipient      string            `json:"recipient,omitempty"`
	ClaimURL       string            `json:"claim_url,omitempty"`
	ScheduledAt    string            `json:"scheduled_at,omitempty"`
	Code           string            `json:"code,omitempty"`
	Timestamp      int64             `json:"timestamp"`
}

// EventPublisher delivers lifecycle events to a message broker.
type EventPublisher interface {
	PublishLifecycleEvent(ctx context.Context, event *LifecycleEvent) error
	Close()
}
