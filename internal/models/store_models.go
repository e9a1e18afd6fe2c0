package models

import (
	"time"
)

// ConsumedNullifier a nullifier that already backed a gift.
// A commitment backs at most one gift, so its hash is unique as well.
type ConsumedNullifier struct {
	Nullifier      string    `json:"nullifier" gorm:"primaryKey;type:varchar(128)"`
	CommitmentHash string    `json:"commitment_hash" gorm:"not null;uniqueIndex;type:varchar(66)"`
	LedgerTxRef    string    `json:"ledger_tx_ref" gorm:"not null;type:varchar(128)"`
	Derived        bool      `json:"derived" gorm:"not null;default:false"` // derived from commitment + tx ref
	ConsumedAt     time.Time `json:"consumed_at" gorm:"not null"`
}

func (ConsumedNullifier) TableName() string {
	return "consumed_nullifiers"
}

// GiftClaim claim registry entry. One row per commitment hash.
type GiftClaim struct {
	CommitmentHash string    `json:"commitment_hash" gorm:"primaryKey;type:varchar(66)"`
	GiftID         string    `json:"gift_id" gorm:"type:varchar(36)"`
	ClaimedAt      time.Time `json:"claimed_at" gorm:"not null"`
}

func (GiftClaim) TableName() string {
	return "gift_claims"
}

// Audit event types
const (
	AuditEventCreated       = "created"
	AuditEventVerified      = "verified"
	AuditEventVerifyFailed  = "verification_failed"
	AuditEventCardIssued    = "card_issued"
	AuditEventIssueFailed   = "issuance_failed"
	AuditEventDelivered     = "delivered"
	AuditEventWaiting       = "waiting_for_delivery"
	AuditEventClaimed       = "claimed"
	AuditEventClaimRejected = "claim_rejected"
)

// GiftAuditEvent append-only lifecycle log entry
type GiftAuditEvent struct {
	ID             string     `json:"id" gorm:"primaryKey;type:varchar(36)"` // UUID
	CommitmentHash string     `json:"commitment_hash" gorm:"not null;index;type:varchar(66)"`
	EventType      string     `json:"event_type" gorm:"not null;type:varchar(32)"`
	Status         GiftStatus `json:"status" gorm:"type:varchar(32)"`
	Code           string     `json:"code,omitempty" gorm:"type:varchar(64)"`
	Detail         string     `json:"detail,omitempty" gorm:"type:text"`
	CreatedAt      time.Time  `json:"created_at" gorm:"index"`
}

func (GiftAuditEvent) TableName() string {
	return "gift_audit_events"
}
