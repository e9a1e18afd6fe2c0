package models

import (
	"fmt"
	"strings"
	"time"

	"gift-backend/internal/errs"

	"github.com/shopspring/decimal"
)

// GiftStatus lifecycle status of a gift
type GiftStatus string

const (
	GiftStatusCreated            GiftStatus = "CREATED"              // submission accepted, nothing verified yet
	GiftStatusFunded             GiftStatus = "FUNDED"               // payment proof verified
	GiftStatusCardIssued         GiftStatus = "CARD_ISSUED"          // card record attached
	GiftStatusDelivered          GiftStatus = "DELIVERED"            // claimable now
	GiftStatusWaitingForDelivery GiftStatus = "WAITING_FOR_DELIVERY" // claimable once scheduled time passes
	GiftStatusClaimed            GiftStatus = "CLAIMED"              // terminal
	GiftStatusFailed             GiftStatus = "FAILED"               // terminal, never re-enterable
)

var giftTransitions = map[GiftStatus][]GiftStatus{
	GiftStatusCreated:            {GiftStatusFunded, GiftStatusFailed},
	GiftStatusFunded:             {GiftStatusCardIssued, GiftStatusFailed},
	GiftStatusCardIssued:         {GiftStatusDelivered, GiftStatusWaitingForDelivery},
	GiftStatusWaitingForDelivery: {GiftStatusDelivered, GiftStatusClaimed},
	GiftStatusDelivered:          {GiftStatusClaimed},
}

// Valid reports whether s is a known status.
func (s GiftStatus) Valid() bool {
	switch s {
	case GiftStatusCreated, GiftStatusFunded, GiftStatusCardIssued, GiftStatusDelivered,
		GiftStatusWaitingForDelivery, GiftStatusClaimed, GiftStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s GiftStatus) Terminal() bool {
	return s == GiftStatusClaimed || s == GiftStatusFailed
}

// CanTransitionTo reports whether s -> next is an edge of the lifecycle.
func (s GiftStatus) CanTransitionTo(next GiftStatus) bool {
	for _, allowed := range giftTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentProof claim of a confidential transfer. Immutable once submitted.
type PaymentProof struct {
	Commitment                 string `json:"commitment"`
	ProofBlob                  string `json:"proof"`
	Nullifier                  string `json:"nullifier"`
	LedgerTxRef                string `json:"tx_signature"`
	ReportedSlot               uint64 `json:"slot,omitempty"`                // advisory only
	ReportedConfirmationStatus string `json:"confirmation_status,omitempty"` // advisory only
}

// VerificationVerdict outcome of verifying one PaymentProof submission
type VerificationVerdict struct {
	Verified bool      `json:"verified"`
	Code     errs.Code `json:"code,omitempty"`
	Reason   string    `json:"reason"`
	// Nullifier is the nullifier that was consumed, possibly derived.
	Nullifier string `json:"-"`
}

// CardRecord issued card. Number and CVV only travel inside the record.
type CardRecord struct {
	ExternalID       string          `json:"external_id"`
	Number           string          `json:"number,omitempty"`
	CVV              string          `json:"cvv,omitempty"`
	MaskedNumber     string          `json:"masked_number"`
	LastFour         string          `json:"last_four"`
	Expiry           string          `json:"expiry"`
	Balance          decimal.Decimal `json:"balance"`
	Fee              decimal.Decimal `json:"fee"`
	Currency         string          `json:"currency"`
	IsProtocolBacked bool            `json:"is_protocol_backed"`
	IssuedAt         time.Time       `json:"issued_at"`
}

// MaskCardNumber renders a card number as "**** **** **** 1234".
func MaskCardNumber(number string) string {
	digits := strings.ReplaceAll(number, " ", "")
	if len(digits) < 4 {
		return "****"
	}
	return "**** **** **** " + digits[len(digits)-4:]
}

// LastFourDigits returns the trailing four digits of a card number.
func LastFourDigits(number string) string {
	digits := strings.ReplaceAll(number, " ", "")
	if len(digits) < 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

// GiftRecord the aggregate transported inside a claim token.
// All timestamps are UTC.
type GiftRecord struct {
	ID             string          `json:"id"`
	CommitmentHash string          `json:"commitment_hash"`
	Recipient      string          `json:"recipient"`
	Message        string          `json:"message,omitempty"`
	Theme          string          `json:"theme,omitempty"`
	TokenSymbol    string          `json:"token_symbol"`
	TokenAmount    decimal.Decimal `json:"token_amount"`
	USDEquivalent  decimal.Decimal `json:"usd_equivalent"`
	ScheduledAt    *time.Time      `json:"scheduled_at,omitempty"`
	Status         GiftStatus      `json:"status"`
	Card           *CardRecord     `json:"card,omitempty"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	ClaimedAt      *time.Time      `json:"claimed_at,omitempty"`
}

// TransitionTo moves the record along one lifecycle edge.
func (g *GiftRecord) TransitionTo(next GiftStatus) error {
	if !g.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", errs.ErrInvalidTransition, g.Status, next)
	}
	g.Status = next
	return nil
}

// Fail marks a record FAILED with a user-safe reason.
func (g *GiftRecord) Fail(reason string) error {
	if err := g.TransitionTo(GiftStatusFailed); err != nil {
		return err
	}
	g.FailureReason = reason
	return nil
}

// DeliveryStatus is the status a CARD_ISSUED record moves to at time now.
func (g *GiftRecord) DeliveryStatus(now time.Time) GiftStatus {
	if g.ScheduledAt != nil && now.Before(*g.ScheduledAt) {
		return GiftStatusWaitingForDelivery
	}
	return GiftStatusDelivered
}

// EffectiveStatus is the status as observed at time now. A waiting record
// whose scheduled time has passed reads as DELIVERED without being rewritten.
func (g *GiftRecord) EffectiveStatus(now time.Time) GiftStatus {
	if g.Status == GiftStatusWaitingForDelivery && g.DeliveryStatus(now) == GiftStatusDelivered {
		return GiftStatusDelivered
	}
	return g.Status
}

// Clone returns a deep copy.
func (g *GiftRecord) Clone() *GiftRecord {
	c := *g
	if g.ScheduledAt != nil {
		t := *g.ScheduledAt
		c.ScheduledAt = &t
	}
	if g.DeliveredAt != nil {
		t := *g.DeliveredAt
		c.DeliveredAt = &t
	}
	if g.ClaimedAt != nil {
		t := *g.ClaimedAt
		c.ClaimedAt = &t
	}
	if g.Card != nil {
		card := *g.Card
		c.Card = &card
	}
	return &c
}

// Masked returns a copy safe for read views: card number and CVV removed.
func (g *GiftRecord) Masked() *GiftRecord {
	c := g.Clone()
	if c.Card != nil {
		c.Card.Number = ""
		c.Card.CVV = ""
	}
	return c
}
