package dto

import (
	"time"

	"gift-backend/internal/models"

	"github.com/shopspring/decimal"
)

// ==================== Gift DTOs ====================

// CreateGiftRequest request body for POST /api/gifts
type CreateGiftRequest struct {
	Proof         models.PaymentProof `json:"proof" binding:"required"`
	Recipient     string              `json:"recipient" binding:"required"`
	Message       string              `json:"message"`
	Theme         string              `json:"theme"`
	TokenSymbol   string              `json:"token_symbol" binding:"required"`
	TokenAmount   decimal.Decimal     `json:"token_amount"`
	USDEquivalent decimal.Decimal     `json:"usd_equivalent"`
	ScheduledAt   *time.Time          `json:"scheduled_at,omitempty"` // RFC3339, delivery is gated until then
}

// CreateGiftResponse response for POST /api/gifts
type CreateGiftResponse struct {
	Success        bool              `json:"success"`
	ClaimToken     string            `json:"claim_token"`
	Status         models.GiftStatus `json:"status"`
	CommitmentHash string            `json:"commitment_hash"`
	ClaimURL       string            `json:"claim_url,omitempty"`
}

// GiftViewResponse response for GET /api/gifts/:token. Card is always masked.
type GiftViewResponse struct {
	Success bool               `json:"success"`
	Gift    *models.GiftRecord `json:"gift"`
}

// ClaimGiftResponse response for POST /api/gifts/:token/claim. Card carries full details.
type ClaimGiftResponse struct {
	Success        bool               `json:"success"`
	ClaimToken     string             `json:"claim_token"`
	AlreadyClaimed bool               `json:"already_claimed"`
	Gift           *models.GiftRecord `json:"gift"`
}

// ValidateProofResponse response for POST /api/proofs/validate
type ValidateProofResponse struct {
	Success bool   `json:"success"`
	Valid   bool   `json:"valid"`
	Family  string `json:"family,omitempty"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason"`
}

// ErrorResponse unified failure body
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Phase   string `json:"phase,omitempty"`
}
