package handlers

import (
	"context"
	"net/http"
	"strings"

	"gift-backend/internal/dto"
	"gift-backend/internal/models"
	"gift-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// GiftPipeline operations behind the gift endpoints
type GiftPipeline interface {
	CreateGift(ctx context.Context, req services.CreateGiftRequest) (*services.CreateGiftResult, error)
	Read(ctx context.Context, token string) (*models.GiftRecord, error)
	Claim(ctx context.Context, token string) (*services.ClaimResult, error)
}

// ProofChecker offline proof format check
type ProofChecker interface {
	Validate(proof *models.PaymentProof) services.ValidationResult
}

// GiftHandler gift issuance and claim endpoints
type GiftHandler struct {
	pipeline     GiftPipeline
	checker      ProofChecker
	claimBaseURL string
	logger       *logrus.Logger
}

// NewGiftHandler create gift handler
func NewGiftHandler(pipeline GiftPipeline, checker ProofChecker, claimBaseURL string, logger *logrus.Logger) *GiftHandler {
	return &GiftHandler{
		pipeline:     pipeline,
		checker:      checker,
		claimBaseURL: strings.TrimRight(claimBaseURL, "/"),
		logger:       logger,
	}
}

// CreateGiftHandler POST /api/gifts
func (h *GiftHandler) CreateGiftHandler(c *gin.Context) {
	var req dto.CreateGiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.pipeline.CreateGift(c.Request.Context(), services.CreateGiftRequest{
		Proof:         req.Proof,
		Recipient:     req.Recipient,
		Message:       req.Message,
		Theme:         req.Theme,
		TokenSymbol:   req.TokenSymbol,
		TokenAmount:   req.TokenAmount,
		USDEquivalent: req.USDEquivalent,
		ScheduledAt:   req.ScheduledAt,
	})
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"commitment": truncate(req.Proof.Commitment),
			"error":      err.Error(),
		}).Warn("❌ Gift creation failed")
		respondWithPipelineError(c, err)
		return
	}

	resp := dto.CreateGiftResponse{
		Success:        true,
		ClaimToken:     result.ClaimToken,
		Status:         result.Status,
		CommitmentHash: result.Gift.CommitmentHash,
	}
	if h.claimBaseURL != "" {
		resp.ClaimURL = h.claimBaseURL + "/claim/" + result.ClaimToken
	}
	c.JSON(http.StatusCreated, resp)
}

// GetGiftHandler GET /api/gifts/:token
func (h *GiftHandler) GetGiftHandler(c *gin.Context) {
	gift, err := h.pipeline.Read(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondWithPipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.GiftViewResponse{Success: true, Gift: gift})
}

// ClaimGiftHandler POST /api/gifts/:token/claim
func (h *GiftHandler) ClaimGiftHandler(c *gin.Context) {
	result, err := h.pipeline.Claim(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondWithPipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ClaimGiftResponse{
		Success:        true,
		ClaimToken:     result.ClaimToken,
		AlreadyClaimed: result.AlreadyClaimed,
		Gift:           result.Gift,
	})
}

// ValidateProofHandler POST /api/proofs/validate
// Format check only: no ledger lookup and no nullifier is consumed.
func (h *GiftHandler) ValidateProofHandler(c *gin.Context) {
	var proof models.PaymentProof
	if err := c.ShouldBindJSON(&proof); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result := h.checker.Validate(&proof)
	c.JSON(http.StatusOK, dto.ValidateProofResponse{
		Success: true,
		Valid:   result.OK,
		Family:  result.Family,
		Code:    string(result.Code),
		Reason:  result.Reason,
	})
}

func truncate(s string) string {
	if len(s) <= 16 {
		return s
	}
	return s[:16] + "..."
}
