package handlers

import (
	"context"
	"errors"
	"net/http"

	"gift-backend/internal/clients"
	"gift-backend/internal/repository"
	"gift-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CardLookup reads issuer-side card state
type CardLookup interface {
	LookupCard(ctx context.Context, cardID string) (*clients.CardDetails, error)
}

// AdminGiftHandler read-only operator views over the audit log, nullifier store and issuer cards
type AdminGiftHandler struct {
	audit      repository.GiftAuditRepository
	nullifiers repository.NullifierRepository
	cards      CardLookup
	logger     *logrus.Logger
}

// NewAdminGiftHandler create admin gift handler. cards is nil outside live issuer mode.
func NewAdminGiftHandler(audit repository.GiftAuditRepository, nullifiers repository.NullifierRepository, cards CardLookup, logger *logrus.Logger) *AdminGiftHandler {
	return &AdminGiftHandler{
		audit:      audit,
		nullifiers: nullifiers,
		cards:      cards,
		logger:     logger,
	}
}

// ListGiftEventsHandler
// GET /api/admin/gifts/:hash/events
func (h *AdminGiftHandler) ListGiftEventsHandler(c *gin.Context) {
	hash := c.Param("hash")
	events, err := h.audit.ListByCommitmentHash(c.Request.Context(), hash)
	if err != nil {
		h.logger.WithError(err).WithField("commitment_hash", hash).Error("❌ Failed to list audit events")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to list audit events",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"commitment_hash": hash,
		"events":          events,
		"total":           len(events),
	})
}

// GetNullifierHandler
// GET /api/admin/nullifiers/:nullifier
func (h *AdminGiftHandler) GetNullifierHandler(c *gin.Context) {
	record, err := h.nullifiers.GetByNullifier(c.Request.Context(), c.Param("nullifier"))
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success":  false,
			"consumed": false,
			"error":    "Nullifier not consumed",
		})
		return
	case err != nil:
		h.logger.WithError(err).Error("❌ Failed to look up nullifier")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to look up nullifier",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"consumed":  true,
		"nullifier": record,
	})
}

// GetCardHandler
// GET /api/admin/cards/:id
func (h *AdminGiftHandler) GetCardHandler(c *gin.Context) {
	if h.cards == nil {
		c.JSON(http.StatusNotImplemented, gin.H{
			"success": false,
			"error":   "Card lookup requires the live card issuer",
		})
		return
	}

	cardID := c.Param("id")
	details, err := h.cards.LookupCard(c.Request.Context(), cardID)
	if err != nil {
		var statusErr *clients.IssuerStatusError
		switch {
		case errors.Is(err, services.ErrProtocolBackedCard):
			c.JSON(http.StatusNotFound, gin.H{
				"success":         false,
				"protocol_backed": true,
				"error":           "Card is protocol-backed and not held by the issuer",
			})
		case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound:
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   "Card not found at issuer",
			})
		default:
			h.logger.WithError(err).WithField("card_id", cardID).Warn("⚠️ Card lookup failed")
			c.JSON(http.StatusBadGateway, gin.H{
				"success": false,
				"error":   "Card issuer lookup failed",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"card":    details,
	})
}
