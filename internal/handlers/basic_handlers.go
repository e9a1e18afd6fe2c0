package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HealthCheckHandler
// GET /api/health
func HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "gift-backend",
		"api":     "healthy",
	})
}

// IssuerHealthChecker anything that can report card issuer reachability
type IssuerHealthChecker interface {
	Health(ctx context.Context) error
}

// IssuerHealthHandler
// GET /api/health/issuer
func IssuerHealthHandler(issuer IssuerHealthChecker, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := issuer.Health(ctx); err != nil {
			logger.WithError(err).Warn("⚠️ Card issuer health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"issuer": "unreachable",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"issuer": "healthy",
		})
	}
}
