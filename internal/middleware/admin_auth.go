package middleware

import (
	"net/http"
	"strings"

	"gift-backend/internal/handlers"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AdminAuthMiddleware admin bearer token check
type AdminAuthMiddleware struct {
	jwtSecret []byte
	logger    *logrus.Logger
}

// NewAdminAuthMiddleware create admin auth middleware
func NewAdminAuthMiddleware(jwtSecret string, logger *logrus.Logger) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
	}
}

func (a *AdminAuthMiddleware) reject(c *gin.Context, status int, message, code, reason string) {
	a.logger.WithFields(logrus.Fields{
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	}).Warn("Admin auth failed - " + reason)

	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

// RequireAdminAuth requires a valid admin JWT
func (a *AdminAuthMiddleware) RequireAdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			a.reject(c, http.StatusUnauthorized, "Authentication required", "MISSING_AUTH_HEADER", "missing Authorization header")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			a.reject(c, http.StatusUnauthorized, "Invalid authorization format, need Bearer token", "INVALID_AUTH_FORMAT", "invalid Authorization format")
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if tokenString == "" {
			a.reject(c, http.StatusUnauthorized, "Empty token", "EMPTY_TOKEN", "empty token")
			return
		}

		claims, err := handlers.ValidateAdminJWTToken(a.jwtSecret, tokenString)
		if err != nil {
			a.reject(c, http.StatusUnauthorized, "Invalid or expired token", "INVALID_TOKEN", "invalid token")
			return
		}

		if claims.Role != "admin" {
			a.reject(c, http.StatusForbidden, "Insufficient permissions", "INSUFFICIENT_PERMISSIONS", "insufficient permissions")
			return
		}

		c.Set("admin_username", claims.Username)
		c.Set("admin_role", claims.Role)

		c.Next()
	}
}
