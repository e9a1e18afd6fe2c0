package router

import (
	"net/http"
	"strconv"
	"strings"

	"gift-backend/internal/config"
	"gift-backend/internal/handlers"
	"gift-backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Dependencies everything the routes need, built by the service container
type Dependencies struct {
	Config       *config.Config
	Logger       *logrus.Logger
	Gifts        *handlers.GiftHandler
	AdminAuth    *handlers.AdminAuthHandler
	AdminGifts   *handlers.AdminGiftHandler
	WebSocket    *handlers.WebSocketHandler
	IssuerHealth handlers.IssuerHealthChecker
}

// corsMiddleware CORS middleware
// No configured origins means allow all (*).
func corsMiddleware(cfg config.CORSConfig, logger *logrus.Logger) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	allowCredentials := cfg.AllowCredentials
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
		allowCredentials = false
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 3600
	}
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"

	originAllowed := func(origin string) bool {
		for _, allowed := range allowedOrigins {
			if strings.TrimSpace(allowed) == origin {
				return true
			}
		}
		return false
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && originAllowed(origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		case origin != "":
			logger.WithFields(logrus.Fields{
				"request_origin": origin,
				"path":           c.Request.URL.Path,
				"method":         c.Request.Method,
				"remote_addr":    c.ClientIP(),
			}).Warn("🚫 CORS: Request blocked - Origin not in whitelist")
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, Accept")
		if allowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Type")
		c.Next()
	}
}

// SetupRouter build the gin engine with every route registered
func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestMetrics())
	r.Use(corsMiddleware(deps.Config.CORS, deps.Logger))

	if len(deps.Config.Admin.AllowedIPs) > 0 {
		deps.Logger.WithFields(logrus.Fields{
			"allowed_ips": deps.Config.Admin.AllowedIPs,
			"count":       len(deps.Config.Admin.AllowedIPs),
		}).Info("Admin API IP whitelist configured")
	} else {
		deps.Logger.Info("No admin.allowedIPs configured, using localhost-only mode")
	}
	localhostOnly := middleware.NewLocalhostOnly(deps.Logger, deps.Config.Admin.AllowedIPs)
	adminAuth := middleware.NewAdminAuthMiddleware(deps.Config.Admin.JWTSecret, deps.Logger)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/health", handlers.HealthCheckHandler)

	// ============ Prometheus Metrics ============
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============ WebSocket ============
	r.GET("/ws/gifts", deps.WebSocket.HandleGiftStream)
	r.GET("/ws/status", deps.WebSocket.GetConnectionStatus)

	SetupGiftRoutes(r, deps, localhostOnly, adminAuth)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Endpoint not found",
			"path":    c.Request.URL.Path,
		})
	})

	return r
}
