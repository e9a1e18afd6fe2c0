package router

import (
	"gift-backend/internal/handlers"
	"gift-backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupGiftRoutes gift API routes
func SetupGiftRoutes(r *gin.Engine, deps Dependencies, localhostOnly *middleware.LocalhostOnly, adminAuth *middleware.AdminAuthMiddleware) {
	api := r.Group("/api")
	{
		// ============ Health ============
		api.GET("/health", handlers.HealthCheckHandler)
		api.GET("/health/issuer", handlers.IssuerHealthHandler(deps.IssuerHealth, deps.Logger))

		// ============ Gifts ============
		gifts := api.Group("/gifts")
		{
			gifts.POST("", deps.Gifts.CreateGiftHandler)
			gifts.GET("/:token", deps.Gifts.GetGiftHandler)
			gifts.POST("/:token/claim", deps.Gifts.ClaimGiftHandler)
		}

		// dry run, no ledger lookup and no nullifier consumed
		api.POST("/proofs/validate", deps.Gifts.ValidateProofHandler)

		// ============ Admin (IP allowlist) ============
		admin := api.Group("/admin")
		admin.Use(localhostOnly.Restrict())
		{
			admin.POST("/login", deps.AdminAuth.AdminLoginHandler)
			admin.POST("/totp/generate", deps.AdminAuth.GenerateTOTPSecretHandler)

			// ============ Admin (IP allowlist + JWT) ============
			secured := admin.Group("")
			secured.Use(adminAuth.RequireAdminAuth())
			{
				secured.GET("/gifts/:hash/events", deps.AdminGifts.ListGiftEventsHandler)
				secured.GET("/nullifiers/:nullifier", deps.AdminGifts.GetNullifierHandler)
				secured.GET("/cards/:id", deps.AdminGifts.GetCardHandler)
			}
		}
	}
}
