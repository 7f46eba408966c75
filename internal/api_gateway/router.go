package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/settlement-reconciliation/internal/api_gateway/handler"
	"github.com/settlement-reconciliation/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	settlementHandler *handler.SettlementHandler,
	payoutHandler *handler.PayoutHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Settlement operations
		settlements := v1.Group("/settlements")
		{
			settlements.POST("", settlementHandler.Upload)
			settlements.GET("", settlementHandler.List)
			settlements.GET("/:id", settlementHandler.GetByID)
			settlements.POST("/:id/reconcile", settlementHandler.Reconcile)
		}

		// Payout operations
		payouts := v1.Group("/payouts")
		{
			payouts.GET("/pending", payoutHandler.Pending)
			payouts.POST("", payoutHandler.Create)
			payouts.GET("", payoutHandler.List)
			payouts.GET("/:id", payoutHandler.GetByID)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
