package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"delivery/internal/auth"
	"delivery/internal/handler"
	"delivery/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	OrderHandler    *handler.OrderHandler
	DriverHandler   *handler.DriverHandler
	CustomerHandler *handler.CustomerHandler
	ChatHandler     *handler.ChatHandler
	FareHandler     *handler.FareHandler
	PaymentHandler  *handler.PaymentHandler
	WSHandler       *handler.WSHandler
	Tokens          *auth.TokenService
	RedisClient     *redis.Client
	NewRelicApp     *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
	router.Use(middleware.AuthMiddleware(deps.Tokens))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Realtime hub handshake.
	router.GET("/ws", deps.WSHandler.Handshake)

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Customer routes.
		customers := v1.Group("/customers")
		{
			customers.POST("/register", deps.CustomerHandler.Register)
			customers.GET("/:id/orders", deps.OrderHandler.ListForCustomer)
		}

		// Order routes.
		orders := v1.Group("/orders")
		{
			orders.POST("", deps.OrderHandler.Create)
			orders.GET("/:id", deps.OrderHandler.Get)
			orders.GET("/:id/history", deps.OrderHandler.History)
			orders.GET("/:id/messages", deps.ChatHandler.List)
			orders.POST("/:id/cancel", deps.OrderHandler.Cancel)
			orders.POST("/:id/status", deps.OrderHandler.PushStatus)
			orders.POST("/:id/rating", deps.OrderHandler.Rate)
		}

		// Driver routes.
		drivers := v1.Group("/drivers")
		{
			drivers.POST("/register", deps.DriverHandler.Register)
			drivers.GET("/nearby", deps.DriverHandler.Nearby)
			drivers.POST("/:id/accept", deps.DriverHandler.Accept)
			drivers.POST("/:id/location", deps.DriverHandler.UpdateLocation)
			drivers.POST("/:id/online", deps.DriverHandler.GoOnline)
			drivers.POST("/:id/offline", deps.DriverHandler.GoOffline)
		}

		// Fare routes.
		fares := v1.Group("/fares")
		{
			fares.GET("/estimate", deps.FareHandler.Estimate)
		}

		// Payment routes.
		payments := v1.Group("/payments")
		{
			payments.POST("/confirm", deps.PaymentHandler.Confirm)
		}
	}

	return router
}
