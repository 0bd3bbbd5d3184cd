package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wildflourbakery/backend/order-service/internal/api"
	"github.com/wildflourbakery/backend/order-service/internal/db"
	"github.com/wildflourbakery/backend/order-service/internal/logging"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Single log stream on stdout for the log collector
	log.SetOutput(os.Stdout)

	log.Printf("Order Service starting (GIT_SHA=%s BUILD_TIME=%s)", os.Getenv("GIT_SHA"), os.Getenv("BUILD_TIME"))

	// Initialize database connection (non-fatal to allow liveness health checks)
	database, err := db.NewDatabase()
	if err != nil {
		log.Printf("[WARN] Database initialization failed at startup: %v", err)
	}
	if database != nil {
		defer database.Close()
	}

	handler := api.NewHandler(database)
	router := setupRouter(handler)

	port := os.Getenv("ORDER_PORT")
	if port == "" {
		port = "8082"
	}

	go func() {
		log.Printf("Starting order service on port %s", port)
		if err := router.Run(":" + port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down order service...")
}

func setupRouter(handler *api.Handler) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(logging.RequestID())
	router.Use(logging.JSONLogger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Health and readiness endpoints
	router.GET("/live", func(c *gin.Context) { c.Status(200) })
	router.GET("/ready", handler.Health)
	router.GET("/health", func(c *gin.Context) { c.Status(200) })

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Payment gateway callbacks. Signature verification happens at the
	// gateway edge, so no JWT here.
	router.POST("/webhooks/stripe", handler.HandleCheckoutWebhook)

	// Buyer routes with JWT protection
	apiGroup := router.Group("/api")
	apiGroup.Use(api.AuthMiddleware())
	{
		apiGroup.GET("/cart", handler.GetCart)
		apiGroup.POST("/cart/items", handler.AddToCart)
		apiGroup.PUT("/cart/items/:item_id", handler.UpdateCartItem)
		apiGroup.DELETE("/cart/items/:item_id", handler.RemoveFromCart)

		apiGroup.GET("/orders", handler.GetOrders)
		apiGroup.GET("/orders/:order_id", handler.GetOrder)
	}

	// Admin routes with authentication and admin middleware
	adminGroup := router.Group("/api/admin")
	adminGroup.Use(api.AuthMiddleware())
	adminGroup.Use(api.AdminMiddleware())
	{
		adminGroup.GET("/fulfillment/pending", handler.GetPendingOrders)
		adminGroup.GET("/fulfillment/in-progress", handler.GetInProgressOrders)
		adminGroup.POST("/fulfillment/start", handler.StartOrders)
		adminGroup.PUT("/fulfillment/:order_id/return", handler.ReturnOrderToPending)
		adminGroup.PUT("/fulfillment/:order_id/complete", handler.CompleteOrder)

		adminGroup.PUT("/portions/:portion_id/stock", handler.SetPortionStock)
	}

	// Root endpoint for basic info
	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service": "order-service",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	return router
}

// corsMiddleware adds CORS headers to allow cross-origin requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
