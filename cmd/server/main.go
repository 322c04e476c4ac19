package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/bookxchange/bookxchange/internal/api"
	"github.com/bookxchange/bookxchange/internal/auth"
	"github.com/bookxchange/bookxchange/internal/chat"
	"github.com/bookxchange/bookxchange/internal/database"
	internalWs "github.com/bookxchange/bookxchange/internal/websocket"
)

// corsConfig builds the CORS policy from the comma-separated
// ALLOWED_ORIGINS value. An empty value allows every origin so a
// fresh checkout starts without configuration.
func corsConfig(allowedOrigins string) cors.Config {
	config := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if allowedOrigins == "" {
		config.AllowAllOrigins = true
		return config
	}

	config.AllowOrigins = strings.Split(allowedOrigins, ",")
	return config
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Set Gin mode based on environment
	if os.Getenv("ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize JWT key from environment variable
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
	auth.InitJWTKey([]byte(jwtSecret))

	// Determine store type from environment (default to in-memory)
	dbTypeStr := os.Getenv("DB_TYPE")
	if dbTypeStr == "" {
		dbTypeStr = string(database.Memory)
	}
	dbType := database.DatabaseType(dbTypeStr)

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" && dbType == database.PostgreSQL {
		// Fall back to individual connection parameters
		dbHost := os.Getenv("DB_HOST")
		dbPort := os.Getenv("DB_PORT")
		dbName := os.Getenv("DB_NAME")
		dbUser := os.Getenv("DB_USER")
		dbPass := os.Getenv("DB_PASSWORD")

		if dbHost == "" || dbName == "" || dbUser == "" {
			log.Fatal("Database connection details missing. Set DATABASE_URL or individual DB_* variables")
		}

		dbURL = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			dbUser, dbPass, dbHost, dbPort, dbName,
		)
	}

	db, err := database.NewDatabase(dbType, dbURL)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", dbType, err)
	}
	defer db.Close()
	log.Printf("Using %s store", dbType)

	// Live delivery channel
	wsManager := internalWs.NewManager()
	go wsManager.Run()

	// Messaging core, with the delivery channel injected
	chatService := chat.NewService(db, wsManager)

	// API handlers
	authHandler := api.NewAuthHandler(db)
	listingHandler := api.NewListingHandler(db)
	messageHandler := api.NewMessageHandler(chatService)

	// Initialize router with default middleware (logger and recovery)
	router := gin.Default()

	// Configure CORS using environment variable
	router.Use(cors.New(corsConfig(os.Getenv("ALLOWED_ORIGINS"))))

	// Public routes
	router.POST("/api/auth/register", authHandler.Register)
	router.POST("/api/auth/login", authHandler.Login)
	router.GET("/api/listings", listingHandler.GetListings)
	router.GET("/api/listings/:id", listingHandler.GetListing)

	// WebSocket endpoint. Connections identify in-protocol, so the
	// upgrade itself needs no token.
	router.GET("/ws", wsManager.HandleWebSocket)

	// Protected routes (authentication required)
	authorized := router.Group("/api")
	authorized.Use(api.AuthMiddleware())
	{
		authorized.GET("/auth/me", authHandler.GetMe)

		// Listing routes
		authorized.POST("/listings", listingHandler.CreateListing)
		authorized.PATCH("/listings/:id", listingHandler.UpdateListing)
		authorized.DELETE("/listings/:id", listingHandler.DeleteListing)

		// Message routes
		authorized.POST("/messages", messageHandler.SendMessage)
		authorized.GET("/conversations", messageHandler.GetConversations)
		authorized.GET("/conversations/:id/messages", messageHandler.GetConversationMessages)
		authorized.PATCH("/messages/:id/read", messageHandler.MarkMessageAsRead)
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Get server port from environment variable or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give the server 5 seconds to finish processing remaining requests
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited properly")
}
