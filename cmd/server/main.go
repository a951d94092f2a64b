package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/collab-code-share/backend/api/handlers"
	"github.com/collab-code-share/backend/internal/db"
	"github.com/collab-code-share/backend/internal/executor"
	"github.com/collab-code-share/backend/internal/repository"
	"github.com/collab-code-share/backend/internal/store"
	"github.com/collab-code-share/backend/internal/ws"
)

func main() {
	// Get configuration from environment
	port := getEnv("PORT", "8080")
	dbPath := getEnv("DB_PATH", "data/runs.db")
	judge0URL := getEnv("JUDGE0_URL", "")
	judge0Key := getEnv("JUDGE0_KEY", "")
	sessionTTL := getDurationEnv("SESSION_TTL", store.DefaultTTL)

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	// Initialize database
	database, err := db.InitDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.CloseDB()

	// Initialize repository
	runRepo := repository.NewRunRepository(database)

	// Initialize session store
	sessions := store.New(sessionTTL)
	defer sessions.Close()

	// Initialize WebSocket relay
	hub := ws.NewHub()
	wsHandler := ws.NewHandler(hub, sessions)
	defer hub.Close()

	// Initialize execution orchestrator
	judge0 := executor.NewJudge0Client(judge0URL, judge0Key)
	orchestrator := executor.New(judge0, wsHandler, runRepo)
	if !judge0.Configured() {
		log.Println("JUDGE0_URL not set, code execution is disabled")
	}

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(sessions, runRepo)
	executeHandler := handlers.NewExecuteHandler(orchestrator)
	collabHandler := handlers.NewCollabHandler(wsHandler)

	// Initialize Gin router
	r := gin.Default()

	// Enable CORS for development
	r.Use(corsMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
			})
		})

		// Session management routes
		sessionHandler.RegisterRoutes(api)

		// Code execution routes
		executeHandler.RegisterRoutes(api)

		// WebSocket routes
		collabHandler.RegisterRoutes(api)
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down server...")
		hub.Close()
		sessions.Close()
		db.CloseDB()
		os.Exit(0)
	}()

	// Start server
	log.Printf("Starting server on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv parses a duration environment variable, falling back
// to the default on absence or parse failure.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid %s value %q, using default %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

// corsMiddleware returns a CORS middleware for development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
