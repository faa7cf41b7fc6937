package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/mossy-p/roomrelay/config"
	"github.com/mossy-p/roomrelay/internal/handlers"
	"github.com/mossy-p/roomrelay/internal/history"
	"github.com/mossy-p/roomrelay/internal/middleware"
	"github.com/mossy-p/roomrelay/internal/redis"
	"github.com/mossy-p/roomrelay/internal/registry"
	"github.com/mossy-p/roomrelay/internal/rooms"
)

func main() {
	cfg := config.Load()

	// Optional Redis presence mirror
	var mirror rooms.Mirror
	if cfg.Redis.Addr != "" {
		m, err := redis.Connect(cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer m.Close()
		mirror = m
		log.Println("Redis presence mirror enabled")
	}

	if err := os.MkdirAll(cfg.Upload.Dir, 0o755); err != nil {
		log.Fatalf("Failed to create upload dir: %v", err)
	}

	coord := rooms.NewCoordinator(registry.New(), history.New(cfg.HistoryLimit), mirror)
	verifier := middleware.NewJWTVerifier(cfg.JWTSecret)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Global CORS middleware (runs before routing)
	router.Use(handlers.OriginFilter(cfg.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api")
	{
		// Login endpoint (public)
		apiGroup.POST("/auth/login", handlers.Login(cfg.JWTSecret))

		// File upload (requires JWT); errors surface to the uploader only
		apiGroup.POST("/upload", middleware.JWTAuth(verifier), handlers.Upload(cfg.Upload.Dir, cfg.Upload.MaxBytes))

		// Room snapshot (public)
		apiGroup.GET("/rooms/:room", handlers.GetRoom(coord))
	}

	// Uploaded blobs
	router.Static("/uploads", cfg.Upload.Dir)

	// WebSocket chat + signaling endpoint
	router.GET("/ws", handlers.HandleSignaling(coord, verifier))

	log.Printf("Starting room relay on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
