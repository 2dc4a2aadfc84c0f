package main

import (
	"context"                        // context package is needed for Redis operations
	"log"                            // log package is needed for logging
	"mlm_wallet/internal/api"        // Custom package for API handlers
	"mlm_wallet/internal/config"     // Custom package for configuration
	"mlm_wallet/internal/ledger"     // Wallet ledger service
	"mlm_wallet/internal/middleware" // Custom package for middleware
	"mlm_wallet/internal/payment"    // Payment signature verification

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"gorm.io/driver/mysql"         // MySQL driver for GORM
	"gorm.io/gorm"                 // GORM ORM library
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig()

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Setup Data Source Name (DSN) and connect to the database.
	// TranslateError surfaces unique-index violations as gorm.ErrDuplicatedKey.
	dsn := cfg.DBUser + ":" + cfg.DBPassword + "@tcp(" + cfg.DBHost + ":" + cfg.DBPort + ")/" + cfg.DBName + "?parseTime=true"
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	// Test Redis connection
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// The ledger and verifier are constructed once and passed by reference,
	// no ambient globals
	ledgerSvc := ledger.NewService(db)
	verifier := payment.NewVerifier(cfg.RazorpaySecret)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default()

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	// Auth routes
	authGroup := r.Group("/auth")
	authGroup.POST("/register", api.RegisterHandler(db, ledgerSvc, redisClient, cfg)) // Registration endpoint
	authGroup.POST("/login", api.LoginHandler(db, cfg.JWTSecret))                     // Login endpoint
	authGroup.GET("/profile", middleware.JWTAuthMiddleware(cfg.JWTSecret), api.ProfileHandler(db, redisClient))

	// Transaction routes (protected by JWT)
	txGroup := r.Group("/transactions")
	txGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	txGroup.POST("/add", api.DepositHandler(ledgerSvc, verifier, redisClient)) // Deposit endpoint
	txGroup.GET("/history", api.HistoryHandler(ledgerSvc, redisClient))        // Transaction history endpoint

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret), middleware.AdminOnlyMiddleware(db))
	adminGroup.GET("/users", api.ListUsersHandler(db, redisClient))               // List users endpoint
	adminGroup.GET("/transactions", api.ListTransactionsHandler(db, redisClient)) // List transactions endpoint

	log.Println("Server running on " + cfg.AppPort)
	r.Run(":" + cfg.AppPort)
}
