package api

import (
	"context"
	"errors"
	"mlm_wallet/internal/config" // Application configuration
	"mlm_wallet/internal/domain" // Importing domain models
	"mlm_wallet/internal/ledger" // Wallet ledger service
	"mlm_wallet/internal/utils"  // Utility functions
	"net/http"                   // HTTP status codes
	"strconv"                    // String conversion
	"strings"                    // String manipulation
	"time"                       // Time durations

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"golang.org/x/crypto/bcrypt"   // Password hashing
	"gorm.io/gorm"                 // GORM ORM library
)

// referralCodeAttempts bounds how often a colliding referral code is
// regenerated before the registration is given up.
const referralCodeAttempts = 3

// RegisterRequest is the registration payload
type RegisterRequest struct {
	Username     string `json:"username" binding:"required,min=3"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=6"`
	ReferralCode string `json:"referralCode"` // Optional code of the referring user
}

// LoginRequest is the login payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthUser is the user projection returned with a token
type AuthUser struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AuthResponse carries a bearer token and the authenticated user
type AuthResponse struct {
	Token string   `json:"token"`
	User  AuthUser `json:"user"`
}

// RegisterHandler creates a new user with a fresh referral code and returns
// a bearer token. An optional referral code links the referrer; the referral
// counter and any configured bonus are applied through the ledger so counters
// are only ever mutated by ledger code.
func RegisterHandler(db *gorm.DB, svc *ledger.Service, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		username := strings.TrimSpace(req.Username)
		email := strings.ToLower(strings.TrimSpace(req.Email))

		// Pre-check for a duplicate so the error names the offending field
		var existing domain.User
		if err := db.Where("email = ? OR username = ?", email, username).First(&existing).Error; err == nil {
			if existing.Email == email {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Email already in use"})
			} else {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Username already taken"})
			}
			return
		}

		// Resolve the referrer before creating the user; an unknown code is
		// ignored rather than failing the registration
		var referrer *domain.User
		if req.ReferralCode != "" {
			var ref domain.User
			if err := db.Where("referral_code = ?", strings.ToUpper(strings.TrimSpace(req.ReferralCode))).First(&ref).Error; err == nil {
				referrer = &ref
			} else {
				logrus.WithField("referral_code", req.ReferralCode).Warn("Unknown referral code on registration")
			}
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		user := domain.User{
			Username: username,
			Email:    email,
			Password: string(hash),
			Role:     domain.RoleUser,
			IsActive: true,
		}
		if referrer != nil {
			user.ReferredBy = &referrer.ID
		}
		created := false
		for attempt := 0; attempt < referralCodeAttempts; attempt++ {
			code, err := utils.GenerateReferralCode()
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate referral code"})
				return
			}
			user.ReferralCode = &code
			err = db.Create(&user).Error
			if err == nil {
				created = true
				break
			}
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				logrus.WithField("error", err.Error()).Error("Failed to create user")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error during registration"})
				return
			}
			// A duplicated key here is either a concurrent signup that won the
			// race on email/username, or a referral-code collision. Re-check the
			// identity columns; only a code collision earns a fresh code.
			var clash domain.User
			if err := db.Where("email = ? OR username = ?", email, username).First(&clash).Error; err == nil {
				if clash.Email == email {
					c.JSON(http.StatusBadRequest, gin.H{"error": "Email already in use"})
				} else {
					c.JSON(http.StatusBadRequest, gin.H{"error": "Username already taken"})
				}
				return
			}
			logrus.WithField("user", username).Warn("Referral code collision, regenerating")
		}
		if !created {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error during registration"})
			return
		}

		if referrer != nil {
			applyReferral(c, svc, rdb, cfg, referrer, user.Username)
		}

		token, err := utils.GenerateJWT(user.ID, cfg.JWTSecret)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		logrus.WithFields(logrus.Fields{
			"user_id":  user.ID,
			"username": user.Username,
		}).Info("User registered")
		c.JSON(http.StatusCreated, AuthResponse{
			Token: token,
			User:  AuthUser{ID: user.ID, Username: user.Username, Email: user.Email},
		})
	}
}

// applyReferral records the signup against the referrer through the ledger
// and drops the referrer's cached views. Failures are logged, not surfaced:
// the signup itself already succeeded and must not report partial failure as
// its own.
func applyReferral(c *gin.Context, svc *ledger.Service, rdb *redis.Client, cfg *config.Config, referrer *domain.User, invitedUsername string) {
	if _, err := svc.RegisterReferral(c.Request.Context(), referrer.ID, cfg.ReferralBonus, invitedUsername); err != nil {
		logrus.WithFields(logrus.Fields{
			"referrer_id": referrer.ID,
			"error":       err.Error(),
		}).Error("Failed to register referral")
	}
	if rdb != nil {
		ctx := context.Background()
		refID := strconv.Itoa(int(referrer.ID))
		_ = utils.DeleteCache(ctx, rdb, "profile:user:"+refID)
		_ = utils.DeleteCache(ctx, rdb, "txhistory:user:"+refID)
	}
}

// LoginHandler authenticates a user by email and returns a bearer token
func LoginHandler(db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var user domain.User
		if err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credentials"})
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credentials"})
			return
		}
		if !user.IsActive {
			c.JSON(http.StatusForbidden, gin.H{"error": "Account is disabled"})
			return
		}
		token, err := utils.GenerateJWT(user.ID, jwtSecret)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		c.JSON(http.StatusOK, AuthResponse{
			Token: token,
			User:  AuthUser{ID: user.ID, Username: user.Username, Email: user.Email},
		})
	}
}

// ProfileHandler returns the authenticated user, password excluded
func ProfileHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		ctx := context.Background()
		cacheKey := "profile:user:" + strconv.Itoa(int(userID.(uint)))
		var user domain.User
		found, err := utils.GetCache(ctx, rdb, cacheKey, &user)
		if err == nil && found {
			c.JSON(http.StatusOK, user)
			return
		}
		if err := db.First(&user, userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, user, 60*time.Second)
		c.JSON(http.StatusOK, user)
	}
}
