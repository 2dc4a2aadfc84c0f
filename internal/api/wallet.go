package api

import (
	"context"
	"errors"
	"mlm_wallet/internal/domain"  // Importing domain models
	"mlm_wallet/internal/ledger"  // Wallet ledger service
	"mlm_wallet/internal/payment" // Payment signature verification
	"mlm_wallet/internal/utils"   // Utility functions
	"net/http"                    // HTTP status codes
	"strconv"                     // String conversion
	"time"                        // Time durations

	"github.com/gin-gonic/gin"               // Gin web framework
	"github.com/go-playground/validator/v10" // Request validation errors
	"github.com/redis/go-redis/v9"           // Redis client
	"github.com/sirupsen/logrus"             // Logging library
)

// depositTimeout bounds the data-store work for one deposit request.
const depositTimeout = 5 * time.Second

// DepositRequest is the deposit payload. Reference and signature come from
// the payment gateway and are optional; when both are present the signature
// must verify before anything is persisted.
type DepositRequest struct {
	Amount            float64 `json:"amount" binding:"required,gt=0"`
	ExternalReference string  `json:"externalReference"`
	Signature         string  `json:"signature"`
	Description       string  `json:"description"`
	Notes             string  `json:"notes" binding:"max=500"`
	OrderID           string  `json:"orderId"`
}

// DepositHandler records a deposit against the authenticated user's wallet
func DepositHandler(svc *ledger.Service, verifier payment.Verifier, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req DepositRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": bindErrorMessage(err)})
			return
		}
		// Gateway signature verification, when the gateway supplied one
		if req.ExternalReference != "" && req.Signature != "" {
			ok, err := verifier.Verify(req.ExternalReference, req.Amount, req.Signature)
			if err != nil {
				// Unverifiable is not verified: reject, never silently accept
				logrus.WithField("error", err.Error()).Error("Payment verification unavailable")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment verification unavailable"})
				return
			}
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment signature"})
				return
			}
		}

		metadata := domain.JSONMap{"paymentGateway": "Razorpay"}
		if req.OrderID != "" {
			metadata["orderId"] = req.OrderID
		}
		if req.Signature != "" {
			metadata["signature"] = req.Signature
		}
		if req.ExternalReference != "" {
			metadata["paymentReference"] = req.ExternalReference
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), depositTimeout)
		defer cancel()
		txn, balances, err := svc.RecordDeposit(ctx, userID.(uint), ledger.DepositInput{
			Amount:      req.Amount,
			Reference:   req.ExternalReference,
			Description: req.Description,
			Notes:       req.Notes,
			Metadata:    metadata,
		})
		if err != nil {
			status, body := ledgerErrorResponse(err)
			c.JSON(status, body)
			return
		}

		// Invalidate cached balance views for this user
		if rdb != nil {
			bg := context.Background()
			uid := strconv.Itoa(int(userID.(uint)))
			_ = utils.DeleteCache(bg, rdb, "profile:user:"+uid)
			_ = utils.DeleteCache(bg, rdb, "txhistory:user:"+uid)
		}
		c.JSON(http.StatusCreated, gin.H{
			"message":        "Transaction added successfully",
			"transaction":    txn,
			"updatedBalance": balances.WalletBalance,
			"totalDeposits":  balances.TotalDeposits,
		})
	}
}

// bindErrorMessage names the offending field of a rejected deposit payload.
// Only the amount gets its own message; anything else (overlong notes,
// malformed JSON) reports a generic invalid request.
func bindErrorMessage(err error) string {
	var verr validator.ValidationErrors
	if errors.As(err, &verr) {
		for _, fe := range verr {
			if fe.Field() == "Amount" {
				return "Invalid amount"
			}
		}
	}
	return "Invalid request"
}

// ledgerErrorResponse maps a ledger error to an HTTP status and body. The
// body carries the machine-usable category next to the message.
func ledgerErrorResponse(err error) (int, gin.H) {
	var de *ledger.DomainError
	if errors.As(err, &de) {
		body := gin.H{"error": de.Message, "code": de.Code}
		switch de {
		case ledger.ErrInvalidAmount:
			return http.StatusBadRequest, body
		case ledger.ErrDuplicateTransaction:
			return http.StatusConflict, body
		case ledger.ErrUserNotFound:
			return http.StatusNotFound, body
		default:
			// Includes ErrInconsistentState, surfaced with its own category
			return http.StatusInternalServerError, body
		}
	}
	return http.StatusInternalServerError, gin.H{"error": "Server error during transaction"}
}

// HistoryHandler returns the authenticated user's transactions newest-first
// together with the current balance figures
func HistoryHandler(svc *ledger.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		ctx := context.Background()
		cacheKey := "txhistory:user:" + strconv.Itoa(int(userID.(uint)))
		var cached ledger.HistoryPage
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		if err == nil && found {
			c.JSON(http.StatusOK, cached)
			return
		}
		reqCtx, cancel := context.WithTimeout(c.Request.Context(), depositTimeout)
		defer cancel()
		page, err := svc.History(reqCtx, userID.(uint))
		if err != nil {
			if errors.Is(err, ledger.ErrUserNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching transaction history"})
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, page, 60*time.Second)
		c.JSON(http.StatusOK, page)
	}
}
