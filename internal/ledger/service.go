package ledger

import (
	"context"
	"errors"
	"mlm_wallet/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// Service records monetary transactions and keeps the denormalized user
// balance consistent with the transaction log. All writes happen inside a
// single database transaction, and balance columns are only ever touched
// with atomic increments, so concurrent deposits for one user serialize at
// the database row instead of racing a read-then-write.
type Service struct {
	db *gorm.DB
}

// NewService creates a ledger Service on top of the shared database handle.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// DepositInput carries the caller-supplied fields of a deposit request.
type DepositInput struct {
	Amount        float64
	Reference     string // External payment reference, optional
	Description   string
	Notes         string
	PaymentMethod string
	Metadata      domain.JSONMap
}

// Balances is the post-update snapshot returned with a recorded transaction.
type Balances struct {
	WalletBalance float64 `json:"walletBalance"`
	TotalDeposits float64 `json:"totalDeposits"`
}

// HistoryEntry is a transaction projected for the dashboard.
type HistoryEntry struct {
	ID          uint    `json:"id"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"` // Calendar date, server-local
	Status      string  `json:"status"`
	Notes       string  `json:"notes"`
	Description string  `json:"description"`
}

// HistoryPage is the full history response for one user.
type HistoryPage struct {
	Transactions  []HistoryEntry `json:"transactions"`
	WalletBalance float64        `json:"walletBalance"`
	TotalDeposits float64        `json:"totalDeposits"`
}

// RecordDeposit validates and persists one deposit, then applies it to the
// user's cached balance and running deposit total. Exactly one transaction
// row is persisted, or none at all: duplicate references are rejected before
// the insert, and the unique index on payment_reference backstops the check
// when two requests carry the same reference concurrently.
func (s *Service) RecordDeposit(ctx context.Context, userID uint, in DepositInput) (*domain.Transaction, Balances, error) {
	if in.Amount <= 0 {
		return nil, Balances{}, ErrInvalidAmount
	}
	if in.Description == "" {
		in.Description = "Wallet Deposit"
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = domain.PaymentMethodRazorpay
	}

	txn := domain.Transaction{
		UserID:        userID,
		Type:          domain.TxTypeDeposit,
		Amount:        in.Amount,
		Status:        domain.TxStatusCompleted,
		PaymentMethod: in.PaymentMethod,
		Description:   in.Description,
		Notes:         in.Notes,
		Metadata:      in.Metadata,
	}
	if in.Reference != "" {
		ref := in.Reference
		txn.PaymentReference = &ref
	}

	var balances Balances
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The user row must exist before anything is written
		var user domain.User
		if err := tx.Select("id").First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		// Idempotent rejection: a reference already recorded for any user
		// means a retried webhook or duplicated client request
		if in.Reference != "" {
			var existing domain.Transaction
			err := tx.Select("id").Where("payment_reference = ?", in.Reference).First(&existing).Error
			if err == nil {
				return ErrDuplicateTransaction
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		if err := tx.Create(&txn).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateTransaction
			}
			return err
		}
		return s.applyIncrements(tx, userID, map[string]interface{}{
			"wallet_balance": gorm.Expr("wallet_balance + ?", in.Amount),
			"total_deposits": gorm.Expr("total_deposits + ?", in.Amount),
		}, &balances)
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"amount":  in.Amount,
			"error":   err.Error(),
		}).Error("Deposit failed")
		return nil, Balances{}, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":        userID,
		"transaction_id": txn.ID,
		"amount":         in.Amount,
		"type":           domain.TxTypeDeposit,
	}).Info("Deposit recorded")
	return &txn, balances, nil
}

// RegisterReferral records a completed signup against its referrer: the
// referral counter bumps atomically and, when a bonus is configured, a
// REFERRAL_BONUS transaction is appended and applied to the balance and total
// earnings. Counter and bonus land in one database transaction so the counter
// never drifts from the transaction log. Returns the bonus transaction, nil
// when the bonus is zero.
func (s *Service) RegisterReferral(ctx context.Context, referrerID uint, bonus float64, invitedUsername string) (*domain.Transaction, error) {
	if bonus < 0 {
		return nil, ErrInvalidAmount
	}
	var txn *domain.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The increment doubles as the existence check
		res := tx.Model(&domain.User{}).Where("id = ?", referrerID).
			Update("referral_count", gorm.Expr("referral_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		if bonus == 0 {
			return nil
		}
		t := domain.Transaction{
			UserID:        referrerID,
			Type:          domain.TxTypeReferralBonus,
			Amount:        bonus,
			Status:        domain.TxStatusCompleted,
			PaymentMethod: domain.PaymentMethodWallet,
			Description:   "Referral bonus",
			Metadata:      domain.JSONMap{"invitedUser": invitedUsername},
		}
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		var balances Balances
		if err := s.applyIncrements(tx, referrerID, map[string]interface{}{
			"wallet_balance": gorm.Expr("wallet_balance + ?", bonus),
			"total_earnings": gorm.Expr("total_earnings + ?", bonus),
		}, &balances); err != nil {
			return err
		}
		txn = &t
		return nil
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"referrer_id": referrerID,
			"bonus":       bonus,
			"error":       err.Error(),
		}).Error("Referral registration failed")
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"referrer_id":  referrerID,
		"bonus":        bonus,
		"invited_user": invitedUsername,
	}).Info("Referral registered")
	return txn, nil
}

// applyIncrements performs the atomic balance update and reads back the
// fresh figures. Zero affected rows after the transaction row was written is
// the one partial-failure window in the flow; rolling back and surfacing a
// distinct category keeps it from being masked as a generic failure.
func (s *Service) applyIncrements(tx *gorm.DB, userID uint, updates map[string]interface{}, balances *Balances) error {
	res := tx.Model(&domain.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInconsistentState
	}
	var user domain.User
	if err := tx.Select("wallet_balance", "total_deposits").First(&user, userID).Error; err != nil {
		return err
	}
	balances.WalletBalance = user.WalletBalance
	balances.TotalDeposits = user.TotalDeposits
	return nil
}

// History returns the user's transactions newest-first together with the
// current balance figures. Pure read.
func (s *Service) History(ctx context.Context, userID uint) (HistoryPage, error) {
	var txns []domain.Transaction
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&txns).Error; err != nil {
		return HistoryPage{}, err
	}
	var user domain.User
	if err := s.db.WithContext(ctx).Select("wallet_balance", "total_deposits").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return HistoryPage{}, ErrUserNotFound
		}
		return HistoryPage{}, err
	}
	page := HistoryPage{
		Transactions:  make([]HistoryEntry, len(txns)),
		WalletBalance: user.WalletBalance,
		TotalDeposits: user.TotalDeposits,
	}
	for i, t := range txns {
		page.Transactions[i] = HistoryEntry{
			ID:          t.ID,
			Type:        t.Type,
			Amount:      t.Amount,
			Date:        t.CreatedAt.Format("2006-01-02"),
			Status:      t.Status,
			Notes:       t.Notes,
			Description: t.Description,
		}
	}
	return page, nil
}
