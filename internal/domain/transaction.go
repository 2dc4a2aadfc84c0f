package domain

import "time"

// Transaction types
const (
	TxTypeDeposit       = "DEPOSIT"
	TxTypeWithdrawal    = "WITHDRAWAL"
	TxTypeReferralBonus = "REFERRAL_BONUS"
	TxTypeCommission    = "COMMISSION"
)

// Transaction statuses
const (
	TxStatusPending   = "PENDING"
	TxStatusCompleted = "COMPLETED"
	TxStatusFailed    = "FAILED"
)

// Payment methods
const (
	PaymentMethodRazorpay     = "RAZORPAY"
	PaymentMethodBankTransfer = "BANK_TRANSFER"
	PaymentMethodWallet       = "WALLET"
)

// Transaction Model. Rows are immutable once created: the ledger appends,
// it never updates or deletes.
type Transaction struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;index" json:"userId"`
	Type             string    `gorm:"size:20;not null;default:DEPOSIT" json:"type"`
	Amount           float64   `gorm:"not null" json:"amount"`
	Status           string    `gorm:"size:20;not null;default:COMPLETED" json:"status"`
	PaymentMethod    string    `gorm:"size:20;not null;default:RAZORPAY" json:"paymentMethod"`
	PaymentReference *string   `gorm:"size:191;uniqueIndex" json:"paymentReference,omitempty"` // Gateway payment id, unique when present
	Description      string    `gorm:"size:255" json:"description"`
	Notes            string    `gorm:"size:500" json:"notes"`
	Metadata         JSONMap   `gorm:"type:json" json:"metadata"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
