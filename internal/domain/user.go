package domain

import "time"

// User roles
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User Model. The wallet balance is denormalized onto the user row and is
// only ever mutated through atomic increments in the ledger package.
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Username      string    `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Email         string    `gorm:"size:191;uniqueIndex;not null" json:"email"` // Stored lowercase
	Password      string    `gorm:"size:255;not null" json:"-"`                 // Bcrypt hash, never serialized
	WalletBalance float64   `gorm:"not null;default:0" json:"walletBalance"`
	TotalDeposits float64   `gorm:"not null;default:0" json:"totalDeposits"`
	TotalEarnings float64   `gorm:"not null;default:0" json:"totalEarnings"`
	ReferralCode  *string   `gorm:"size:20;uniqueIndex" json:"referralCode,omitempty"` // Unique when present
	ReferredBy    *uint     `gorm:"index" json:"referredBy,omitempty"`
	ReferralCount uint      `gorm:"not null;default:0" json:"referralCount"`
	Role          string    `gorm:"size:10;not null;default:USER" json:"role"`
	IsActive      bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
