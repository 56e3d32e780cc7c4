package models

import "time"

// EmailOTP holds one pending verification code. Only the sha256 of the code
// is stored; resending replaces the row.
type EmailOTP struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"size:120;not null;uniqueIndex"`
	CodeHash  string    `json:"-" gorm:"size:64;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	Attempts  int       `json:"attempts" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
}
