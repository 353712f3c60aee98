package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// GenerationRecord is one row of the append-only usage log. Rows are never
// updated or deleted; all quota counts are derived from them.
type GenerationRecord struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	AccountID *string      `json:"account_id" gorm:"type:text;index"`
	IPAddress string       `json:"ip_address" gorm:"type:text;not null;index"`
	Prompt    string       `json:"prompt" gorm:"type:text;not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (GenerationRecord) TableName() string { return "generation_log" }

// CreditBalance tracks purchased credits per account. paid_balance never
// goes below zero; the conditional decrement enforces it in SQL.
type CreditBalance struct {
	AccountID   string    `json:"account_id" gorm:"primaryKey;type:text"`
	PaidBalance int       `json:"paid_balance" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null"`
}

func (CreditBalance) TableName() string { return "credit_balances" }

// PaymentRecord marks a checkout session as credited. Its presence is the
// idempotency barrier for webhook replays.
type PaymentRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	StripeSessionID string         `json:"stripe_session_id" gorm:"type:text;not null;uniqueIndex"`
	AccountID       string         `json:"account_id" gorm:"type:text;not null;index"`
	CreditsAdded    int            `json:"credits_added" gorm:"not null"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	CreatedAt       time.Time      `json:"created_at" gorm:"not null"`
}

func (PaymentRecord) TableName() string { return "payment_records" }
