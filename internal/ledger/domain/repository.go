package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Repository is the durable quota ledger. Implementations must keep every
// mutation a single statement so concurrent requests cannot interleave a
// read-then-write on the same balance row.
type Repository interface {
	// CountUsageByAccount counts generation_log rows for an account,
	// optionally bounded to rows at or after since.
	CountUsageByAccount(ctx context.Context, db *gorm.DB, accountID string, since *time.Time) (int64, error)

	// CountUsageByAddress counts all generation_log rows for an address.
	CountUsageByAddress(ctx context.Context, db *gorm.DB, address string) (int64, error)

	// GetBalance returns nil when no balance row exists.
	GetBalance(ctx context.Context, db *gorm.DB, accountID string) (*CreditBalance, error)

	// CreateBalance inserts the balance row if absent and reports whether
	// this call created it.
	CreateBalance(ctx context.Context, db *gorm.DB, balance *CreditBalance) (bool, error)

	// SpendCredit decrements paid_balance by one only while it is positive
	// and reports whether a credit was actually consumed.
	SpendCredit(ctx context.Context, db *gorm.DB, accountID string, now time.Time) (bool, error)

	// AddCredits increments paid_balance and reports whether the account
	// row existed.
	AddCredits(ctx context.Context, db *gorm.DB, accountID string, amount int, now time.Time) (bool, error)

	// RecordGeneration appends one usage row.
	RecordGeneration(ctx context.Context, db *gorm.DB, record *GenerationRecord) error

	// HasPaymentRecord reports whether the checkout session was already
	// credited.
	HasPaymentRecord(ctx context.Context, db *gorm.DB, sessionID string) (bool, error)

	// InsertPaymentRecord inserts the idempotency row and reports whether
	// this call inserted it.
	InsertPaymentRecord(ctx context.Context, db *gorm.DB, record *PaymentRecord) (bool, error)
}
