package repository

import (
	"context"
	"time"

	"github.com/themeleon/themeleon/internal/ledger/domain"
	pkgdb "github.com/themeleon/themeleon/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CountUsageByAccount(ctx context.Context, db *gorm.DB, accountID string, since *time.Time) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM generation_log WHERE account_id = ?`
	args := []interface{}{accountID}
	if since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *since)
	}
	err := db.WithContext(ctx).Raw(query, args...).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) CountUsageByAddress(ctx context.Context, db *gorm.DB, address string) (int64, error) {
	// Account-tier rows count too: the address allowance is shared by
	// everyone generating from that address.
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM generation_log WHERE ip_address = ?`,
		address,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) GetBalance(ctx context.Context, db *gorm.DB, accountID string) (*domain.CreditBalance, error) {
	var item domain.CreditBalance
	err := db.WithContext(ctx).Raw(
		`SELECT account_id, paid_balance, created_at, updated_at
		 FROM credit_balances
		 WHERE account_id = ?
		 LIMIT 1`,
		accountID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.AccountID == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) CreateBalance(ctx context.Context, db *gorm.DB, balance *domain.CreditBalance) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO credit_balances (account_id, paid_balance, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (account_id) DO NOTHING`,
		balance.AccountID,
		balance.PaidBalance,
		balance.CreatedAt,
		balance.UpdatedAt,
	)
	if res.Error != nil {
		if pkgdb.IsDuplicateKeyErr(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SpendCredit(ctx context.Context, db *gorm.DB, accountID string, now time.Time) (bool, error) {
	// The balance guard lives in the WHERE clause so two concurrent spends
	// of the last credit cannot both succeed.
	res := db.WithContext(ctx).Exec(
		`UPDATE credit_balances
		 SET paid_balance = paid_balance - 1, updated_at = ?
		 WHERE account_id = ? AND paid_balance > 0`,
		now,
		accountID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) AddCredits(ctx context.Context, db *gorm.DB, accountID string, amount int, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE credit_balances
		 SET paid_balance = paid_balance + ?, updated_at = ?
		 WHERE account_id = ?`,
		amount,
		now,
		accountID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) RecordGeneration(ctx context.Context, db *gorm.DB, record *domain.GenerationRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO generation_log (id, account_id, ip_address, prompt, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		record.ID,
		record.AccountID,
		record.IPAddress,
		record.Prompt,
		record.CreatedAt,
	).Error
}

func (r *repo) HasPaymentRecord(ctx context.Context, db *gorm.DB, sessionID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM payment_records WHERE stripe_session_id = ?`,
		sessionID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) InsertPaymentRecord(ctx context.Context, db *gorm.DB, record *domain.PaymentRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payment_records (
			id, stripe_session_id, account_id, credits_added, payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (stripe_session_id) DO NOTHING`,
		record.ID,
		record.StripeSessionID,
		record.AccountID,
		record.CreditsAdded,
		record.Payload,
		record.CreatedAt,
	)
	if res.Error != nil {
		if pkgdb.IsDuplicateKeyErr(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
