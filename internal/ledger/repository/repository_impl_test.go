package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/themeleon/themeleon/internal/ledger/domain"
	"github.com/themeleon/themeleon/internal/ledger/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE generation_log (
			id BIGINT PRIMARY KEY,
			account_id TEXT,
			ip_address TEXT NOT NULL,
			prompt TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX ix_generation_log_account ON generation_log(account_id, created_at)`,
		`CREATE INDEX ix_generation_log_address ON generation_log(ip_address)`,
		`CREATE TABLE credit_balances (
			account_id TEXT PRIMARY KEY,
			paid_balance INTEGER NOT NULL CHECK (paid_balance >= 0),
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE payment_records (
			id BIGINT PRIMARY KEY,
			stripe_session_id TEXT NOT NULL,
			account_id TEXT NOT NULL,
			credits_added INTEGER NOT NULL,
			payload TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_payment_records_session ON payment_records(stripe_session_id)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func newNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func TestCountUsageByAccountSince(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	node := newNode(t)
	repo := repository.Provide()

	account := "acct-1"
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rows := []struct {
		at time.Time
	}{
		{now.Add(-36 * time.Hour)},
		{now.Add(-2 * time.Hour)},
		{now.Add(-time.Minute)},
	}
	for _, row := range rows {
		err := repo.RecordGeneration(ctx, db, &domain.GenerationRecord{
			ID:        node.Generate(),
			AccountID: &account,
			IPAddress: "203.0.113.9",
			Prompt:    "sunset over the ocean",
			CreatedAt: row.at,
		})
		if err != nil {
			t.Fatalf("record generation: %v", err)
		}
	}

	total, err := repo.CountUsageByAccount(ctx, db, account, nil)
	if err != nil {
		t.Fatalf("count usage: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 rows, got %d", total)
	}

	dayStart := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	today, err := repo.CountUsageByAccount(ctx, db, account, &dayStart)
	if err != nil {
		t.Fatalf("count usage since: %v", err)
	}
	if today != 2 {
		t.Fatalf("expected 2 rows since day start, got %d", today)
	}
}

func TestCountUsageByAddressIncludesAccountRows(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	node := newNode(t)
	repo := repository.Provide()

	account := "acct-1"
	now := time.Now().UTC()

	err := repo.RecordGeneration(ctx, db, &domain.GenerationRecord{
		ID:        node.Generate(),
		AccountID: &account,
		IPAddress: "203.0.113.9",
		Prompt:    "forest at dawn",
		CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("record account generation: %v", err)
	}
	err = repo.RecordGeneration(ctx, db, &domain.GenerationRecord{
		ID:        node.Generate(),
		IPAddress: "203.0.113.9",
		Prompt:    "neon city",
		CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("record anonymous generation: %v", err)
	}

	count, err := repo.CountUsageByAddress(ctx, db, "203.0.113.9")
	if err != nil {
		t.Fatalf("count usage by address: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected both rows for the address, got %d", count)
	}

	other, err := repo.CountUsageByAddress(ctx, db, "198.51.100.7")
	if err != nil {
		t.Fatalf("count usage by other address: %v", err)
	}
	if other != 0 {
		t.Fatalf("expected 0 rows for an unused address, got %d", other)
	}
}

func TestCreateBalanceIdempotent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := repository.Provide()

	now := time.Now().UTC()
	balance := &domain.CreditBalance{
		AccountID:   "acct-1",
		PaidBalance: 2,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := repo.CreateBalance(ctx, db, balance)
	if err != nil {
		t.Fatalf("create balance: %v", err)
	}
	if !created {
		t.Fatalf("expected first insert to create the row")
	}

	created, err = repo.CreateBalance(ctx, db, balance)
	if err != nil {
		t.Fatalf("create balance again: %v", err)
	}
	if created {
		t.Fatalf("expected second insert to be a no-op")
	}

	got, err := repo.GetBalance(ctx, db, "acct-1")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if got == nil || got.PaidBalance != 2 {
		t.Fatalf("expected paid_balance 2, got %+v", got)
	}
}

func TestSpendCreditStopsAtZero(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := repository.Provide()

	now := time.Now().UTC()
	_, err := repo.CreateBalance(ctx, db, &domain.CreditBalance{
		AccountID:   "acct-1",
		PaidBalance: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("create balance: %v", err)
	}

	spent, err := repo.SpendCredit(ctx, db, "acct-1", now)
	if err != nil {
		t.Fatalf("spend credit: %v", err)
	}
	if !spent {
		t.Fatalf("expected first spend to succeed")
	}

	spent, err = repo.SpendCredit(ctx, db, "acct-1", now)
	if err != nil {
		t.Fatalf("spend credit at zero: %v", err)
	}
	if spent {
		t.Fatalf("expected spend at zero balance to fail")
	}

	got, err := repo.GetBalance(ctx, db, "acct-1")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if got.PaidBalance != 0 {
		t.Fatalf("expected paid_balance 0, got %d", got.PaidBalance)
	}
}

func TestSpendCreditUnknownAccount(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := repository.Provide()

	spent, err := repo.SpendCredit(ctx, db, "missing", time.Now().UTC())
	if err != nil {
		t.Fatalf("spend credit: %v", err)
	}
	if spent {
		t.Fatalf("expected spend on missing account to fail")
	}
}

func TestAddCreditsRequiresExistingBalance(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := repository.Provide()

	now := time.Now().UTC()
	updated, err := repo.AddCredits(ctx, db, "missing", 30, now)
	if err != nil {
		t.Fatalf("add credits: %v", err)
	}
	if updated {
		t.Fatalf("expected add on missing account to report false")
	}

	_, err = repo.CreateBalance(ctx, db, &domain.CreditBalance{
		AccountID: "acct-1", PaidBalance: 2, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create balance: %v", err)
	}

	updated, err = repo.AddCredits(ctx, db, "acct-1", 30, now)
	if err != nil {
		t.Fatalf("add credits: %v", err)
	}
	if !updated {
		t.Fatalf("expected add on existing account to succeed")
	}

	got, err := repo.GetBalance(ctx, db, "acct-1")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if got.PaidBalance != 32 {
		t.Fatalf("expected paid_balance 32, got %d", got.PaidBalance)
	}
}

func TestInsertPaymentRecordIdempotent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	node := newNode(t)
	repo := repository.Provide()

	now := time.Now().UTC()
	record := &domain.PaymentRecord{
		ID:              node.Generate(),
		StripeSessionID: "cs_test_1",
		AccountID:       "acct-1",
		CreditsAdded:    30,
		CreatedAt:       now,
	}

	inserted, err := repo.InsertPaymentRecord(ctx, db, record)
	if err != nil {
		t.Fatalf("insert payment record: %v", err)
	}
	if !inserted {
		t.Fatalf("expected first insert to succeed")
	}

	replay := *record
	replay.ID = node.Generate()
	inserted, err = repo.InsertPaymentRecord(ctx, db, &replay)
	if err != nil {
		t.Fatalf("insert replayed record: %v", err)
	}
	if inserted {
		t.Fatalf("expected replayed session to be a no-op")
	}

	seen, err := repo.HasPaymentRecord(ctx, db, "cs_test_1")
	if err != nil {
		t.Fatalf("has payment record: %v", err)
	}
	if !seen {
		t.Fatalf("expected session to be recorded")
	}
}
