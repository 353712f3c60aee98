package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/themeleon/themeleon/internal/ledger/domain"
	"github.com/themeleon/themeleon/internal/ledger/repository"
	"go.uber.org/zap"
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
	err = db.Exec(`CREATE TABLE generation_log (
		id BIGINT PRIMARY KEY,
		account_id TEXT,
		ip_address TEXT NOT NULL,
		prompt TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`).Error
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func newTestRecorder(t *testing.T, db *gorm.DB, repo domain.Repository) *Recorder {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return &Recorder{
		db:    db,
		log:   zap.NewNop(),
		genID: node,
		queue: make(chan *domain.GenerationRecord, defaultQueueSize),
		repo:  repo,
	}
}

func TestRecorderWritesQueuedRows(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRecorder(t, db, repository.Provide())
	r.start()

	for i := 0; i < 5; i++ {
		ok := r.Enqueue(&domain.GenerationRecord{
			IPAddress: "203.0.113.9",
			Prompt:    "midnight terminal",
			CreatedAt: time.Now().UTC(),
		})
		if !ok {
			t.Fatalf("enqueue %d rejected", i)
		}
	}

	if err := r.stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	var count int64
	if err := db.Raw("SELECT COUNT(1) FROM generation_log").Scan(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected 5 rows, got %d", count)
	}
}

type flakyRepo struct {
	domain.Repository

	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyRepo) RecordGeneration(ctx context.Context, db *gorm.DB, record *domain.GenerationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("insert failed")
	}
	return f.Repository.RecordGeneration(ctx, db, record)
}

func TestRecorderRetriesTransientFailure(t *testing.T) {
	db := setupTestDB(t)
	flaky := &flakyRepo{Repository: repository.Provide(), failures: 2}
	r := newTestRecorder(t, db, flaky)
	r.start()

	if ok := r.Enqueue(&domain.GenerationRecord{
		IPAddress: "203.0.113.9",
		Prompt:    "retro amber",
		CreatedAt: time.Now().UTC(),
	}); !ok {
		t.Fatalf("enqueue rejected")
	}

	if err := r.stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	var count int64
	if err := db.Raw("SELECT COUNT(1) FROM generation_log").Scan(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected retried row to land, got %d rows", count)
	}
	if flaky.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", flaky.calls)
	}
}

func TestRecorderDropsWhenQueueFull(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRecorder(t, db, repository.Provide())
	r.queue = make(chan *domain.GenerationRecord, 1)
	// Workers are never started, so the second enqueue finds a full queue.

	first := r.Enqueue(&domain.GenerationRecord{IPAddress: "a", Prompt: "p", CreatedAt: time.Now().UTC()})
	second := r.Enqueue(&domain.GenerationRecord{IPAddress: "b", Prompt: "p", CreatedAt: time.Now().UTC()})

	if !first {
		t.Fatalf("expected first enqueue to be accepted")
	}
	if second {
		t.Fatalf("expected second enqueue to be dropped")
	}
}
