package recorder

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/themeleon/themeleon/internal/ledger/domain"
	"github.com/themeleon/themeleon/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 256
	maxAttempts      = 3
	retryDelay       = 500 * time.Millisecond
	drainTimeout     = 10 * time.Second
)

// Recorder appends usage rows off the request path. Enqueue never blocks:
// when the queue is full the row is dropped and counted, since a slow insert
// must not stall theme generation.
type Recorder struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	metrics *metrics.Metrics

	queue  chan *domain.GenerationRecord
	repo   domain.Repository
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Metrics   *metrics.Metrics
}

func New(p Params) *Recorder {
	r := &Recorder{
		db:      p.DB,
		log:     p.Log.Named("ledger.recorder"),
		genID:   p.GenID,
		metrics: p.Metrics,
		queue:   make(chan *domain.GenerationRecord, defaultQueueSize),
		repo:    p.Repo,
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			r.start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return r.stop()
		},
	})

	return r
}

func (r *Recorder) start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	for i := 0; i < defaultWorkers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
}

// stop drains the queue before shutdown so accepted rows are not lost.
func (r *Recorder) stop() error {
	close(r.queue)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainTimeout):
		r.cancel()
		r.log.Warn("drain timeout reached, abandoning queued usage rows")
	}
	return nil
}

// Enqueue accepts a usage row for asynchronous insert and reports whether
// it was queued.
func (r *Recorder) Enqueue(record *domain.GenerationRecord) bool {
	if record.ID == 0 {
		record.ID = r.genID.Generate()
	}
	select {
	case r.queue <- record:
		return true
	default:
		r.log.Warn("usage queue full, dropping row",
			zap.String("ip_address", record.IPAddress))
		r.metrics.RecordUsageDropped(context.Background(), "queue_full")
		return false
	}
}

func (r *Recorder) worker(ctx context.Context) {
	defer r.wg.Done()
	for record := range r.queue {
		r.insert(ctx, record)
	}
}

func (r *Recorder) insert(ctx context.Context, record *domain.GenerationRecord) {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = r.repo.RecordGeneration(ctx, r.db, record)
		if err == nil {
			r.metrics.RecordUsageWritten(ctx)
			return
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < maxAttempts {
			time.Sleep(retryDelay * time.Duration(attempt))
		}
	}

	r.log.Error("failed to record usage",
		zap.Error(err),
		zap.Int64("record_id", int64(record.ID)),
		zap.String("ip_address", record.IPAddress))
	r.metrics.RecordUsageDropped(context.Background(), "insert_failed")
}
