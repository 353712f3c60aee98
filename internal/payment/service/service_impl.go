package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/themeleon/themeleon/internal/clock"
	"github.com/themeleon/themeleon/internal/config"
	ledgerdomain "github.com/themeleon/themeleon/internal/ledger/domain"
	"github.com/themeleon/themeleon/internal/observability/metrics"
	"github.com/themeleon/themeleon/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    ledgerdomain.Repository
	Adapter domain.Adapter
	Clock   clock.Clock
	Policy  *config.PolicyHolder
	Metrics *metrics.Metrics
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    ledgerdomain.Repository
	adapter domain.Adapter
	clock   clock.Clock
	policy  *config.PolicyHolder
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("payment.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		adapter: p.Adapter,
		clock:   p.Clock,
		policy:  p.Policy,
		metrics: p.Metrics,
	}
}

func (s *Service) ProcessEvent(ctx context.Context, payload []byte, headers http.Header) error {
	if err := s.adapter.Verify(payload, headers); err != nil {
		return err
	}

	event, err := s.adapter.Parse(payload)
	if err != nil {
		return err
	}

	seen, err := s.repo.HasPaymentRecord(ctx, s.db, event.SessionID)
	if err != nil {
		return fmt.Errorf("check payment record: %w", err)
	}
	if seen {
		return domain.ErrAlreadyProcessed
	}

	balance, err := s.repo.GetBalance(ctx, s.db, event.AccountID)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	if balance == nil {
		return domain.ErrAccountNotFound
	}

	credits := s.policy.Get().CreditsPerPurchase
	now := s.clock.Now()

	// Credit and idempotency record commit together, so a failed insert or
	// a lost race rolls the credit back instead of double-crediting on the
	// next delivery.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, err := s.repo.AddCredits(ctx, tx, event.AccountID, credits, now)
		if err != nil {
			return fmt.Errorf("add credits: %w", err)
		}
		if !updated {
			return domain.ErrAccountNotFound
		}

		inserted, err := s.repo.InsertPaymentRecord(ctx, tx, &ledgerdomain.PaymentRecord{
			ID:              s.genID.Generate(),
			StripeSessionID: event.SessionID,
			AccountID:       event.AccountID,
			CreditsAdded:    credits,
			Payload:         datatypes.JSON(event.RawPayload),
			CreatedAt:       now,
		})
		if err != nil {
			return fmt.Errorf("insert payment record: %w", err)
		}
		if !inserted {
			return domain.ErrAlreadyProcessed
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.RecordPaymentEvent(ctx, "stripe", "checkout.session.completed")
	s.log.Info("credits added",
		zap.String("account_id", event.AccountID),
		zap.String("session_id", event.SessionID),
		zap.Int("credits", credits))

	return nil
}
