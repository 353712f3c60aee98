package service

import (
	"context"
	"fmt"
	"time"

	"github.com/themeleon/themeleon/internal/clock"
	"github.com/themeleon/themeleon/internal/config"
	"github.com/themeleon/themeleon/internal/entitlement/domain"
	"github.com/themeleon/themeleon/internal/identity"
	ledgerdomain "github.com/themeleon/themeleon/internal/ledger/domain"
	"github.com/themeleon/themeleon/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    ledgerdomain.Repository
	Clock   clock.Clock
	Policy  *config.PolicyHolder
	Metrics *metrics.Metrics
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    ledgerdomain.Repository
	clock   clock.Clock
	policy  *config.PolicyHolder
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("entitlement.service"),
		repo:    p.Repo,
		clock:   p.Clock,
		policy:  p.Policy,
		metrics: p.Metrics,
	}
}

func (s *Service) Consume(ctx context.Context, id identity.Identity) (domain.Decision, error) {
	if id.IsAccount() {
		return s.consumeAccount(ctx, id.AccountID)
	}
	return s.consumeAnonymous(ctx, id.Address)
}

func (s *Service) Preview(ctx context.Context, id identity.Identity) (domain.Decision, error) {
	policy := s.policy.Get()

	if !id.IsAccount() {
		used, err := s.repo.CountUsageByAddress(ctx, s.db, id.Address)
		if err != nil {
			return domain.Decision{}, fmt.Errorf("%w: count address usage: %v", domain.ErrBackendUnavailable, err)
		}
		return anonymousDecision(policy.IPFreeLimit, used), nil
	}

	balance, err := s.repo.GetBalance(ctx, s.db, id.AccountID)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("%w: get balance: %v", domain.ErrBackendUnavailable, err)
	}

	paid := 0
	if balance != nil {
		paid = balance.PaidBalance
	} else {
		// First contact grants the welcome credits even on a read.
		paid = policy.WelcomeCredits
	}

	used, err := s.countToday(ctx, id.AccountID)
	if err != nil {
		return domain.Decision{}, err
	}

	freeLeft := policy.DailyFreeLimit - int(used)
	if freeLeft < 0 {
		freeLeft = 0
	}
	remaining := freeLeft + paid
	return domain.Decision{
		Allowed:   remaining > 0,
		Tier:      tierFor(freeLeft, paid),
		Remaining: remaining,
	}, nil
}

func (s *Service) consumeAccount(ctx context.Context, accountID string) (domain.Decision, error) {
	policy := s.policy.Get()
	now := s.clock.Now()

	balance, err := s.repo.GetBalance(ctx, s.db, accountID)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("%w: get balance: %v", domain.ErrBackendUnavailable, err)
	}

	if balance == nil {
		created, err := s.repo.CreateBalance(ctx, s.db, &ledgerdomain.CreditBalance{
			AccountID:   accountID,
			PaidBalance: policy.WelcomeCredits,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return domain.Decision{}, fmt.Errorf("%w: create balance: %v", domain.ErrBackendUnavailable, err)
		}
		if created {
			s.log.Info("welcome credits granted", zap.String("account_id", accountID))
			return domain.Decision{
				Allowed:   true,
				Tier:      domain.TierFree,
				Remaining: policy.DailyFreeLimit - 1 + policy.WelcomeCredits,
			}, nil
		}
		// Lost the insert race; the other request created the row.
		balance, err = s.repo.GetBalance(ctx, s.db, accountID)
		if err != nil || balance == nil {
			return domain.Decision{}, fmt.Errorf("%w: reread balance: %v", domain.ErrBackendUnavailable, err)
		}
	}

	used, err := s.countToday(ctx, accountID)
	if err != nil {
		return domain.Decision{}, err
	}

	if int(used) < policy.DailyFreeLimit {
		return domain.Decision{
			Allowed:   true,
			Tier:      domain.TierFree,
			Remaining: policy.DailyFreeLimit - int(used) - 1 + balance.PaidBalance,
		}, nil
	}

	if balance.PaidBalance > 0 {
		spent, err := s.repo.SpendCredit(ctx, s.db, accountID, now)
		if err != nil {
			return domain.Decision{}, fmt.Errorf("%w: spend credit: %v", domain.ErrBackendUnavailable, err)
		}
		if spent {
			return domain.Decision{
				Allowed:   true,
				Tier:      domain.TierPaid,
				Remaining: balance.PaidBalance - 1,
			}, nil
		}
		// Raced to zero between the read and the decrement.
	}

	s.metrics.RecordQuotaDenied(ctx, string(identity.KindAccount))
	return domain.Decision{Tier: domain.TierFree}, nil
}

func (s *Service) consumeAnonymous(ctx context.Context, address string) (domain.Decision, error) {
	policy := s.policy.Get()

	used, err := s.repo.CountUsageByAddress(ctx, s.db, address)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("%w: count address usage: %v", domain.ErrBackendUnavailable, err)
	}

	if int(used) >= policy.IPFreeLimit {
		s.metrics.RecordQuotaDenied(ctx, string(identity.KindAnonymousIP))
		return domain.Decision{Tier: domain.TierAnonymous}, nil
	}

	return domain.Decision{
		Allowed:   true,
		Tier:      domain.TierAnonymous,
		Remaining: policy.IPFreeLimit - int(used) - 1,
	}, nil
}

// countToday counts usage rows since the start of the current UTC day. The
// count is always derived from the log, never cached in a column.
func (s *Service) countToday(ctx context.Context, accountID string) (int64, error) {
	now := s.clock.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	used, err := s.repo.CountUsageByAccount(ctx, s.db, accountID, &dayStart)
	if err != nil {
		return 0, fmt.Errorf("%w: count account usage: %v", domain.ErrBackendUnavailable, err)
	}
	return used, nil
}

func anonymousDecision(limit int, used int64) domain.Decision {
	remaining := limit - int(used)
	if remaining < 0 {
		remaining = 0
	}
	return domain.Decision{
		Allowed:   remaining > 0,
		Tier:      domain.TierAnonymous,
		Remaining: remaining,
	}
}

func tierFor(freeLeft, paid int) domain.Tier {
	if freeLeft == 0 && paid > 0 {
		return domain.TierPaid
	}
	return domain.TierFree
}
