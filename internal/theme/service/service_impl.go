package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/themeleon/themeleon/internal/clock"
	"github.com/themeleon/themeleon/internal/config"
	entdomain "github.com/themeleon/themeleon/internal/entitlement/domain"
	ledgerdomain "github.com/themeleon/themeleon/internal/ledger/domain"
	"github.com/themeleon/themeleon/internal/observability/metrics"
	"github.com/themeleon/themeleon/internal/theme/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// UsageRecorder is the asynchronous usage sink; Enqueue must never block.
type UsageRecorder interface {
	Enqueue(record *ledgerdomain.GenerationRecord) bool
}

type Params struct {
	fx.In

	Log         *zap.Logger
	Generator   domain.Generator
	Entitlement entdomain.Service
	Recorder    UsageRecorder
	Clock       clock.Clock
	Policy      *config.PolicyHolder
	Metrics     *metrics.Metrics
}

type Service struct {
	log         *zap.Logger
	generator   domain.Generator
	entitlement entdomain.Service
	recorder    UsageRecorder
	clock       clock.Clock
	policy      *config.PolicyHolder
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("theme.service"),
		generator:   p.Generator,
		entitlement: p.Entitlement,
		recorder:    p.Recorder,
		clock:       p.Clock,
		policy:      p.Policy,
		metrics:     p.Metrics,
	}
}

// Generate runs the full pipeline: validate, consume quota, call the
// provider, then log usage off the response path. The quota is consumed
// before the provider call so a denied caller never reaches Gemini.
func (s *Service) Generate(ctx context.Context, req domain.GenerateRequest) (*domain.Theme, error) {
	policy := s.policy.Get()

	// The limit is characters, not bytes, so multibyte descriptions are
	// measured the same way the client measures them.
	description := strings.TrimSpace(req.Description)
	if description == "" || utf8.RuneCountInString(description) > policy.MaxDescriptionLen {
		return nil, domain.ErrInvalidDescription
	}

	decision, err := s.entitlement.Consume(ctx, req.Identity)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, domain.ErrQuotaExceeded
	}

	genCtx, cancel := context.WithTimeout(ctx, policy.ProviderTimeout)
	defer cancel()

	theme, err := s.generator.Generate(genCtx, description)
	if err != nil {
		return nil, err
	}

	record := &ledgerdomain.GenerationRecord{
		IPAddress: req.Identity.Address,
		Prompt:    description,
		CreatedAt: s.clock.Now(),
	}
	if req.Identity.IsAccount() {
		accountID := req.Identity.AccountID
		record.AccountID = &accountID
	}
	s.recorder.Enqueue(record)

	s.metrics.RecordGeneration(ctx, string(decision.Tier))
	s.log.Info("theme generated",
		zap.String("identity", req.Identity.Label()),
		zap.String("tier", string(decision.Tier)),
		zap.Int("remaining", decision.Remaining))

	return theme, nil
}
