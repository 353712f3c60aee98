package theme

import (
	"context"

	"github.com/themeleon/themeleon/internal/config"
	"github.com/themeleon/themeleon/internal/ledger/recorder"
	"github.com/themeleon/themeleon/internal/theme/domain"
	"github.com/themeleon/themeleon/internal/theme/provider/gemini"
	"github.com/themeleon/themeleon/internal/theme/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("theme",
	fx.Provide(provideGenerator),
	fx.Provide(func(r *recorder.Recorder) service.UsageRecorder { return r }),
	fx.Provide(service.New),
)

// provideGenerator falls back to a generator that refuses every call when
// the API key is absent, so the rest of the server keeps working.
func provideGenerator(cfg config.Config, log *zap.Logger) (domain.Generator, error) {
	if cfg.GeminiAPIKey == "" {
		log.Warn("GEMINI_API_KEY not set, theme generation disabled")
		return unconfiguredGenerator{}, nil
	}
	return gemini.New(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, log)
}

type unconfiguredGenerator struct{}

func (unconfiguredGenerator) Generate(ctx context.Context, description string) (*domain.Theme, error) {
	return nil, config.ErrMisconfigured
}
