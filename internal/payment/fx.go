package payment

import (
	"github.com/themeleon/themeleon/internal/clock"
	"github.com/themeleon/themeleon/internal/config"
	"github.com/themeleon/themeleon/internal/payment/adapters/stripe"
	"github.com/themeleon/themeleon/internal/payment/domain"
	"github.com/themeleon/themeleon/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(func(cfg config.Config, clk clock.Clock, policy *config.PolicyHolder) domain.Adapter {
		return stripe.NewAdapter(cfg.StripeWebhookSecret, clk, policy)
	}),
	fx.Provide(service.New),
)
