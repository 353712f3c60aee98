package entitlement

import (
	"github.com/themeleon/themeleon/internal/entitlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("entitlement",
	fx.Provide(service.New),
)
