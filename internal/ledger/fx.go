package ledger

import (
	"github.com/themeleon/themeleon/internal/ledger/recorder"
	"github.com/themeleon/themeleon/internal/ledger/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger",
	fx.Provide(repository.Provide),
	fx.Provide(recorder.New),
)
