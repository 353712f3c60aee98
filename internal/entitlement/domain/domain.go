package domain

import (
	"context"
	"errors"

	"github.com/themeleon/themeleon/internal/identity"
)

// ErrBackendUnavailable signals a ledger read or write failure. Quota
// decisions are never guessed when the ledger cannot answer.
var ErrBackendUnavailable = errors.New("quota backend unavailable")

type Tier string

const (
	TierFree      Tier = "free"
	TierPaid      Tier = "paid"
	TierAnonymous Tier = "anonymous"
)

// Decision is the outcome of a quota check. Denied is a value, not an
// error; errors mean the ledger could not be consulted.
type Decision struct {
	Allowed   bool `json:"allowed"`
	Tier      Tier `json:"tier"`
	Remaining int  `json:"remaining"`
}

type Service interface {
	// Consume decides whether the caller may generate right now and, for
	// the paid tier, spends the credit as part of the decision.
	Consume(ctx context.Context, id identity.Identity) (Decision, error)

	// Preview reports the current allowance without mutating anything.
	Preview(ctx context.Context, id identity.Identity) (Decision, error)
}
