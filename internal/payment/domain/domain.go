package domain

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrReplayedSignature = errors.New("webhook timestamp outside tolerance")
	ErrInvalidPayload    = errors.New("invalid webhook payload")

	// ErrEventIgnored marks event types the service deliberately does not
	// act on. Stripe still gets a 200 so it stops retrying.
	ErrEventIgnored = errors.New("event ignored")

	// ErrPaymentIncomplete is a checkout completion whose payment_status
	// is not "paid" yet. Acknowledged without crediting.
	ErrPaymentIncomplete = errors.New("payment not completed")

	// ErrNoAccount means the session carried neither metadata.user_id nor
	// client_reference_id.
	ErrNoAccount = errors.New("no account id in session")

	// ErrAlreadyProcessed means this session id was credited before.
	ErrAlreadyProcessed = errors.New("session already processed")

	// ErrAccountNotFound means the ledger has no balance row for the
	// paying account, which points at an upstream inconsistency.
	ErrAccountNotFound = errors.New("account not found")
)

// CheckoutEvent is a verified, parsed checkout completion.
type CheckoutEvent struct {
	EventID       string
	SessionID     string
	AccountID     string
	PaymentStatus string
	OccurredAt    time.Time
	RawPayload    []byte
}

// Adapter verifies and decodes provider webhooks.
type Adapter interface {
	Verify(payload []byte, headers http.Header) error
	Parse(payload []byte) (*CheckoutEvent, error)
}

type Service interface {
	// ProcessEvent verifies, parses and credits a webhook delivery.
	// Crediting happens at most once per session id.
	ProcessEvent(ctx context.Context, payload []byte, headers http.Header) error
}
