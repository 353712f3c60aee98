package domain

import (
	"context"
	"errors"

	"github.com/themeleon/themeleon/internal/identity"
)

var (
	// ErrInvalidDescription rejects an empty or oversized description
	// before any quota or provider work happens.
	ErrInvalidDescription = errors.New("invalid theme description")

	// ErrQuotaExceeded is the business denial; the ledger was consulted
	// and said no.
	ErrQuotaExceeded = errors.New("generation quota exceeded")

	// ErrRateLimited maps the provider's own 429 back to the caller.
	ErrRateLimited = errors.New("provider rate limit reached")

	// ErrProviderFailed covers empty, unparseable or incomplete provider
	// output as well as upstream 5xx.
	ErrProviderFailed = errors.New("provider failed")
)

// TokenColorSettings styles one syntax scope group.
type TokenColorSettings struct {
	Foreground string `json:"foreground,omitempty"`
	FontStyle  string `json:"fontStyle,omitempty"`
}

type TokenColor struct {
	Name     string             `json:"name"`
	Scope    []string           `json:"scope"`
	Settings TokenColorSettings `json:"settings"`
}

// Theme is a complete editor color theme as returned to the client.
type Theme struct {
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Colors      map[string]string `json:"colors"`
	TokenColors []TokenColor      `json:"tokenColors"`
}

// Normalize coerces unknown theme types to "dark" rather than failing,
// matching what clients expect when the model drifts.
func (t *Theme) Normalize() {
	if t.Type != "dark" && t.Type != "light" {
		t.Type = "dark"
	}
}

// Validate reports whether the provider returned all required sections.
func (t *Theme) Validate() error {
	if t.Name == "" || t.Type == "" || len(t.Colors) == 0 || len(t.TokenColors) == 0 {
		return ErrProviderFailed
	}
	return nil
}

// Generator produces a theme from a free-form description.
type Generator interface {
	Generate(ctx context.Context, description string) (*Theme, error)
}

type GenerateRequest struct {
	Description string
	Identity    identity.Identity
}

type Service interface {
	Generate(ctx context.Context, req GenerateRequest) (*Theme, error)
}
