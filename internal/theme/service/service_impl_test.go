package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/themeleon/themeleon/internal/clock"
	"github.com/themeleon/themeleon/internal/config"
	entdomain "github.com/themeleon/themeleon/internal/entitlement/domain"
	"github.com/themeleon/themeleon/internal/identity"
	ledgerdomain "github.com/themeleon/themeleon/internal/ledger/domain"
	"github.com/themeleon/themeleon/internal/theme/domain"
	themeservice "github.com/themeleon/themeleon/internal/theme/service"
	"go.uber.org/zap"
)

type fakeGenerator struct {
	theme *domain.Theme
	err   error
	calls int
}

func (f *fakeGenerator) Generate(ctx context.Context, description string) (*domain.Theme, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := *f.theme
	return &out, nil
}

type fakeEntitlement struct {
	decision entdomain.Decision
	err      error
}

func (f *fakeEntitlement) Consume(ctx context.Context, id identity.Identity) (entdomain.Decision, error) {
	return f.decision, f.err
}

func (f *fakeEntitlement) Preview(ctx context.Context, id identity.Identity) (entdomain.Decision, error) {
	return f.decision, f.err
}

type captureRecorder struct {
	records []*ledgerdomain.GenerationRecord
}

func (c *captureRecorder) Enqueue(record *ledgerdomain.GenerationRecord) bool {
	c.records = append(c.records, record)
	return true
}

func validTheme() *domain.Theme {
	return &domain.Theme{
		Name:   "Midnight Garden",
		Type:   "dark",
		Colors: map[string]string{"editor.background": "#101418"},
		TokenColors: []domain.TokenColor{
			{Name: "Comment", Scope: []string{"comment"}, Settings: domain.TokenColorSettings{Foreground: "#5f6b7a", FontStyle: "italic"}},
		},
	}
}

func newService(gen domain.Generator, ent entdomain.Service, rec themeservice.UsageRecorder) domain.Service {
	return themeservice.New(themeservice.Params{
		Log:         zap.NewNop(),
		Generator:   gen,
		Entitlement: ent,
		Recorder:    rec,
		Clock:       clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)),
		Policy:      config.NewStaticPolicyHolder(config.DefaultPolicyConfig()),
	})
}

func TestGenerateRecordsUsage(t *testing.T) {
	gen := &fakeGenerator{theme: validTheme()}
	rec := &captureRecorder{}
	svc := newService(gen, &fakeEntitlement{decision: entdomain.Decision{Allowed: true, Tier: entdomain.TierFree, Remaining: 1}}, rec)

	theme, err := svc.Generate(context.Background(), domain.GenerateRequest{
		Description: "a calm dark theme with muted greens",
		Identity:    identity.Identity{Kind: identity.KindAccount, AccountID: "acct-1", Address: "203.0.113.9"},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if theme.Name != "Midnight Garden" {
		t.Fatalf("unexpected theme name %q", theme.Name)
	}
	if len(rec.records) != 1 {
		t.Fatalf("expected 1 usage record, got %d", len(rec.records))
	}
	record := rec.records[0]
	if record.AccountID == nil || *record.AccountID != "acct-1" {
		t.Fatalf("expected account id on record, got %+v", record)
	}
	if record.IPAddress != "203.0.113.9" {
		t.Fatalf("expected address on record, got %q", record.IPAddress)
	}
}

func TestGenerateDeniedSkipsProvider(t *testing.T) {
	gen := &fakeGenerator{theme: validTheme()}
	rec := &captureRecorder{}
	svc := newService(gen, &fakeEntitlement{decision: entdomain.Decision{Allowed: false}}, rec)

	_, err := svc.Generate(context.Background(), domain.GenerateRequest{
		Description: "anything",
		Identity:    identity.Identity{Kind: identity.KindAnonymousIP, Address: "203.0.113.9"},
	})
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("expected provider untouched on denial, got %d calls", gen.calls)
	}
	if len(rec.records) != 0 {
		t.Fatalf("expected no usage record on denial, got %d", len(rec.records))
	}
}

func TestGenerateRejectsInvalidDescription(t *testing.T) {
	gen := &fakeGenerator{theme: validTheme()}
	rec := &captureRecorder{}
	svc := newService(gen, &fakeEntitlement{decision: entdomain.Decision{Allowed: true}}, rec)

	cases := []string{"", "   ", strings.Repeat("x", 201), strings.Repeat("桜", 201)}
	for _, description := range cases {
		_, err := svc.Generate(context.Background(), domain.GenerateRequest{
			Description: description,
			Identity:    identity.Identity{Kind: identity.KindAnonymousIP, Address: "203.0.113.9"},
		})
		if !errors.Is(err, domain.ErrInvalidDescription) {
			t.Fatalf("description %q: expected ErrInvalidDescription, got %v", description, err)
		}
	}
	if gen.calls != 0 {
		t.Fatalf("expected provider untouched, got %d calls", gen.calls)
	}
}

func TestGenerateCountsDescriptionInRunes(t *testing.T) {
	gen := &fakeGenerator{theme: validTheme()}
	rec := &captureRecorder{}
	svc := newService(gen, &fakeEntitlement{decision: entdomain.Decision{Allowed: true, Tier: entdomain.TierFree}}, rec)

	// 200 runes but 600 bytes; must pass the length check.
	_, err := svc.Generate(context.Background(), domain.GenerateRequest{
		Description: strings.Repeat("桜", 200),
		Identity:    identity.Identity{Kind: identity.KindAnonymousIP, Address: "203.0.113.9"},
	})
	if err != nil {
		t.Fatalf("generate multibyte description: %v", err)
	}
	if gen.calls != 1 {
		t.Fatalf("expected provider called once, got %d", gen.calls)
	}
}

func TestGenerateProviderFailureWritesNoUsage(t *testing.T) {
	gen := &fakeGenerator{err: domain.ErrProviderFailed}
	rec := &captureRecorder{}
	svc := newService(gen, &fakeEntitlement{decision: entdomain.Decision{Allowed: true}}, rec)

	_, err := svc.Generate(context.Background(), domain.GenerateRequest{
		Description: "neon cyberpunk",
		Identity:    identity.Identity{Kind: identity.KindAnonymousIP, Address: "203.0.113.9"},
	})
	if !errors.Is(err, domain.ErrProviderFailed) {
		t.Fatalf("expected ErrProviderFailed, got %v", err)
	}
	if len(rec.records) != 0 {
		t.Fatalf("expected no usage record on provider failure, got %d", len(rec.records))
	}
}

func TestGenerateLedgerFailurePropagates(t *testing.T) {
	gen := &fakeGenerator{theme: validTheme()}
	rec := &captureRecorder{}
	svc := newService(gen, &fakeEntitlement{err: entdomain.ErrBackendUnavailable}, rec)

	_, err := svc.Generate(context.Background(), domain.GenerateRequest{
		Description: "anything",
		Identity:    identity.Identity{Kind: identity.KindAnonymousIP, Address: "203.0.113.9"},
	})
	if !errors.Is(err, entdomain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("expected provider untouched on ledger failure, got %d calls", gen.calls)
	}
}

func TestThemeNormalizeCoercesUnknownType(t *testing.T) {
	theme := validTheme()
	theme.Type = "solarized"
	theme.Normalize()
	if theme.Type != "dark" {
		t.Fatalf("expected unknown type coerced to dark, got %q", theme.Type)
	}

	theme.Type = "light"
	theme.Normalize()
	if theme.Type != "light" {
		t.Fatalf("expected light preserved, got %q", theme.Type)
	}
}
