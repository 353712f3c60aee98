package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/themeleon/themeleon/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultEndpoint = "https://api.stripe.com/v1/checkout/sessions"

// ErrSessionFailed means Stripe refused to create the checkout session.
var ErrSessionFailed = errors.New("checkout session failed")

type Service interface {
	// CreateSession opens a single-item payment session and returns the
	// hosted checkout URL.
	CreateSession(ctx context.Context, accountID, email, origin string) (string, error)
}

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

type service struct {
	cfg      config.Config
	log      *zap.Logger
	endpoint string
	client   *http.Client
}

func New(p Params) Service {
	return &service{
		cfg:      p.Cfg,
		log:      p.Log.Named("checkout.service"),
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// NewWithEndpoint points the service at a fake Stripe, for tests.
func NewWithEndpoint(p Params, endpoint string) Service {
	svc := New(p).(*service)
	svc.endpoint = endpoint
	return svc
}

func (s *service) CreateSession(ctx context.Context, accountID, email, origin string) (string, error) {
	if s.cfg.StripeSecretKey == "" || s.cfg.StripePriceID == "" {
		return "", config.ErrMisconfigured
	}
	if strings.TrimSpace(origin) == "" {
		origin = s.cfg.CheckoutOrigin
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][price]", s.cfg.StripePriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", origin+"?payment=success")
	form.Set("cancel_url", origin+"?payment=cancel")
	form.Set("metadata[user_id]", accountID)
	form.Set("client_reference_id", accountID)
	if strings.TrimSpace(email) != "" {
		form.Set("customer_email", email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.StripeSecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error("checkout request failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrSessionFailed, err)
	}
	defer resp.Body.Close()

	var session struct {
		URL   string `json:"url"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("%w: unparseable response (status %d)", ErrSessionFailed, resp.StatusCode)
	}

	if resp.StatusCode >= 400 || session.URL == "" {
		message := fmt.Sprintf("session creation refused (status %d)", resp.StatusCode)
		if session.Error != nil && session.Error.Message != "" {
			message = session.Error.Message
		}
		s.log.Warn("checkout session refused",
			zap.Int("status", resp.StatusCode),
			zap.String("message", message))
		return "", fmt.Errorf("%w: %s", ErrSessionFailed, message)
	}

	s.log.Info("checkout session created", zap.String("account_id", accountID))
	return session.URL, nil
}

var Module = fx.Module("checkout",
	fx.Provide(New),
)
