package checkout

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/themeleon/themeleon/internal/config"
	"go.uber.org/zap"
)

func testConfig() config.Config {
	return config.Config{
		StripeSecretKey: "sk_test_123",
		StripePriceID:   "price_123",
		CheckoutOrigin:  "https://theme-leon.com",
	}
}

func TestCreateSessionSendsForm(t *testing.T) {
	var gotForm map[string]string
	var gotAuth string

	stripe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotForm = map[string]string{}
		for key := range r.PostForm {
			gotForm[key] = r.PostForm.Get(key)
		}
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://checkout.stripe.com/pay/cs_test_1"}`))
	}))
	defer stripe.Close()

	svc := NewWithEndpoint(Params{Cfg: testConfig(), Log: zap.NewNop()}, stripe.URL)

	sessionURL, err := svc.CreateSession(context.Background(), "acct-1", "user@example.com", "https://app.example.com")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sessionURL != "https://checkout.stripe.com/pay/cs_test_1" {
		t.Fatalf("unexpected session url %q", sessionURL)
	}

	if gotAuth != "Bearer sk_test_123" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	expected := map[string]string{
		"mode":                    "payment",
		"line_items[0][price]":    "price_123",
		"line_items[0][quantity]": "1",
		"success_url":             "https://app.example.com?payment=success",
		"cancel_url":              "https://app.example.com?payment=cancel",
		"metadata[user_id]":       "acct-1",
		"client_reference_id":     "acct-1",
		"customer_email":          "user@example.com",
	}
	for key, want := range expected {
		if gotForm[key] != want {
			t.Fatalf("form field %s: expected %q, got %q", key, want, gotForm[key])
		}
	}
}

func TestCreateSessionDefaultsOrigin(t *testing.T) {
	stripe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if !strings.HasPrefix(r.PostForm.Get("success_url"), "https://theme-leon.com") {
			t.Fatalf("expected default origin, got %q", r.PostForm.Get("success_url"))
		}
		_, _ = w.Write([]byte(`{"url":"https://checkout.stripe.com/pay/cs_test_2"}`))
	}))
	defer stripe.Close()

	svc := NewWithEndpoint(Params{Cfg: testConfig(), Log: zap.NewNop()}, stripe.URL)

	if _, err := svc.CreateSession(context.Background(), "acct-1", "", ""); err != nil {
		t.Fatalf("create session: %v", err)
	}
}

func TestCreateSessionUpstreamError(t *testing.T) {
	stripe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"No such price: price_123"}}`))
	}))
	defer stripe.Close()

	svc := NewWithEndpoint(Params{Cfg: testConfig(), Log: zap.NewNop()}, stripe.URL)

	_, err := svc.CreateSession(context.Background(), "acct-1", "", "")
	if !errors.Is(err, ErrSessionFailed) {
		t.Fatalf("expected ErrSessionFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "No such price") {
		t.Fatalf("expected upstream message carried, got %v", err)
	}
}

func TestCreateSessionNonJSONErrorCarriesStatus(t *testing.T) {
	stripe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>Bad Gateway</html>`))
	}))
	defer stripe.Close()

	svc := NewWithEndpoint(Params{Cfg: testConfig(), Log: zap.NewNop()}, stripe.URL)

	_, err := svc.CreateSession(context.Background(), "acct-1", "", "")
	if !errors.Is(err, ErrSessionFailed) {
		t.Fatalf("expected ErrSessionFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected upstream status in message, got %v", err)
	}
}

func TestCreateSessionMisconfigured(t *testing.T) {
	svc := New(Params{Cfg: config.Config{}, Log: zap.NewNop()})

	_, err := svc.CreateSession(context.Background(), "acct-1", "", "")
	if !errors.Is(err, config.ErrMisconfigured) {
		t.Fatalf("expected ErrMisconfigured, got %v", err)
	}
}
