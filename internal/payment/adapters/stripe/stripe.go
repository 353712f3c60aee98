package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/themeleon/themeleon/internal/clock"
	"github.com/themeleon/themeleon/internal/config"
	"github.com/themeleon/themeleon/internal/payment/domain"
)

type Adapter struct {
	secret []byte
	clock  clock.Clock
	policy *config.PolicyHolder
}

func NewAdapter(webhookSecret string, clk clock.Clock, policy *config.PolicyHolder) *Adapter {
	return &Adapter{
		secret: []byte(strings.TrimSpace(webhookSecret)),
		clock:  clk,
		policy: policy,
	}
}

// Verify checks the Stripe-Signature header: a fresh timestamp and a valid
// HMAC-SHA256 of "{t}.{payload}" under the webhook secret.
func (a *Adapter) Verify(payload []byte, headers http.Header) error {
	if len(a.secret) == 0 {
		return config.ErrMisconfigured
	}

	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return domain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return domain.ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return domain.ErrInvalidSignature
	}
	window := a.policy.Get().ReplayWindow
	age := a.clock.Now().Sub(time.Unix(ts, 0).UTC())
	if age > window || age < -window {
		return domain.ErrReplayedSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, a.secret)
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return domain.ErrInvalidSignature
}

// Parse extracts the checkout completion. Everything but a paid
// checkout.session.completed is reported as ignored.
func (a *Adapter) Parse(payload []byte) (*domain.CheckoutEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.Type) != "checkout.session.completed" {
		return nil, domain.ErrEventIgnored
	}

	var session stripeSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, domain.ErrInvalidPayload
	}
	if session.PaymentStatus != "paid" {
		return nil, domain.ErrPaymentIncomplete
	}

	accountID := strings.TrimSpace(session.Metadata["user_id"])
	if accountID == "" {
		accountID = strings.TrimSpace(session.ClientReferenceID)
	}
	if accountID == "" {
		return nil, domain.ErrNoAccount
	}

	return &domain.CheckoutEvent{
		EventID:       event.ID,
		SessionID:     session.ID,
		AccountID:     accountID,
		PaymentStatus: session.PaymentStatus,
		OccurredAt:    occurredAt(event.Created, a.clock),
		RawPayload:    payload,
	}, nil
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeSession struct {
	ID                string            `json:"id"`
	PaymentStatus     string            `json:"payment_status"`
	ClientReferenceID string            `json:"client_reference_id"`
	CustomerEmail     string            `json:"customer_email"`
	Metadata          map[string]string `json:"metadata"`
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func occurredAt(created int64, clk clock.Clock) time.Time {
	if created == 0 {
		return clk.Now()
	}
	return time.Unix(created, 0).UTC()
}
