package server

import (
	"testing"
	"time"

	entdomain "github.com/themeleon/themeleon/internal/entitlement/domain"
)

func TestQuotaCacheExpiresEntries(t *testing.T) {
	cache := newQuotaCache(time.Nanosecond)
	cache.Set("203.0.113.9", entdomain.Decision{Allowed: true, Remaining: 2})

	time.Sleep(time.Millisecond)
	if _, ok := cache.Get("203.0.113.9"); ok {
		t.Fatal("expected entry expired after ttl")
	}
}

func TestQuotaCacheInvalidateNotifiesSubscribers(t *testing.T) {
	cache := newQuotaCache(time.Minute)
	cache.Set("203.0.113.9", entdomain.Decision{Allowed: true, Remaining: 2})

	var notified []string
	cache.Subscribe(func(address string) {
		notified = append(notified, address)
	})

	cache.Invalidate("203.0.113.9")

	if _, ok := cache.Get("203.0.113.9"); ok {
		t.Fatal("expected entry dropped on invalidate")
	}
	if len(notified) != 1 || notified[0] != "203.0.113.9" {
		t.Fatalf("expected subscriber notified once with the address, got %v", notified)
	}
}

func TestQuotaCacheInvalidateUnknownAddress(t *testing.T) {
	cache := newQuotaCache(time.Minute)

	fired := 0
	cache.Subscribe(func(string) { fired++ })

	cache.Invalidate("198.51.100.7")
	if fired != 1 {
		t.Fatalf("expected subscriber fired even without a cached entry, got %d", fired)
	}
}
