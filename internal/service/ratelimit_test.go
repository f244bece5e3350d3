package service

import (
	"testing"
	"time"
)

// fakeNow returns a controllable clock for the limiter.
func fakeNow(tb *TokenBucket) *time.Time {
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tb.now = func() time.Time { return t }
	return &t
}

func TestTokenBucket_AllowsUpToCapacity(t *testing.T) {
	tb := NewTokenBucket(1, 3)
	defer tb.Stop()
	fakeNow(tb)

	for i := range 3 {
		if !tb.Allow("test-key") {
			t.Fatalf("request %d should be allowed (bucket not yet empty)", i+1)
		}
	}
	if tb.Allow("test-key") {
		t.Fatal("4th request should be denied (bucket empty)")
	}
}

func TestTokenBucket_DifferentKeysAreIndependent(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	defer tb.Stop()
	fakeNow(tb)

	if !tb.Allow("ip-a") {
		t.Fatal("ip-a first request should be allowed")
	}
	if tb.Allow("ip-a") {
		t.Fatal("ip-a second request should be denied")
	}
	if !tb.Allow("ip-b") {
		t.Fatal("ip-b first request should be allowed (independent bucket)")
	}
}

func TestTokenBucket_Refills(t *testing.T) {
	tb := NewTokenBucket(0.5, 2) // one token every two seconds
	defer tb.Stop()
	now := fakeNow(tb)

	tb.Allow("k")
	tb.Allow("k")
	if tb.Allow("k") {
		t.Fatal("bucket should be empty")
	}

	*now = now.Add(time.Second)
	if tb.Allow("k") {
		t.Fatal("half a token is not enough")
	}

	*now = now.Add(time.Second)
	if !tb.Allow("k") {
		t.Fatal("a full token should have refilled after two seconds")
	}

	*now = now.Add(time.Hour)
	for i := range 2 {
		if !tb.Allow("k") {
			t.Fatalf("request %d after long idle should be allowed", i+1)
		}
	}
	if tb.Allow("k") {
		t.Fatal("refill must not exceed capacity")
	}
}

func TestTokenBucket_ZeroRateNeverRefills(t *testing.T) {
	tb := NewTokenBucket(0, 2)
	defer tb.Stop()
	now := fakeNow(tb)

	tb.Allow("k")
	tb.Allow("k")
	*now = now.Add(24 * time.Hour)
	if tb.Allow("k") {
		t.Fatal("third request should be denied (no refill)")
	}
}

func TestTokenBucket_SweepDropsIdleBuckets(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	defer tb.Stop()
	now := fakeNow(tb)

	tb.Allow("idle")
	*now = now.Add(5 * time.Minute)
	tb.Allow("recent")
	*now = now.Add(6 * time.Minute)

	tb.sweep(10 * time.Minute)

	tb.mu.Lock()
	defer tb.mu.Unlock()
	if _, ok := tb.buckets["idle"]; ok {
		t.Error("idle bucket should be dropped")
	}
	if _, ok := tb.buckets["recent"]; !ok {
		t.Error("recent bucket should be kept")
	}
}
