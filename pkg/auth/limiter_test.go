package auth

import "testing"

func TestLimiterPoolConfiguredBurst(t *testing.T) {
	p := newLimiterPool(SecConfig{RPS: 1, Burst: 2})

	if !p.Allow("key1") || !p.Allow("key1") {
		t.Fatal("burst of 2 should admit two calls")
	}
	if p.Allow("key1") {
		t.Fatal("third call within the burst window should be denied")
	}
	// buckets are per key
	if !p.Allow("key2") {
		t.Fatal("fresh key should have its own budget")
	}
}

func TestLimiterPoolDefaults(t *testing.T) {
	p := newLimiterPool(SecConfig{})
	if p.rps != defaultLimiterRPS || p.burst != defaultLimiterBurst {
		t.Fatalf("defaults not applied: rps=%v burst=%d", p.rps, p.burst)
	}
	for i := 0; i < defaultLimiterBurst; i++ {
		if !p.Allow("k") {
			t.Fatalf("call %d within default burst denied", i)
		}
	}
	if p.Allow("k") {
		t.Fatal("call past default burst should be denied")
	}
}
