package utils

import (
	"testing"
	"time"
)

func TestCooldownGate(t *testing.T) {
	gate := NewCooldownGate(60 * time.Second)
	start := time.Now()

	if !gate.Allow("g1:u1", start) {
		t.Fatalf("first attempt should pass")
	}
	if gate.Allow("g1:u1", start.Add(10*time.Second)) {
		t.Fatalf("attempt inside window should be denied")
	}
	if gate.Allow("g1:u1", start.Add(59*time.Second)) {
		t.Fatalf("attempt inside window should be denied")
	}
	if !gate.Allow("g1:u1", start.Add(60*time.Second)) {
		t.Fatalf("attempt at window edge should pass")
	}
}

func TestCooldownGateDeniedAttemptsDoNotResetClock(t *testing.T) {
	gate := NewCooldownGate(60 * time.Second)
	start := time.Now()

	gate.Allow("g1:u1", start)
	// A user posting every 10 seconds still earns a pass once per window.
	for i := 1; i < 6; i++ {
		if gate.Allow("g1:u1", start.Add(time.Duration(i*10)*time.Second)) {
			t.Fatalf("attempt at +%ds should be denied", i*10)
		}
	}
	if !gate.Allow("g1:u1", start.Add(61*time.Second)) {
		t.Fatalf("attempt after window should pass despite denied attempts")
	}
}

func TestCooldownGateIndependentKeys(t *testing.T) {
	gate := NewCooldownGate(60 * time.Second)
	now := time.Now()

	gate.Allow("g1:u1", now)
	if !gate.Allow("g1:u2", now) {
		t.Fatalf("different user should not share the cooldown")
	}
	if !gate.Allow("g2:u1", now) {
		t.Fatalf("different guild should not share the cooldown")
	}
}
