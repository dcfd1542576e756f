package auth

import (
	"testing"
	"time"
)

func TestIssueAndRedeem(t *testing.T) {
	m := New(time.Minute)

	token, err := m.Issue(0, "10.0.0.1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(token.Token) != 64 {
		t.Errorf("token length: got %d, want 64", len(token.Token))
	}
	if got := token.ExpiresAt.Sub(token.CreatedAt); got != time.Minute {
		t.Errorf("lifetime: got %v, want 1m", got)
	}

	if err := m.Redeem(token.Token); err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if err := m.Redeem(token.Token); err == nil {
		t.Error("Redeem: token should be single-use")
	}

	m.Release(token.Token)
	if err := m.Redeem(token.Token); err != nil {
		t.Errorf("Redeem after Release: %v", err)
	}
}

func TestRedeemUnknownAndRevoked(t *testing.T) {
	m := New(time.Minute)
	if err := m.Redeem("nope"); err == nil {
		t.Error("Redeem: expected error for unknown token")
	}

	token, err := m.Issue(0, "")
	if err != nil {
		t.Fatal(err)
	}
	m.Revoke(token.Token)
	if err := m.Redeem(token.Token); err == nil {
		t.Error("Redeem: expected error for revoked token")
	}
}

func TestIssueCapsExpiry(t *testing.T) {
	m := New(time.Minute)
	token, err := m.Issue(24*time.Hour, "")
	if err != nil {
		t.Fatal(err)
	}
	if got := token.ExpiresAt.Sub(token.CreatedAt); got != 10*time.Minute {
		t.Errorf("lifetime: got %v, want 10m cap", got)
	}
}

func TestExpiredTokens(t *testing.T) {
	m := New(time.Minute)
	token, err := m.Issue(time.Nanosecond, "")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)

	if err := m.Redeem(token.Token); err == nil {
		t.Error("Redeem: expected error for expired token")
	}

	// Issuing sweeps expired entries
	if _, err := m.Issue(0, ""); err != nil {
		t.Fatal(err)
	}
	if m.Count() != 1 {
		t.Errorf("Count: got %d, want 1", m.Count())
	}
}

func TestRedeemedTokenSurvivesSweepUntilReleased(t *testing.T) {
	m := New(time.Minute)
	token, err := m.Issue(0, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Redeem(token.Token); err != nil {
		t.Fatal(err)
	}

	// Another client issuing a token sweeps while the upload is in flight
	if _, err := m.Issue(0, ""); err != nil {
		t.Fatal(err)
	}
	if m.Count() != 2 {
		t.Fatalf("Count: got %d, want 2", m.Count())
	}

	m.Release(token.Token)
	if err := m.Redeem(token.Token); err != nil {
		t.Errorf("Redeem after Release: %v", err)
	}
}

func TestRedeemedTokenSweptAfterGrace(t *testing.T) {
	m := New(time.Minute)
	token, err := m.Issue(0, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Redeem(token.Token); err != nil {
		t.Fatal(err)
	}
	m.mu.Lock()
	m.tokens[token.Token].UsedAt = time.Now().Add(-2 * time.Minute)
	m.mu.Unlock()

	if _, err := m.Issue(0, ""); err != nil {
		t.Fatal(err)
	}
	if m.Count() != 1 {
		t.Errorf("Count: got %d, want 1", m.Count())
	}
}
