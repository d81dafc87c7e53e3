package main

import (
	"testing"
	"time"

	"voice-platform/internal/auth"
	"voice-platform/internal/config"
)

func TestIssue(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour}
	now := time.Now()

	if _, err := issue(cfg, "", "operator", now); err == nil {
		t.Fatalf("expected missing user rejected")
	}
	if _, err := issue(cfg, "u1", "root", now); err == nil {
		t.Fatalf("expected unknown role rejected")
	}

	pair, err := issue(cfg, "u1", "viewer", now)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	m, _ := auth.NewManager(cfg)
	claims, err := m.Verify(pair.AccessToken, auth.TokenTypeAccess, now)
	if err != nil || claims.Role != "viewer" {
		t.Fatalf("expected verifiable viewer token, got %+v %v", claims, err)
	}
}
