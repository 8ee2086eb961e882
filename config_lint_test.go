package jwtauth

import (
	"testing"
	"time"
)

func TestLint_DefaultConfigNoHighWarnings(t *testing.T) {
	// Default config is non-production, so informational codes are
	// expected, but nothing HIGH.
	cfg := DefaultConfig()
	ws := cfg.Lint()

	codes := ws.Codes()

	if containsCode(codes, "rate_limits_disabled") {
		t.Error("default config should not have rate_limits_disabled (refresh throttle is on)")
	}
	if !containsCode(codes, "ip_throttle_disabled") {
		t.Error("default config leaves IP throttling off")
	}
}

func TestLint_HighSecurityConfigMinimalWarnings(t *testing.T) {
	cfg := HighSecurityConfig()
	ws := cfg.Lint()
	codes := ws.Codes()

	unwanted := []string{
		"leeway_large",
		"access_ttl_long",
		"refresh_ttl_long",
		"rate_limits_disabled",
		"ip_throttle_disabled",
		"reuse_detection_disabled",
		"reuse_keeps_chain",
		"session_shorter_than_refresh",
		"audit_disabled",
	}
	for _, code := range unwanted {
		if containsCode(codes, code) {
			t.Errorf("HighSecurityConfig should not produce warning %q", code)
		}
	}
}

func TestLint_Codes(t *testing.T) {
	tests := []struct {
		code   string
		mutate func(*Config)
	}{
		{"leeway_large", func(c *Config) { c.JWT.Leeway = 90 * time.Second }},
		{"access_ttl_long", func(c *Config) { c.JWT.AccessTTL = 15 * time.Minute }},
		{"refresh_ttl_long", func(c *Config) { c.JWT.RefreshTTL = 30 * 24 * time.Hour }},
		{"signing_hs256", func(c *Config) { c.JWT.SigningMethod = "hs256" }},
		{"reuse_detection_disabled", func(c *Config) { c.Security.EnforceRefreshReuseDetection = false }},
		{"reuse_keeps_chain", func(c *Config) { c.Security.RevokeChainOnReuse = false }},
		{"session_unbounded", func(c *Config) { c.Session.AbsoluteSessionLifetime = 0 }},
		{"audit_disabled", func(c *Config) { c.Audit.Enabled = false }},
		{"store_timeout_long", func(c *Config) { c.Session.StoreTimeout = 5 * time.Second }},
		{"session_shorter_than_refresh", func(c *Config) {
			c.Session.AbsoluteSessionLifetime = time.Hour
			c.JWT.RefreshTTL = 7 * 24 * time.Hour
		}},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if !containsCode(cfg.Lint().Codes(), tc.code) {
				t.Errorf("expected %s warning", tc.code)
			}
		})
	}
}

func TestLint_AllRateLimitsDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Security.MaxLoginAttempts = 0
	cfg.Security.EnableRefreshThrottle = false
	ws := cfg.Lint()
	if !containsCode(ws.Codes(), "rate_limits_disabled") {
		t.Error("expected rate_limits_disabled warning")
	}
	for _, w := range ws {
		if w.Code == "rate_limits_disabled" && w.Severity != LintHigh {
			t.Errorf("rate_limits_disabled should be HIGH, got %s", w.Severity)
		}
	}
}

func TestLint_AsError(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Lint().AsError(LintHigh); err != nil {
		t.Errorf("default config should not fail AsError(LintHigh): %v", err)
	}

	cfg.Security.MaxLoginAttempts = 0
	cfg.Security.EnableRefreshThrottle = false
	if err := cfg.Lint().AsError(LintHigh); err == nil {
		t.Error("expected AsError(LintHigh) to return error with throttling off")
	}
}

func TestLint_BySeverity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Security.MaxLoginAttempts = 0
	cfg.Security.EnableRefreshThrottle = false
	ws := cfg.Lint()

	high := ws.BySeverity(LintHigh)
	if len(high) == 0 {
		t.Error("expected at least one HIGH severity warning")
	}
	for _, w := range high {
		if w.Severity < LintHigh {
			t.Errorf("BySeverity(LintHigh) returned warning with severity %s", w.Severity)
		}
	}
}

// helpers

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
