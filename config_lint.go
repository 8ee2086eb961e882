package jwtauth

import (
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks configuration warnings.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("LintSeverity(%d)", int(s))
	}
}

// LintWarning is a valid but questionable configuration choice.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the list of warnings produced by [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError returns an error listing every warning at or above min, or nil.
func (r LintResult) AsError(min LintSeverity) error {
	hits := r.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	parts := make([]string, 0, len(hits))
	for _, w := range hits {
		parts = append(parts, fmt.Sprintf("%s[%s]: %s", w.Code, w.Severity, w.Message))
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, "; "))
}

// Lint reports settings that pass Validate but weaken the deployment.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.JWT.Leeway > 30*time.Second {
		add("leeway_large", LintWarn, "JWT leeway above 30s extends every token's effective lifetime")
	}
	if c.JWT.AccessTTL > 10*time.Minute {
		add("access_ttl_long", LintWarn, "access tokens cannot be revoked; keep AccessTTL short")
	}
	if c.JWT.RefreshTTL > 14*24*time.Hour {
		add("refresh_ttl_long", LintInfo, "refresh tokens live longer than two weeks")
	}
	if c.JWT.SigningMethod == "hs256" {
		add("signing_hs256", LintInfo, "hs256 shares the signing secret with every verifier")
	}
	if c.Security.MaxLoginAttempts == 0 && !c.Security.EnableRefreshThrottle {
		add("rate_limits_disabled", LintHigh, "login and refresh throttling are both disabled")
	}
	if !c.Security.EnableIPThrottle {
		add("ip_throttle_disabled", LintInfo, "failed logins are only throttled per principal")
	}
	if !c.Security.EnforceRefreshReuseDetection {
		add("reuse_detection_disabled", LintWarn, "replayed refresh tokens are rejected but not recorded")
	}
	if !c.Security.RevokeChainOnReuse {
		add("reuse_keeps_chain", LintWarn, "a replayed refresh token leaves the latest token of its chain valid")
	}
	if c.Session.AbsoluteSessionLifetime > 0 && c.Session.AbsoluteSessionLifetime < c.JWT.RefreshTTL {
		add("session_shorter_than_refresh", LintWarn, "refresh tokens are cut short by AbsoluteSessionLifetime")
	}
	if c.Session.AbsoluteSessionLifetime == 0 {
		add("session_unbounded", LintWarn, "a session chain can be refreshed forever")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "rejected tokens are only visible in logs")
	}
	if c.Session.StoreTimeout > 2*time.Second {
		add("store_timeout_long", LintWarn, "a slow store holds refresh and logout callers for over 2s")
	}

	return ws
}
