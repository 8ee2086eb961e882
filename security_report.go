package jwtauth

import "time"

// SecurityReport summarizes the security-relevant settings an Engine was
// built with. It carries no key material.
type SecurityReport struct {
	ProductionMode               bool
	SigningAlgorithm             string
	KeyID                        string
	VerifyKeyCount               int
	AccessTTL                    time.Duration
	RefreshTTL                   time.Duration
	AbsoluteSessionLifetime      time.Duration
	StoreTimeout                 time.Duration
	RefreshRotationEnabled       bool
	RefreshReuseDetectionEnabled bool
	ChainRevokedOnReuse          bool
	RateLimitingActive           bool
	IPThrottleActive             bool
	AuditEnabled                 bool
	LintWarnings                 []string
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	rateLimiting := e.config.Security.MaxLoginAttempts > 0 &&
		e.config.Security.LoginCooldownDuration > 0

	return SecurityReport{
		ProductionMode:               e.config.Security.ProductionMode,
		SigningAlgorithm:             e.codec.Algorithm(),
		KeyID:                        e.config.JWT.KeyID,
		VerifyKeyCount:               len(e.config.JWT.VerifyKeys),
		AccessTTL:                    e.config.JWT.AccessTTL,
		RefreshTTL:                   e.config.JWT.RefreshTTL,
		AbsoluteSessionLifetime:      e.config.Session.AbsoluteSessionLifetime,
		StoreTimeout:                 e.config.Session.StoreTimeout,
		RefreshRotationEnabled:       true,
		RefreshReuseDetectionEnabled: e.config.Security.EnforceRefreshReuseDetection,
		ChainRevokedOnReuse:          e.config.Security.RevokeChainOnReuse,
		RateLimitingActive:           rateLimiting || e.config.Security.EnableRefreshThrottle,
		IPThrottleActive:             e.config.Security.EnableIPThrottle && rateLimiting,
		AuditEnabled:                 e.config.Audit.Enabled,
		LintWarnings:                 e.config.Lint().Codes(),
	}
}
