package jwtauth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the complete engine configuration. Start from [DefaultConfig]
// and override fields; [Builder.Build] validates it.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Security SecurityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds token lifetimes and signing keys. Keys are copied at
// build time; mutating the slices afterwards has no effect.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	RequireIAT    bool
	MaxFutureIAT  time.Duration

	// KeyID is the kid stamped on issued tokens. VerifyKeys may keep the
	// previous kid so tokens signed before a key rotation still verify.
	KeyID      string
	VerifyKeys map[string][]byte
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the Redis session store.
type SessionConfig struct {
	RedisPrefix             string
	AbsoluteSessionLifetime time.Duration
	StoreTimeout            time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds throttling and replay-detection settings.
//
// RevokeChainOnReuse ends a session chain when one of its retired refresh
// tokens is presented again, logging out the holder of the latest token.
type SecurityConfig struct {
	ProductionMode               bool
	EnableIPThrottle             bool
	EnableRefreshThrottle        bool
	EnforceRefreshReuseDetection bool
	RevokeChainOnReuse           bool
	MaxLoginAttempts             int
	LoginCooldownDuration        time.Duration
	MaxRefreshAttempts           int
	RefreshCooldownDuration      time.Duration
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a development-friendly configuration. Signing keys
// must still be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     5 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "ed25519",
			MaxFutureIAT:  10 * time.Minute,
		},
		Session: SessionConfig{
			RedisPrefix:             "ja",
			AbsoluteSessionLifetime: 30 * 24 * time.Hour,
			StoreTimeout:            500 * time.Millisecond,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			ProductionMode:               false,
			EnableIPThrottle:             false,
			EnableRefreshThrottle:        true,
			EnforceRefreshReuseDetection: true,
			RevokeChainOnReuse:           true,
			MaxLoginAttempts:             5,
			LoginCooldownDuration:        15 * time.Minute,
			MaxRefreshAttempts:           20,
			RefreshCooldownDuration:      time.Minute,
		},
	}
}

// HighSecurityConfig tightens DefaultConfig for internet-facing deployments.
func HighSecurityConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessTTL = 5 * time.Minute
	cfg.JWT.RefreshTTL = 24 * time.Hour
	cfg.JWT.RequireIAT = true
	cfg.Session.AbsoluteSessionLifetime = 7 * 24 * time.Hour
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.Security.ProductionMode = true
	cfg.Security.EnableIPThrottle = true
	cfg.Security.MaxLoginAttempts = 5
	cfg.Security.MaxRefreshAttempts = 10
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error found. Key material is
// checked again, in detail, when the token codec is built.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be greater than AccessTTL")
	}

	switch c.JWT.SigningMethod {
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
	case "hs256":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 PrivateKey must be at least 256 bits (32 bytes)")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}

	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.MaxFutureIAT < 0 || c.JWT.MaxFutureIAT > 24*time.Hour {
		return errors.New("JWT MaxFutureIAT must be between 0 and 24h")
	}
	if c.JWT.Issuer != "" && strings.TrimSpace(c.JWT.Issuer) == "" {
		return errors.New("JWT Issuer must not be blank")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}
	if c.JWT.KeyID != "" && strings.TrimSpace(c.JWT.KeyID) != c.JWT.KeyID {
		return errors.New("JWT KeyID must not contain surrounding whitespace")
	}
	if len(c.JWT.VerifyKeys) > 0 && c.JWT.KeyID == "" {
		return errors.New("JWT VerifyKeys requires KeyID")
	}

	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if strings.ContainsAny(c.Session.RedisPrefix, " :") {
		return errors.New("Session RedisPrefix must not contain spaces or ':'")
	}
	if c.Session.AbsoluteSessionLifetime < 0 {
		return errors.New("Session AbsoluteSessionLifetime must be >= 0")
	}
	if c.Session.StoreTimeout <= 0 {
		return errors.New("Session StoreTimeout must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Security
	if c.Security.MaxLoginAttempts < 0 {
		return errors.New("Security MaxLoginAttempts must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0 when MaxLoginAttempts is set")
	}
	if c.Security.EnableRefreshThrottle {
		if c.Security.MaxRefreshAttempts <= 0 {
			return errors.New("Security MaxRefreshAttempts must be > 0 when EnableRefreshThrottle is true")
		}
		if c.Security.RefreshCooldownDuration <= 0 {
			return errors.New("Security RefreshCooldownDuration must be > 0 when EnableRefreshThrottle is true")
		}
	}

	if c.Security.ProductionMode {
		if err := c.validateProduction(); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateProduction() error {
	if c.Security.MaxLoginAttempts == 0 {
		return errors.New("ProductionMode requires login throttling (MaxLoginAttempts > 0)")
	}
	if !c.Security.EnforceRefreshReuseDetection {
		return errors.New("ProductionMode requires EnforceRefreshReuseDetection")
	}
	if c.JWT.AccessTTL > time.Hour {
		return fmt.Errorf("ProductionMode AccessTTL must be <= 1h, got %s", c.JWT.AccessTTL)
	}
	return nil
}
