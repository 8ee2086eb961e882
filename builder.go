package jwtauth

import (
	"errors"
	"time"

	"github.com/MrEthical07/jwtauth/internal/rate"
	"github.com/MrEthical07/jwtauth/jwt"
	"github.com/MrEthical07/jwtauth/session"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. A Builder is single use: the second call
// to Build fails.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	identities     IdentityStore
	auditSink      AuditSink
	logger         *zap.Logger
	tracerProvider trace.TracerProvider
	now            func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the session store backend. The client should be built
// with ContextTimeoutEnabled so StoreTimeout bounds network reads.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithIdentityStore(store IdentityStore) *Builder {
	b.identities = store
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. Defaults to zap.NewNop.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithTracerProvider enables spans around engine operations.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithClock replaces time.Now for token validation, session expiry and
// audit timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. It performs no
// I/O.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.identities == nil {
		return nil, errors.New("identity store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tp := b.tracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}

	// -------- TOKEN CODEC --------
	codec, err := jwt.NewCodec(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		RequireIAT:    cfg.JWT.RequireIAT,
		MaxFutureIAT:  cfg.JWT.MaxFutureIAT,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	// -------- SESSION STORE --------
	store := session.NewStore(b.redis, session.Config{
		Prefix:           cfg.Session.RedisPrefix,
		Timeout:          cfg.Session.StoreTimeout,
		TTL:              cfg.JWT.RefreshTTL,
		AbsoluteLifetime: cfg.Session.AbsoluteSessionLifetime,
		Now:              now,
	})

	// -------- RATE LIMITER --------
	refreshAttempts := 0
	if cfg.Security.EnableRefreshThrottle {
		refreshAttempts = cfg.Security.MaxRefreshAttempts
	}
	limiter := rate.New(b.redis, rate.Config{
		Prefix:                  cfg.Session.RedisPrefix,
		Timeout:                 cfg.Session.StoreTimeout,
		EnableIPThrottle:        cfg.Security.EnableIPThrottle,
		MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
		LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
		MaxRefreshAttempts:      refreshAttempts,
		RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
	})

	engine := &Engine{
		config:       cfg,
		codec:        codec,
		sessionStore: store,
		rateLimiter:  limiter,
		identities:   b.identities,
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:      NewMetrics(cfg.Metrics),
		logger:       logger.Named("jwtauth"),
		tracer:       tp.Tracer(tracerName),
		now:          now,
	}
	engine.initFlowDeps()

	b.built = true

	return engine, nil
}
