package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	internalaudit "github.com/MrEthical07/jwtauth/internal/audit"
	"github.com/MrEthical07/jwtauth/internal/flows"
	"github.com/MrEthical07/jwtauth/internal/rate"
	"github.com/MrEthical07/jwtauth/jwt"
	"github.com/MrEthical07/jwtauth/session"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Engine issues, rotates, revokes and verifies tokens. It is safe for
// concurrent use once returned by [Builder.Build].
type Engine struct {
	config       Config
	codec        *jwt.Codec
	sessionStore *session.Store
	rateLimiter  *rate.Limiter
	identities   IdentityStore
	flows        flows.Service
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	logger       *zap.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// Close drains the audit dispatcher. The Redis client is owned by the
// caller and is left open.
func (e *Engine) Close() {
	_ = e.Shutdown(context.Background())
}

// Shutdown is Close bounded by ctx. Audit events still queued when ctx
// ends are discarded and counted in AuditDropped.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	var err error
	if e.audit != nil {
		err = e.audit.Shutdown(ctx)
	}
	_ = e.logger.Sync()
	return err
}

// AuditDropped reports audit events discarded because the buffer was full
// or a Shutdown deadline passed.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDroppedByEvent breaks AuditDropped down by event type.
func (e *Engine) AuditDroppedByEvent() map[string]uint64 {
	if e == nil || e.audit == nil {
		return map[string]uint64{}
	}
	return e.audit.DroppedByEvent()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Ping checks the session store round trip.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	_, err := e.sessionStore.Ping(ctx)
	return err
}

// Login verifies creds against the IdentityStore, creates a session and
// returns a token pair bound to it.
func (e *Engine) Login(ctx context.Context, creds Credentials) (pair *TokenPair, err error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Login")
	defer func() { endSpan(span, err) }()

	res := e.flows.Login(ctx, creds.Principal, creds.Password)
	principal := res.Principal

	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureInvalidCredentials:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, principal, "", ErrInvalidCredentials, nil)
		e.logger.Info("login rejected", zap.String("principal", principal), zap.String("reason", auditErrInvalidCredentials))
		return nil, ErrInvalidCredentials
	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, principal, "", ErrLoginRateLimited, nil)
		e.logger.Info("login rate limited", zap.String("principal", principal))
		return nil, ErrLoginRateLimited
	case flows.LoginFailureIdentityUnavailable:
		err = fmt.Errorf("%w: %w", ErrIdentityUnavailable, res.Err)
		e.metricInc(MetricLoginFailure)
		e.metricInc(MetricIdentityUnavailable)
		e.emitAudit(ctx, auditEventLoginFailure, false, principal, "", err, nil)
		e.logger.Warn("identity store failed", zap.String("principal", principal), zap.Error(res.Err))
		return nil, err
	case flows.LoginFailureStoreUnavailable:
		err = storeUnavailable(res.Err)
		e.metricInc(MetricLoginFailure)
		e.metricInc(MetricStoreUnavailable)
		e.emitAudit(ctx, auditEventLoginFailure, false, principal, "", err, nil)
		e.logger.Warn("session store unavailable", zap.String("op", "login"), zap.Error(res.Err))
		return nil, err
	case flows.LoginFailureIssue:
		err = fmt.Errorf("%w: %w", ErrTokenIssue, res.Err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, principal, "", err, nil)
		e.logger.Error("token issuance failed", zap.String("principal", principal), zap.Error(res.Err))
		return nil, err
	default:
		err = fmt.Errorf("%w: %w", ErrInternal, res.Err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, principal, "", err, nil)
		e.logger.Error("session create failed", zap.String("principal", principal), zap.Error(res.Err))
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, true, principal, res.Pair.SessionID, nil, nil)
	return toTokenPair(res.Pair), nil
}

// Refresh rotates the session bound to refreshToken and returns a new
// pair. The presented token never succeeds again, including for a
// concurrent caller presenting the same token.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (pair *TokenPair, err error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Refresh")
	start := time.Now()
	defer func() {
		e.metricObserve(MetricRefreshLatency, start)
		endSpan(span, err)
	}()

	res := e.flows.Refresh(ctx, refreshToken)
	if res.Failure == flows.RefreshFailureNone {
		e.metricInc(MetricRefreshSuccess)
		e.metricInc(MetricSessionRotated)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, res.Principal, res.SessionID, nil, nil)
		return toTokenPair(res.Pair), nil
	}

	err = refreshError(res)
	e.metricInc(MetricRefreshFailure)
	e.metricReason(err)

	switch {
	case res.Failure == flows.RefreshFailureRateLimited:
		e.metricInc(MetricRefreshRateLimited)
		e.emitAudit(ctx, auditEventRefreshRateLimited, false, res.Principal, res.SessionID, err, nil)
	case res.ReplayCount > 0:
		e.metricInc(MetricRefreshReuseDetected)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, res.Principal, res.SessionID, err, func() map[string]string {
			return map[string]string{"replay_count": strconv.FormatInt(res.ReplayCount, 10)}
		})
	default:
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.Principal, res.SessionID, err, nil)
	}

	e.logFailure("refresh", res.SessionID, err, res.Err)
	return nil, err
}

func refreshError(res flows.RefreshResult) error {
	switch res.Failure {
	case flows.RefreshFailureToken:
		return tokenErrorFromCodec(res.Err)
	case flows.RefreshFailureRateLimited:
		return ErrRefreshRateLimited
	case flows.RefreshFailureNotLive:
		return newTokenError(ReasonSessionRevoked, ErrSessionRevoked, res.Err)
	case flows.RefreshFailureReuse:
		return newTokenError(ReasonRefreshReuse, ErrSessionRevoked, res.Err)
	case flows.RefreshFailureSessionExpired:
		return newTokenError(ReasonSessionExpired, ErrExpired, res.Err)
	case flows.RefreshFailurePrincipalMismatch:
		return newTokenError(ReasonPrincipalMismatch, ErrSessionRevoked, res.Err)
	case flows.RefreshFailureStoreUnavailable:
		return storeUnavailable(res.Err)
	case flows.RefreshFailureIssue:
		return fmt.Errorf("%w: %w", ErrTokenIssue, res.Err)
	default:
		return fmt.Errorf("%w: %w", ErrInternal, res.Err)
	}
}

// Logout revokes the session chain refreshToken belongs to, following
// rotations to the live session. An expired but correctly signed token is
// accepted, and revoking an already revoked or missing session succeeds.
func (e *Engine) Logout(ctx context.Context, refreshToken string) (err error) {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Logout")
	defer func() { endSpan(span, err) }()

	res := e.flows.Logout(ctx, refreshToken)
	switch {
	case res.TokenErr != nil:
		err = tokenErrorFromCodec(res.TokenErr)
		e.metricReason(err)
		e.logFailure("logout", "", err, res.TokenErr)
		return err
	case res.Err != nil:
		err = storeUnavailable(res.Err)
		e.metricInc(MetricStoreUnavailable)
		e.emitAudit(ctx, auditEventLogoutSession, false, res.Principal, res.SessionID, err, nil)
		e.logFailure("logout", res.SessionID, err, res.Err)
		return err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, true, res.Principal, res.SessionID, nil, nil)
	return nil
}

// LogoutAll revokes every live session of principal.
func (e *Engine) LogoutAll(ctx context.Context, principal string) (err error) {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	if principal == "" {
		return errors.New("principal is required")
	}
	ctx, span := e.startSpan(ctx, "LogoutAll")
	defer func() { endSpan(span, err) }()

	n, revokeErr := e.flows.LogoutAll(ctx, principal)
	if revokeErr != nil {
		err = storeUnavailable(revokeErr)
		e.metricInc(MetricStoreUnavailable)
		e.emitAudit(ctx, auditEventLogoutAll, false, principal, "", err, nil)
		e.logFailure("logout_all", "", err, revokeErr)
		return err
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, principal, "", nil, func() map[string]string {
		return map[string]string{"revoked": strconv.Itoa(n)}
	})
	return nil
}

// Authorize verifies accessToken by signature and expiry alone. It never
// reads the session store, so it keeps working while Redis is down.
func (e *Engine) Authorize(ctx context.Context, accessToken string) (result *AuthResult, err error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Authorize")
	start := time.Now()
	defer func() {
		e.metricObserve(MetricAuthorizeLatency, start)
		endSpan(span, err)
	}()

	res := e.flows.Authorize(accessToken)
	if res.Err != nil {
		err = tokenErrorFromCodec(res.Err)
		e.metricInc(MetricAuthorizeFailure)
		e.metricReason(err)
		e.emitAudit(ctx, auditEventAuthorizeFailure, false, "", "", err, nil)
		e.logFailure("authorize", "", err, res.Err)
		return nil, err
	}

	e.metricInc(MetricAuthorizeSuccess)
	return buildResultFromClaims(res.Claims), nil
}

func buildResultFromClaims(claims *jwt.Claims) *AuthResult {
	r := &AuthResult{
		Principal: Principal(claims.Subject),
		Role:      claims.Role,
		Scopes:    claims.Scopes(),
		TokenID:   claims.ID,
	}
	if claims.IssuedAt != nil {
		r.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		r.ExpiresAt = claims.ExpiresAt.Time
	}
	return r
}

// storeUnavailable makes sure err matches ErrStoreUnavailable. Rate limiter
// failures arrive wrapped in rate.ErrUnavailable only.
func storeUnavailable(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// logFailure logs a rejected operation with its internal reason. Store
// outages go to Warn; everything else is an expected client failure.
func (e *Engine) logFailure(op, sessionID string, err, cause error) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("reason", auditReason(err)),
		zap.Error(cause),
	}
	if sessionID != "" {
		fields = append(fields, zap.String("session_id", sessionID))
	}
	if IsRetryable(err) {
		e.logger.Warn("operation failed", fields...)
		return
	}
	e.logger.Info("operation rejected", fields...)
}
