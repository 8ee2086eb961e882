package jwtauth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginRateLimited     = "login_rate_limited"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshInvalid       = "refresh_invalid"
	auditEventRefreshRateLimited   = "refresh_rate_limited"
	auditEventRefreshReuseDetected = "refresh_reuse_detected"
	auditEventLogoutSession        = "logout_session"
	auditEventLogoutAll            = "logout_all"
	auditEventAuthorizeFailure     = "authorize_failure"
)

// Audit reasons for failures that are not token rejections.
const (
	auditErrInvalidCredentials  = "invalid_credentials"
	auditErrRateLimited         = "rate_limited"
	auditErrStoreUnavailable    = "store_unavailable"
	auditErrIdentityUnavailable = "identity_unavailable"
	auditErrTokenIssue          = "token_issue_failed"
	auditErrInternal            = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	principal string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["user_agent"] = ua
	}

	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Principal: principal,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Reason:    auditReason(err),
		Metadata:  metadata,
	})
}

// auditReason names err for audit records. Token rejections report their
// internal Reason.
func auditReason(err error) string {
	if err == nil {
		return ""
	}
	if r := ReasonOf(err); r != "" {
		return string(r)
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited), errors.Is(err, ErrRefreshRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrStoreUnavailable
	case errors.Is(err, ErrIdentityUnavailable):
		return auditErrIdentityUnavailable
	case errors.Is(err, ErrTokenIssue):
		return auditErrTokenIssue
	default:
		return auditErrInternal
	}
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

// metricReason counts a token rejection under its reason.
func (e *Engine) metricReason(err error) {
	switch ReasonOf(err) {
	case ReasonMalformed:
		e.metricInc(MetricTokenMalformed)
	case ReasonInvalidSignature:
		e.metricInc(MetricTokenInvalidSignature)
	case ReasonExpired:
		e.metricInc(MetricTokenExpired)
	case ReasonSessionRevoked, ReasonRefreshReuse:
		e.metricInc(MetricTokenSessionRevoked)
	}
	if errors.Is(err, ErrStoreUnavailable) {
		e.metricInc(MetricStoreUnavailable)
	}
}
