package httpapi

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MrEthical07/jwtauth"
	"github.com/MrEthical07/jwtauth/middleware"
)

const authResultKey = "auth_result"

type loginRequest struct {
	Principal string `json:"principal"`
	Password  string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	SessionID        string    `json:"session_id"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type meResponse struct {
	Principal string    `json:"principal"`
	Role      string    `json:"role,omitempty"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Mount registers /auth/login, /auth/refresh, /auth/logout, /api/me and
// /healthz on router.
func (s *Server) Mount(router gin.IRouter) {
	router.POST("/auth/login", s.handleLogin)
	router.POST("/auth/refresh", s.handleRefresh)
	router.POST("/auth/logout", s.handleLogout)
	router.GET("/healthz", s.handleHealth)

	protected := router.Group("/api")
	protected.Use(s.RequireAccessToken())
	protected.GET("/me", s.handleMe)
}

// RequireAccessToken authorizes the bearer token and stores the result on
// the gin context and the request context.
func (s *Server) RequireAccessToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := middleware.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			s.abort(c, jwtauth.ErrTokenInvalid)
			return
		}
		res, err := s.engine.Authorize(requestContext(c), token)
		if err != nil {
			s.abort(c, err)
			return
		}
		c.Set(authResultKey, res)
		c.Request = c.Request.WithContext(middleware.ContextWithAuthResult(c.Request.Context(), res))
		c.Next()
	}
}

func (s *Server) handleLogin(c *gin.Context) {
	var in loginRequest
	if err := c.ShouldBindJSON(&in); err != nil || strings.TrimSpace(in.Principal) == "" || in.Password == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}

	ctx := requestContext(c)
	pair, err := retry(ctx, s.config.Retry, func() (*jwtauth.TokenPair, error) {
		return s.engine.Login(ctx, jwtauth.Credentials{Principal: in.Principal, Password: in.Password})
	})
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(pair))
}

// handleRefresh does not retry: a rotation that committed before the store
// timed out would turn the retry into a replay.
func (s *Server) handleRefresh(c *gin.Context) {
	var in refreshRequest
	if err := c.ShouldBindJSON(&in); err != nil || strings.TrimSpace(in.RefreshToken) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}

	pair, err := s.engine.Refresh(requestContext(c), in.RefreshToken)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(pair))
}

func (s *Server) handleLogout(c *gin.Context) {
	var in refreshRequest
	if err := c.ShouldBindJSON(&in); err != nil || strings.TrimSpace(in.RefreshToken) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}

	ctx := requestContext(c)
	_, err := retry(ctx, s.config.Retry, func() (struct{}, error) {
		return struct{}{}, s.engine.Logout(ctx, in.RefreshToken)
	})
	if err != nil {
		s.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMe(c *gin.Context) {
	value, _ := c.Get(authResultKey)
	res, ok := value.(*jwtauth.AuthResult)
	if !ok {
		s.abort(c, jwtauth.ErrTokenInvalid)
		return
	}
	scopes := res.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	c.JSON(http.StatusOK, meResponse{
		Principal: string(res.Principal),
		Role:      res.Role,
		Scopes:    scopes,
		ExpiresAt: res.ExpiresAt,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.engine.Ping(c.Request.Context()); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// abort writes the public form of err. Internal reasons are logged by the
// engine and never reach the response.
func (s *Server) abort(c *gin.Context, err error) {
	public := jwtauth.Public(err)

	switch {
	case errors.Is(public, jwtauth.ErrTokenInvalid):
		c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
	case errors.Is(public, jwtauth.ErrInvalidCredentials):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
	case errors.Is(public, jwtauth.ErrLoginRateLimited), errors.Is(public, jwtauth.ErrRefreshRateLimited):
		c.Header("Retry-After", retryAfterSeconds(s.config.RetryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
	case jwtauth.IsRetryable(public):
		c.Header("Retry-After", retryAfterSeconds(s.config.RetryAfter))
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable"})
	default:
		s.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}

func newTokenResponse(pair *jwtauth.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        pair.TokenType,
		ExpiresIn:        int64(math.Round(time.Until(pair.AccessExpiresAt).Seconds())),
		SessionID:        pair.SessionID,
		RefreshExpiresAt: pair.RefreshExpiresAt.UTC(),
	}
}

func requestContext(c *gin.Context) context.Context {
	ctx := jwtauth.WithClientIP(c.Request.Context(), c.ClientIP())
	return jwtauth.WithUserAgent(ctx, c.Request.UserAgent())
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
