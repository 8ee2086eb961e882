// Package httpapi exposes an Engine over JSON HTTP routes using gin.
package httpapi

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MrEthical07/jwtauth"
)

// Engine is the subset of *jwtauth.Engine the routes call.
type Engine interface {
	Login(ctx context.Context, creds jwtauth.Credentials) (*jwtauth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*jwtauth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Authorize(ctx context.Context, accessToken string) (*jwtauth.AuthResult, error)
	Ping(ctx context.Context) error
}

// Config tunes the HTTP layer.
type Config struct {
	Retry RetryConfig

	// RetryAfter is advertised on 503 and 429 responses.
	RetryAfter time.Duration

	// CORSAllowedOrigins enables CORS when non-empty.
	CORSAllowedOrigins []string
}

// DefaultConfig returns three attempts with 50ms initial backoff.
func DefaultConfig() Config {
	return Config{
		Retry:      DefaultRetryConfig(),
		RetryAfter: time.Second,
	}
}

// Server holds the route handlers.
type Server struct {
	engine Engine
	logger *zap.Logger
	config Config
}

func New(engine Engine, logger *zap.Logger, cfg Config) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = time.Second
	}
	return &Server{engine: engine, logger: logger.Named("httpapi"), config: cfg}
}

// NewRouter returns a gin engine with recovery, request logging, optional
// CORS and all routes mounted.
func NewRouter(engine Engine, logger *zap.Logger, cfg Config) (*gin.Engine, error) {
	s := New(engine, logger, cfg)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(s.logger))

	if len(cfg.CORSAllowedOrigins) > 0 {
		corsMiddleware, err := ConfigureCORS(s.logger, cfg.CORSAllowedOrigins)
		if err != nil {
			return nil, err
		}
		router.Use(corsMiddleware)
	}

	s.Mount(router)
	return router, nil
}

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
