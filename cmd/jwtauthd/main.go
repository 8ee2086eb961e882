package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/MrEthical07/jwtauth"
	"github.com/MrEthical07/jwtauth/identity"
	"github.com/MrEthical07/jwtauth/internal/httpapi"
	promexport "github.com/MrEthical07/jwtauth/metrics/export/prometheus"
	"github.com/MrEthical07/jwtauth/password"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

var buildLogger = func() (*zap.Logger, error) {
	return zap.NewProduction()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func newRootCommand() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "jwtauthd",
		Short: "JWT access/refresh token service backed by Redis sessions",
		PreRunE: func(command *cobra.Command, _ []string) error {
			cfg, err := loadServerConfig(v)
			if err != nil {
				return err
			}
			ctx := command.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			command.SetContext(context.WithValue(ctx, serverConfigContextKey, cfg))
			return nil
		},
		RunE:         runServer,
		SilenceUsage: true,
	}

	flags := rootCmd.Flags()
	flags.String("config", "", "Path to a config file (yaml, json or toml) holding users and overrides")
	flags.String("listen_addr", ":8080", "HTTP listen address")
	flags.String("redis_addr", "localhost:6379", "Comma-separated Redis addresses")
	flags.String("redis_password", "", "Redis password")
	flags.String("redis_prefix", "ja", "Redis key prefix for sessions and throttles")
	flags.String("signing_method", "hs256", "JWT signing method: hs256 or ed25519")
	flags.String("jwt_secret", "", "Base64-encoded HS256 secret (at least 32 bytes decoded)")
	flags.String("jwt_private_key_file", "", "PKCS#8 PEM file holding the ed25519 private key")
	flags.String("jwt_key_id", "", "kid stamped on issued tokens")
	flags.String("jwt_issuer", "jwtauth", "iss claim")
	flags.String("jwt_audience", "", "aud claim")
	flags.Duration("access_ttl", 5*time.Minute, "Access token TTL")
	flags.Duration("refresh_ttl", 7*24*time.Hour, "Refresh token TTL")
	flags.Duration("store_timeout", 500*time.Millisecond, "Timeout for each Redis call")
	flags.Bool("production", false, "Start from the high-security configuration")
	flags.Bool("audit", false, "Write audit events to the log")
	flags.Bool("metrics", false, "Serve Prometheus metrics on /metrics")
	flags.StringSlice("cors_allowed_origins", []string{}, "Origins allowed to call the API cross-origin")

	_ = v.BindPFlags(flags)

	v.SetEnvPrefix("JWTAUTH")
	v.AutomaticEnv()

	return rootCmd
}

func runServer(command *cobra.Command, _ []string) error {
	ctx := command.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, ok := ctx.Value(serverConfigContextKey).(serverConfig)
	if !ok {
		return configError(configCodeUninitialized, "server configuration not prepared; PreRunE must execute before RunE")
	}

	logger, err := buildLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:                 cfg.RedisAddrs,
		Password:              cfg.RedisPassword,
		ContextTimeoutEnabled: true,
	})
	defer func() { _ = rdb.Close() }()

	users, err := identity.NewStaticStore(password.Default(), cfg.Users)
	if err != nil {
		return configError(configCodeInvalidUsers, err.Error())
	}
	for _, u := range cfg.Users {
		if users.NeedsRehash(u.Principal) {
			logger.Info("password hash uses a legacy scheme", zap.String("principal", u.Principal))
		}
	}

	builder := jwtauth.New().
		WithConfig(cfg.Engine).
		WithRedis(rdb).
		WithIdentityStore(users).
		WithLogger(logger).
		WithTracerProvider(otel.GetTracerProvider())
	if cfg.Engine.Audit.Enabled {
		builder = builder.WithAuditSink(jwtauth.NewZapSink(logger.Named("audit")))
	}
	engine, err := builder.Build()
	if err != nil {
		return configError(configCodeInvalidEngine, err.Error())
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := engine.Shutdown(drainCtx); err != nil {
			logger.Warn("audit drain incomplete", zap.Error(err), zap.Uint64("audit_dropped", engine.AuditDropped()))
		}
	}()

	report := engine.SecurityReport()
	logger.Info("engine ready",
		zap.String("alg", report.SigningAlgorithm),
		zap.Duration("access_ttl", report.AccessTTL),
		zap.Duration("refresh_ttl", report.RefreshTTL),
		zap.Bool("production", report.ProductionMode),
		zap.Int("users", users.Len()),
		zap.Strings("lint", report.LintWarnings),
	)

	gin.SetMode(gin.ReleaseMode)
	router, err := httpapi.NewRouter(engine, logger, cfg.HTTP)
	if err != nil {
		return err
	}
	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promexport.NewCollector(engine).Handler()))
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		graceCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", cfg.ListenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}
