package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/MrEthical07/jwtauth"
	"github.com/MrEthical07/jwtauth/identity"
	"github.com/MrEthical07/jwtauth/internal/httpapi"
)

const (
	configCodeReadFile          = "config.read_file"
	configCodeMissingRedis      = "config.missing_redis_addr"
	configCodeMissingSigningKey = "config.missing_signing_key"
	configCodeInvalidSecret     = "config.invalid_jwt_secret"
	configCodeReadPrivateKey    = "config.read_private_key"
	configCodeSigningMethod     = "config.unsupported_signing_method"
	configCodeMissingUsers      = "config.missing_users"
	configCodeInvalidUsers      = "config.invalid_users"
	configCodeInvalidEngine     = "config.invalid_engine_config"
	configCodeUninitialized     = "config.uninitialized_server_config"
)

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

// serverConfig is everything runServer needs, resolved from flags,
// environment and the optional config file.
type serverConfig struct {
	ListenAddr     string
	RedisAddrs     []string
	RedisPassword  string
	MetricsEnabled bool
	Engine         jwtauth.Config
	HTTP           httpapi.Config
	Users          []identity.User
}

func loadServerConfig(v *viper.Viper) (serverConfig, error) {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return serverConfig{}, configError(configCodeReadFile, err.Error())
		}
	}

	out := serverConfig{
		ListenAddr:     v.GetString("listen_addr"),
		RedisPassword:  v.GetString("redis_password"),
		MetricsEnabled: v.GetBool("metrics"),
	}

	for _, addr := range strings.Split(v.GetString("redis_addr"), ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out.RedisAddrs = append(out.RedisAddrs, addr)
		}
	}
	if len(out.RedisAddrs) == 0 {
		return serverConfig{}, configError(configCodeMissingRedis, "redis_addr must be provided")
	}

	cfg := jwtauth.DefaultConfig()
	if v.GetBool("production") {
		cfg = jwtauth.HighSecurityConfig()
	}
	cfg.JWT.Issuer = v.GetString("jwt_issuer")
	cfg.JWT.Audience = v.GetString("jwt_audience")
	cfg.JWT.KeyID = v.GetString("jwt_key_id")
	if d := v.GetDuration("access_ttl"); d > 0 {
		cfg.JWT.AccessTTL = d
	}
	if d := v.GetDuration("refresh_ttl"); d > 0 {
		cfg.JWT.RefreshTTL = d
	}
	if d := v.GetDuration("store_timeout"); d > 0 {
		cfg.Session.StoreTimeout = d
	}
	if prefix := v.GetString("redis_prefix"); prefix != "" {
		cfg.Session.RedisPrefix = prefix
	}
	if v.GetBool("audit") {
		cfg.Audit.Enabled = true
	}
	cfg.Metrics.Enabled = out.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = out.MetricsEnabled

	if err := loadSigningKey(v, &cfg.JWT); err != nil {
		return serverConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return serverConfig{}, configError(configCodeInvalidEngine, err.Error())
	}
	out.Engine = cfg

	out.HTTP = httpapi.DefaultConfig()
	out.HTTP.CORSAllowedOrigins = v.GetStringSlice("cors_allowed_origins")

	if err := v.UnmarshalKey("users", &out.Users); err != nil {
		return serverConfig{}, configError(configCodeInvalidUsers, err.Error())
	}
	if len(out.Users) == 0 {
		return serverConfig{}, configError(configCodeMissingUsers, "at least one user must be configured in the config file")
	}

	return out, nil
}

// loadSigningKey reads a base64 HS256 secret or an ed25519 PEM file.
func loadSigningKey(v *viper.Viper, jc *jwtauth.JWTConfig) error {
	method := strings.ToLower(strings.TrimSpace(v.GetString("signing_method")))
	switch method {
	case "hs256":
		secret := strings.TrimSpace(v.GetString("jwt_secret"))
		if secret == "" {
			return configError(configCodeMissingSigningKey, "jwt_secret must be provided for hs256")
		}
		key, err := base64.StdEncoding.DecodeString(secret)
		if err != nil {
			key, err = base64.RawStdEncoding.DecodeString(secret)
		}
		if err != nil {
			return configError(configCodeInvalidSecret, "jwt_secret must be base64 encoded")
		}
		if len(key) < 32 {
			return configError(configCodeInvalidSecret, "jwt_secret must decode to at least 32 bytes")
		}
		jc.SigningMethod = "hs256"
		jc.PrivateKey = key
	case "ed25519":
		path := strings.TrimSpace(v.GetString("jwt_private_key_file"))
		if path == "" {
			return configError(configCodeMissingSigningKey, "jwt_private_key_file must be provided for ed25519")
		}
		pem, err := os.ReadFile(path)
		if err != nil {
			return configError(configCodeReadPrivateKey, err.Error())
		}
		jc.SigningMethod = "ed25519"
		jc.PrivateKey = pem
	default:
		return configError(configCodeSigningMethod, fmt.Sprintf("signing_method %q is not supported", method))
	}
	return nil
}
