package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod names a supported signature algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

// Kind distinguishes access tokens from refresh tokens. A token of one kind
// never parses as the other.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

const minHMACKeyBytes = 32

// Config describes the signing key material and validation policy of a Codec.
//
// VerifyKeys maps kid to key. When it is set, every token must carry a kid
// found in the map; keeping the previous key in the map lets tokens signed
// before a rotation verify until they expire.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	RequireIAT    bool
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte

	// Now overrides the clock used for iat/exp at issue time and for
	// validation. Defaults to time.Now.
	Now func() time.Time
}

// Subject is what a token is issued for.
type Subject struct {
	Principal string
	SessionID string
	Role      string
	Scopes    []string
}

// Claims is the payload of both token kinds. Role and Scope are only set on
// access tokens; SessionID only on refresh tokens.
type Claims struct {
	Kind      Kind   `json:"kind"`
	SessionID string `json:"sid,omitempty"`
	Role      string `json:"role,omitempty"`
	Scope     string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Scopes splits the space-delimited scope claim.
func (c *Claims) Scopes() []string {
	if c == nil || c.Scope == "" {
		return nil
	}
	return strings.Fields(c.Scope)
}

// Codec signs and verifies tokens. It is immutable after NewCodec.
type Codec struct {
	config     Config
	method     jwt.SigningMethod
	signKey    interface{}
	verifyKey  interface{}
	verifyKeys map[string]interface{}
	parser     *jwt.Parser
	now        func() time.Time
}

// NewCodec validates cfg and resolves its keys.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Codec{config: cfg, now: cfg.Now}
	switch cfg.SigningMethod {
	case MethodHS256:
		c.method = jwt.SigningMethodHS256
	case MethodEd25519:
		c.method = jwt.SigningMethodEdDSA
	default:
		return nil, errors.New("unsupported signing method")
	}

	if err := c.resolveKeys(); err != nil {
		return nil, err
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.RequireIAT {
		options = append(options, jwt.WithIssuedAt())
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}
	c.parser = jwt.NewParser(options...)

	return c, nil
}

// Algorithm reports the JOSE alg accepted by this codec.
func (c *Codec) Algorithm() string {
	return c.method.Alg()
}

// Issue signs a token of the given kind for sub, valid for ttl from now.
func (c *Codec) Issue(kind Kind, sub Subject, ttl time.Duration) (string, *Claims, error) {
	if ttl <= 0 {
		return "", nil, errors.New("token ttl must be > 0")
	}
	if sub.Principal == "" {
		return "", nil, errors.New("token principal is required")
	}
	if c.signKey == nil {
		return "", nil, ErrSigningKeyMissing
	}

	now := c.now()
	claims := &Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.Principal,
			Issuer:    c.config.Issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if c.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
	}

	switch kind {
	case KindAccess:
		claims.Role = sub.Role
		claims.Scope = strings.Join(sub.Scopes, " ")
	case KindRefresh:
		if sub.SessionID == "" {
			return "", nil, errors.New("refresh token requires a session id")
		}
		claims.SessionID = sub.SessionID
	default:
		return "", nil, fmt.Errorf("unknown token kind %q", kind)
	}

	token := jwt.NewWithClaims(c.method, claims)
	if c.config.KeyID != "" {
		token.Header["kid"] = c.config.KeyID
	}

	signed, err := token.SignedString(c.signKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse verifies tokenStr and returns its claims. The error, if any, wraps
// exactly one of ErrMalformed, ErrInvalidSignature or ErrExpired.
func (c *Codec) Parse(tokenStr string, kind Kind) (*Claims, error) {
	claims, err := c.parse(tokenStr, kind)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseAllowExpired is Parse, except that a token whose only defect is its
// expiry still yields its claims. The signature is always verified.
func (c *Codec) ParseAllowExpired(tokenStr string, kind Kind) (*Claims, error) {
	claims, err := c.parse(tokenStr, kind)
	if err != nil {
		if errors.Is(err, ErrExpired) && claims != nil {
			return claims, nil
		}
		return nil, err
	}
	return claims, nil
}

// parse returns claims alongside ErrExpired so ParseAllowExpired can use them.
func (c *Codec) parse(tokenStr string, kind Kind) (*Claims, error) {
	claims := &Claims{}
	_, err := c.parser.ParseWithClaims(tokenStr, claims, c.keyFunc)
	if err != nil {
		class := classify(err)
		if class != ErrExpired {
			return nil, fmt.Errorf("%w: %v", class, err)
		}
		if checkErr := c.checkClaims(claims, kind); checkErr != nil {
			return nil, checkErr
		}
		return claims, fmt.Errorf("%w: %v", ErrExpired, err)
	}

	if err := c.checkClaims(claims, kind); err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *Codec) checkClaims(claims *Claims, kind Kind) error {
	if claims.Kind != kind {
		return fmt.Errorf("%w: expected %s token, got %q", ErrMalformed, kind, claims.Kind)
	}
	if claims.Subject == "" {
		return fmt.Errorf("%w: missing subject", ErrMalformed)
	}
	if kind == KindRefresh && claims.SessionID == "" {
		return fmt.Errorf("%w: missing session id", ErrMalformed)
	}
	if claims.IssuedAt != nil && c.config.MaxFutureIAT > 0 {
		if claims.IssuedAt.Time.After(c.now().Add(c.config.MaxFutureIAT)) {
			return fmt.Errorf("%w: iat too far in the future", ErrMalformed)
		}
	}
	return nil
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != c.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	kid, _ := t.Header["kid"].(string)
	if len(c.verifyKeys) > 0 {
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := c.verifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return key, nil
	}

	if c.config.KeyID != "" {
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if kid != c.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}
	if c.verifyKey == nil {
		return nil, errors.New("verification key not configured")
	}
	return c.verifyKey, nil
}
