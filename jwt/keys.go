package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

func (c *Codec) resolveKeys() error {
	cfg := c.config

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return errors.New("hs256 requires private key")
		}
		if len(cfg.PrivateKey) < minHMACKeyBytes {
			return fmt.Errorf("hs256 key must be at least %d bytes", minHMACKeyBytes)
		}
		c.signKey = cfg.PrivateKey
		c.verifyKey = cfg.PrivateKey
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return err
			}
			c.signKey = priv
			c.verifyKey = priv.Public().(ed25519.PublicKey)
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return err
			}
			c.verifyKey = pub
		}
		if c.verifyKey == nil && len(cfg.VerifyKeys) == 0 {
			return errors.New("ed25519 requires public key or verify key set")
		}
	}

	if len(cfg.VerifyKeys) == 0 {
		return nil
	}

	c.verifyKeys = make(map[string]interface{}, len(cfg.VerifyKeys))
	for kid, raw := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return errors.New("verify key map contains empty kid")
		}
		key, err := c.verifyKeyFromBytes(raw)
		if err != nil {
			return fmt.Errorf("invalid verify key for kid %q: %w", kid, err)
		}
		c.verifyKeys[kid] = key
	}
	if cfg.KeyID != "" {
		if _, ok := c.verifyKeys[cfg.KeyID]; !ok {
			return errors.New("KeyID is not present in VerifyKeys")
		}
	}
	return nil
}

func (c *Codec) verifyKeyFromBytes(key []byte) (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		if len(key) < minHMACKeyBytes {
			return nil, fmt.Errorf("hs256 key must be at least %d bytes", minHMACKeyBytes)
		}
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

// parseEdPrivateKey accepts a raw 64-byte key or PKCS#8 PEM.
func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

// parseEdPublicKey accepts a raw 32-byte key or PKIX PEM.
func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
