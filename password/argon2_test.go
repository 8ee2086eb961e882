package password

import (
	"errors"
	"strings"
	"testing"
)

// fastArgon2Config keeps test hashing cheap while staying above the floors.
func fastArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestArgon2(t *testing.T, cfg Argon2Config) *Argon2 {
	t.Helper()
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return h
}

func TestArgon2HashAndVerify(t *testing.T) {
	hasher := newTestArgon2(t, fastArgon2Config())

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}
	if strings.Contains(hash, "=$") || strings.HasSuffix(hash, "=") {
		t.Fatalf("expected unpadded base64 segments: %s", hash)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification to succeed")
	}
}

func TestArgon2VerifyWrongPassword(t *testing.T) {
	hasher := newTestArgon2(t, fastArgon2Config())

	hash, err := hasher.Hash("correct-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	ok, err := hasher.Verify("wrong-password", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestArgon2SaltIsRandom(t *testing.T) {
	hasher := newTestArgon2(t, fastArgon2Config())

	a, _ := hasher.Hash("same-password")
	b, _ := hasher.Hash("same-password")
	if a == b {
		t.Fatal("expected distinct hashes for the same password")
	}
}

func TestArgon2VerifyUsesEncodedParameters(t *testing.T) {
	weak := newTestArgon2(t, fastArgon2Config())
	hash, err := weak.Hash("rotate-me")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	strong := fastArgon2Config()
	strong.Time = 2
	strong.Memory = 16 * 1024
	ok, err := newTestArgon2(t, strong).Verify("rotate-me", hash)
	if err != nil || !ok {
		t.Fatalf("expected hash from weaker parameters to verify, ok=%v err=%v", ok, err)
	}
}

func TestArgon2VerifyAcceptsPaddedBase64(t *testing.T) {
	hasher := newTestArgon2(t, fastArgon2Config())
	hash, err := hasher.Hash("padded")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	// 16-byte salt and 32-byte key pad to 24 and 44 characters.
	parts := strings.Split(hash, "$")
	parts[4] += "=="
	parts[5] += "="
	padded := strings.Join(parts, "$")

	ok, err := hasher.Verify("padded", padded)
	if err != nil || !ok {
		t.Fatalf("expected padded encoding to verify, ok=%v err=%v", ok, err)
	}
}

func TestArgon2NeedsUpgrade(t *testing.T) {
	cfg := fastArgon2Config()
	hasher := newTestArgon2(t, cfg)
	hash, err := hasher.Hash("upgrade-check")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	same, err := hasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if same {
		t.Fatal("expected no upgrade for identical parameters")
	}

	cfg.Time = 2
	stronger := newTestArgon2(t, cfg)
	upgrade, err := stronger.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if !upgrade {
		t.Fatal("expected upgrade when time cost increases")
	}
}

func TestArgon2VerifyMalformedHash(t *testing.T) {
	hasher := newTestArgon2(t, fastArgon2Config())

	cases := []string{
		"not-a-hash",
		"$argon2id$v=19$m=8192,t=1,p=1$onlysalt",
		"$argon2id$v=19$m=bad$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$c2hvcnQ$a2V5a2V5a2V5a2V5a2V5a2V5",
	}
	for _, encoded := range cases {
		if _, err := hasher.Verify("x", encoded); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("%q: expected ErrMalformedHash, got %v", encoded, err)
		}
	}
}

func TestArgon2VerifyUnsupportedVariant(t *testing.T) {
	hasher := newTestArgon2(t, fastArgon2Config())

	cases := []string{
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=16$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5a2V5",
	}
	for _, encoded := range cases {
		if _, err := hasher.Verify("x", encoded); !errors.Is(err, ErrUnsupportedHash) {
			t.Fatalf("%q: expected ErrUnsupportedHash, got %v", encoded, err)
		}
	}
}

func TestArgon2HashEmptyPassword(t *testing.T) {
	hasher := newTestArgon2(t, fastArgon2Config())
	if _, err := hasher.Hash(""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	mutations := map[string]func(*Argon2Config){
		"memory":      func(c *Argon2Config) { c.Memory = 1024 },
		"time":        func(c *Argon2Config) { c.Time = 0 },
		"parallelism": func(c *Argon2Config) { c.Parallelism = 0 },
		"salt":        func(c *Argon2Config) { c.SaltLength = 8 },
		"key":         func(c *Argon2Config) { c.KeyLength = 8 },
	}
	for name, mutate := range mutations {
		cfg := fastArgon2Config()
		mutate(&cfg)
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("%s: expected config error", name)
		}
	}
}

func TestDefaultArgon2ConfigValidates(t *testing.T) {
	if _, err := NewArgon2(DefaultArgon2Config()); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
}
