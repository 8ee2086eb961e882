package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHashAndVerify(t *testing.T) {
	b, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}

	hash, err := b.Hash("s3cret-value")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$04$") {
		t.Fatalf("unexpected bcrypt prefix: %s", hash)
	}

	ok, err := b.Verify("s3cret-value", hash)
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed, ok=%v err=%v", ok, err)
	}

	ok, err = b.Verify("other-value", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password to fail")
	}
}

func TestBcryptVerifyRejectsForeignHash(t *testing.T) {
	b, _ := NewBcrypt(bcrypt.MinCost)

	if _, err := b.Verify("x", "$argon2id$v=19$m=8192,t=1,p=1$a$b"); !errors.Is(err, ErrUnsupportedHash) {
		t.Fatalf("expected ErrUnsupportedHash, got %v", err)
	}
	if _, err := b.Verify("x", "$2a$04$truncated"); !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("expected ErrMalformedHash, got %v", err)
	}
}

func TestBcryptNeedsUpgrade(t *testing.T) {
	weak, _ := NewBcrypt(bcrypt.MinCost)
	hash, err := weak.Hash("cost-check")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if up, _ := weak.NeedsUpgrade(hash); up {
		t.Fatal("expected no upgrade at equal cost")
	}
	strong, _ := NewBcrypt(bcrypt.MinCost + 1)
	if up, _ := strong.NeedsUpgrade(hash); !up {
		t.Fatal("expected upgrade at higher cost")
	}
}

func TestNewBcryptCostRange(t *testing.T) {
	if _, err := NewBcrypt(bcrypt.MaxCost + 1); err == nil {
		t.Fatal("expected error for cost above max")
	}
	b, err := NewBcrypt(0)
	if err != nil {
		t.Fatalf("NewBcrypt(0) error: %v", err)
	}
	if b.cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", b.cost)
	}
}
