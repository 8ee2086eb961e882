package identity

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/jwtauth"
	"github.com/MrEthical07/jwtauth/password"
)

func testHasher(t *testing.T) *password.Multi {
	t.Helper()
	a, err := password.NewArgon2(password.Argon2Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	b, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt: %v", err)
	}
	m, err := password.NewMulti(a, b)
	if err != nil {
		t.Fatalf("NewMulti: %v", err)
	}
	return m
}

func newTestStore(t *testing.T) *StaticStore {
	t.Helper()
	h := testHasher(t)

	aliceHash, err := h.Hash("alice-password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	// bob was imported from a bcrypt system.
	bobHash, err := bcrypt.GenerateFromPassword([]byte("bob-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	s, err := NewStaticStore(h, []User{
		{Principal: "alice", PasswordHash: aliceHash, Role: "admin", Scopes: []string{"read", "write"}},
		{Principal: "bob", PasswordHash: string(bobHash), Role: "user"},
	})
	if err != nil {
		t.Fatalf("NewStaticStore: %v", err)
	}
	return s
}

func TestStaticStoreVerify(t *testing.T) {
	s := newTestStore(t)

	ident, err := s.Verify(context.Background(), jwtauth.Credentials{Principal: "alice", Password: "alice-password"})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ident.Principal != "alice" || ident.Role != "admin" || len(ident.Scopes) != 2 {
		t.Fatalf("unexpected identity: %+v", ident)
	}

	ident, err = s.Verify(context.Background(), jwtauth.Credentials{Principal: "bob", Password: "bob-password"})
	if err != nil {
		t.Fatalf("bcrypt user Verify: %v", err)
	}
	if ident.Role != "user" {
		t.Fatalf("unexpected identity: %+v", ident)
	}
}

func TestStaticStoreRejectsBadCredentials(t *testing.T) {
	s := newTestStore(t)

	cases := []jwtauth.Credentials{
		{Principal: "alice", Password: "wrong"},
		{Principal: "bob", Password: ""},
		{Principal: "mallory", Password: "alice-password"},
		{Principal: "", Password: ""},
	}
	for _, creds := range cases {
		if _, err := s.Verify(context.Background(), creds); !errors.Is(err, jwtauth.ErrInvalidCredentials) {
			t.Fatalf("%+v: expected ErrInvalidCredentials, got %v", creds, err)
		}
	}
}

func TestStaticStoreCanceledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Verify(ctx, jwtauth.Credentials{Principal: "alice", Password: "alice-password"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, jwtauth.ErrInvalidCredentials) {
		t.Fatal("cancellation must not look like bad credentials")
	}
}

func TestStaticStoreNeedsRehash(t *testing.T) {
	s := newTestStore(t)

	if s.NeedsRehash("alice") {
		t.Fatal("argon2id hash should be current")
	}
	if !s.NeedsRehash("bob") {
		t.Fatal("bcrypt hash should need a rehash")
	}
	if s.NeedsRehash("nobody") {
		t.Fatal("unknown principal should not need a rehash")
	}
}

func TestNewStaticStoreValidation(t *testing.T) {
	h := testHasher(t)
	good, _ := h.Hash("pw-value")

	cases := map[string][]User{
		"blank principal": {{Principal: " ", PasswordHash: good}},
		"duplicate":       {{Principal: "a", PasswordHash: good}, {Principal: "a", PasswordHash: good}},
		"bad hash":        {{Principal: "a", PasswordHash: "plaintext"}},
	}
	for name, users := range cases {
		if _, err := NewStaticStore(h, users); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := NewStaticStore(nil, nil); err == nil {
		t.Fatal("expected error for nil hasher")
	}
}
