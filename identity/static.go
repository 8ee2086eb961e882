// Package identity provides an in-memory [jwtauth.IdentityStore] backed by
// password hashes.
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrEthical07/jwtauth"
	"github.com/MrEthical07/jwtauth/password"
)

// User is one credential record. PasswordHash is an argon2id PHC string or
// a bcrypt hash.
type User struct {
	Principal    string   `mapstructure:"principal"`
	PasswordHash string   `mapstructure:"password_hash"`
	Role         string   `mapstructure:"role"`
	Scopes       []string `mapstructure:"scopes"`
}

var _ jwtauth.IdentityStore = (*StaticStore)(nil)

// StaticStore verifies credentials against a fixed set of users.
// Unknown principals are checked against a dummy hash so the response time
// does not reveal whether the principal exists.
type StaticStore struct {
	hasher password.Hasher
	users  map[string]User
	dummy  string
}

// NewStaticStore validates every user's hash with hasher and indexes the
// users by principal.
func NewStaticStore(hasher password.Hasher, users []User) (*StaticStore, error) {
	if hasher == nil {
		return nil, fmt.Errorf("identity: hasher is required")
	}

	s := &StaticStore{hasher: hasher, users: make(map[string]User, len(users))}
	for i, u := range users {
		u.Principal = strings.TrimSpace(u.Principal)
		if u.Principal == "" {
			return nil, fmt.Errorf("identity: user %d has no principal", i)
		}
		if _, dup := s.users[u.Principal]; dup {
			return nil, fmt.Errorf("identity: duplicate principal %q", u.Principal)
		}
		if _, err := hasher.NeedsUpgrade(u.PasswordHash); err != nil {
			return nil, fmt.Errorf("identity: user %q: %w", u.Principal, err)
		}
		u.Scopes = append([]string(nil), u.Scopes...)
		s.users[u.Principal] = u
	}

	dummy, err := hasher.Hash("jwtauth-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("identity: dummy hash: %w", err)
	}
	s.dummy = dummy
	return s, nil
}

func (s *StaticStore) Verify(ctx context.Context, creds jwtauth.Credentials) (jwtauth.Identity, error) {
	if err := ctx.Err(); err != nil {
		return jwtauth.Identity{}, err
	}

	u, known := s.users[creds.Principal]
	hash := u.PasswordHash
	if !known {
		hash = s.dummy
	}

	ok, err := s.hasher.Verify(creds.Password, hash)
	if err != nil {
		return jwtauth.Identity{}, fmt.Errorf("identity: verify %q: %w", creds.Principal, err)
	}
	if !known || !ok {
		return jwtauth.Identity{}, jwtauth.ErrInvalidCredentials
	}

	return jwtauth.Identity{
		Principal: u.Principal,
		Role:      u.Role,
		Scopes:    append([]string(nil), u.Scopes...),
	}, nil
}

// NeedsRehash reports whether principal's stored hash should be replaced
// with one from the primary hasher.
func (s *StaticStore) NeedsRehash(principal string) bool {
	u, ok := s.users[principal]
	if !ok {
		return false
	}
	up, err := s.hasher.NeedsUpgrade(u.PasswordHash)
	return err == nil && up
}

// Len returns the number of users.
func (s *StaticStore) Len() int {
	return len(s.users)
}
