package password

import "errors"

var (
	ErrEmptyPassword   = errors.New("password must not be empty")
	ErrMalformedHash   = errors.New("malformed password hash")
	ErrUnsupportedHash = errors.New("unsupported password hash")
)

// Hasher produces and checks encoded password hashes. Verify returns
// (false, nil) for a wrong password and an error only for an unusable
// hash.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	NeedsUpgrade(encoded string) (bool, error)
}

type scheme interface {
	Hasher
	handles(encoded string) bool
}

// Multi hashes with its primary scheme and verifies any supported one,
// chosen by the hash prefix. Hashes from a non-primary scheme always need
// an upgrade.
type Multi struct {
	primary scheme
	schemes []scheme
}

// NewMulti returns a Multi hashing with primary. Argon2 and Bcrypt are the
// supported schemes.
func NewMulti(primary Hasher, others ...Hasher) (*Multi, error) {
	p, ok := primary.(scheme)
	if !ok {
		return nil, errors.New("unsupported primary hasher")
	}
	m := &Multi{primary: p, schemes: []scheme{p}}
	for _, h := range others {
		s, ok := h.(scheme)
		if !ok {
			return nil, errors.New("unsupported hasher")
		}
		m.schemes = append(m.schemes, s)
	}
	return m, nil
}

// Default returns a Multi that hashes with argon2id defaults and also
// verifies bcrypt.
func Default() *Multi {
	a, _ := NewArgon2(DefaultArgon2Config())
	b, _ := NewBcrypt(0)
	m, _ := NewMulti(a, b)
	return m
}

func (m *Multi) Hash(password string) (string, error) {
	return m.primary.Hash(password)
}

func (m *Multi) Verify(password, encoded string) (bool, error) {
	s := m.schemeFor(encoded)
	if s == nil {
		return false, ErrUnsupportedHash
	}
	return s.Verify(password, encoded)
}

func (m *Multi) NeedsUpgrade(encoded string) (bool, error) {
	s := m.schemeFor(encoded)
	if s == nil {
		return false, ErrUnsupportedHash
	}
	if s != m.primary {
		return true, nil
	}
	return s.NeedsUpgrade(encoded)
}

func (m *Multi) schemeFor(encoded string) scheme {
	for _, s := range m.schemes {
		if s.handles(encoded) {
			return s
		}
	}
	return nil
}
