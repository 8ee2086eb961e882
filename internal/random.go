package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// SessionID is the 128-bit random identifier of a refresh session.
type SessionID [16]byte

func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

// NewSessionIDString returns a fresh id in its wire form.
func NewSessionIDString() (string, error) {
	sid, err := NewSessionID()
	if err != nil {
		return "", err
	}
	return sid.String(), nil
}

func (s SessionID) String() string {
	// base64url, no padding, 22 chars
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// ParseSessionID rejects anything that NewSessionID could not have produced.
func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}

// ValidSessionID reports whether s is a well-formed session id.
func ValidSessionID(s string) bool {
	_, err := ParseSessionID(s)
	return err == nil
}
