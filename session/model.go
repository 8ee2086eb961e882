package session

import "time"

// Status is the lifecycle state of a session record.
type Status uint8

const (
	StatusActive  Status = 0
	StatusRevoked Status = 1
)

// Subject is the identity a session is created for.
type Subject struct {
	Principal string
	Role      string
	Scopes    []string
}

// Record is a decoded session.
type Record struct {
	SessionID string
	Principal string
	Role      string
	Scopes    []string
	Status    Status
	CreatedAt time.Time
	RotatedAt time.Time
	ExpiresAt time.Time

	// Successor is set on a record retired by Rotate and names the session
	// that replaced it.
	Successor string
}

// Live reports whether the record is active and unexpired at now.
func (r *Record) Live(now time.Time) bool {
	return r != nil && r.Status == StatusActive && now.Before(r.ExpiresAt)
}

// Subject returns the identity carried by the record.
func (r *Record) Subject() Subject {
	return Subject{Principal: r.Principal, Role: r.Role, Scopes: r.Scopes}
}
