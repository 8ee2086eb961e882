package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

const (
	formatVersion = 2

	// headerSize covers version, status and the three timestamps. The Lua
	// scripts address these offsets directly.
	headerSize = 26

	maxPrincipalLen = 1<<16 - 1
	maxScopes       = 255
	maxSessionIDLen = 255
)

// Encode serializes r. SessionID is not part of the blob; it is the key.
// Successor is the last field so the Lua scripts can rewrite it in place.
func Encode(r *Record) ([]byte, error) {
	if r.Principal == "" {
		return nil, errors.New("principal is empty")
	}
	if len(r.Principal) > maxPrincipalLen {
		return nil, errors.New("principal too long")
	}
	if len(r.Role) > 255 {
		return nil, errors.New("role too long")
	}
	if len(r.Scopes) > maxScopes {
		return nil, errors.New("too many scopes")
	}
	if len(r.Successor) > maxSessionIDLen {
		return nil, errors.New("successor id too long")
	}
	if r.Successor != "" && r.Status != StatusRevoked {
		return nil, errors.New("active session with successor")
	}

	var buf bytes.Buffer
	buf.Grow(headerSize + 2 + len(r.Principal) + 1 + len(r.Role) + 1 + 16*len(r.Scopes) + 1 + len(r.Successor))

	buf.WriteByte(formatVersion)
	buf.WriteByte(byte(r.Status))
	writeMillis(&buf, r.CreatedAt)
	writeMillis(&buf, r.RotatedAt)
	writeMillis(&buf, r.ExpiresAt)

	_ = binary.Write(&buf, binary.BigEndian, uint16(len(r.Principal)))
	buf.WriteString(r.Principal)

	buf.WriteByte(byte(len(r.Role)))
	buf.WriteString(r.Role)

	buf.WriteByte(byte(len(r.Scopes)))
	for _, scope := range r.Scopes {
		if scope == "" || len(scope) > 255 {
			return nil, errors.New("invalid scope length")
		}
		buf.WriteByte(byte(len(scope)))
		buf.WriteString(scope)
	}

	buf.WriteByte(byte(len(r.Successor)))
	buf.WriteString(r.Successor)

	return buf.Bytes(), nil
}

// Decode parses a blob written by Encode. The returned record has no
// SessionID.
func Decode(data []byte) (*Record, error) {
	if len(data) < headerSize+2 {
		return nil, errors.New("session blob too short")
	}
	if data[0] != formatVersion {
		return nil, errors.New("unsupported session format version")
	}

	buf := bytes.NewReader(data[1:])
	rec := &Record{}

	status, _ := buf.ReadByte()
	if Status(status) != StatusActive && Status(status) != StatusRevoked {
		return nil, errors.New("invalid session status")
	}
	rec.Status = Status(status)

	var err error
	if rec.CreatedAt, err = readMillis(buf); err != nil {
		return nil, err
	}
	if rec.RotatedAt, err = readMillis(buf); err != nil {
		return nil, err
	}
	if rec.ExpiresAt, err = readMillis(buf); err != nil {
		return nil, err
	}

	var principalLen uint16
	if err := binary.Read(buf, binary.BigEndian, &principalLen); err != nil {
		return nil, err
	}
	if principalLen == 0 {
		return nil, errors.New("empty principal")
	}
	principal := make([]byte, principalLen)
	if _, err := io.ReadFull(buf, principal); err != nil {
		return nil, err
	}
	rec.Principal = string(principal)

	if rec.Role, err = readShortString(buf); err != nil {
		return nil, err
	}

	count, err := buf.ReadByte()
	if err != nil {
		return nil, err
	}
	if count > 0 {
		rec.Scopes = make([]string, 0, count)
		for i := 0; i < int(count); i++ {
			scope, err := readShortString(buf)
			if err != nil {
				return nil, err
			}
			if scope == "" {
				return nil, errors.New("empty scope")
			}
			rec.Scopes = append(rec.Scopes, scope)
		}
	}

	if rec.Successor, err = readShortString(buf); err != nil {
		return nil, err
	}
	if rec.Successor != "" && rec.Status != StatusRevoked {
		return nil, errors.New("active session with successor")
	}

	if buf.Len() != 0 {
		return nil, errors.New("trailing bytes in session blob")
	}
	return rec, nil
}

func writeMillis(buf *bytes.Buffer, t time.Time) {
	var ms int64
	if !t.IsZero() {
		ms = t.UnixMilli()
	}
	_ = binary.Write(buf, binary.BigEndian, ms)
}

func readMillis(r io.Reader) (time.Time, error) {
	var ms int64
	if err := binary.Read(r, binary.BigEndian, &ms); err != nil {
		return time.Time{}, err
	}
	if ms < 0 {
		return time.Time{}, errors.New("negative timestamp")
	}
	if ms == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms), nil
}

func readShortString(buf *bytes.Reader) (string, error) {
	n, err := buf.ReadByte()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(buf, out); err != nil {
		return "", err
	}
	return string(out), nil
}
