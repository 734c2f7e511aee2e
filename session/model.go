package session

import (
	"encoding/binary"
	"errors"
)

// CurrentSchemaVersion is the encoding version written by [Encode].
const CurrentSchemaVersion = 1

// Session is the server-side state of one issued credential pair. It is
// keyed by credential ID and stores only the hash of the current refresh
// secret; the plaintext secret never touches Redis.
type Session struct {
	// CredentialID is not encoded; it is restored from the Redis key.
	CredentialID string

	Subject     string
	Domain      string
	RefreshHash [32]byte
	CreatedAt   int64 // unix seconds
	ExpiresAt   int64 // unix seconds, refresh-token lifetime bound

	SchemaVersion uint8
}

var (
	// ErrSessionTooLarge is returned when subject or domain exceed the
	// single-byte length prefix.
	ErrSessionTooLarge = errors.New("session field too large")
	// ErrSessionCorrupt is returned when a stored blob fails decoding.
	ErrSessionCorrupt = errors.New("session blob corrupt")
)

// Encode serializes a session into the compact binary layout consumed by the
// store's Lua scripts:
//
//	[version:1][subLen:1][subject][domLen:1][domain][refreshHash:32][createdAt:8][expiresAt:8]
//
// The refresh hash sits at a position computable from the two length bytes,
// which is what lets the rotation script CAS it in place.
func Encode(s *Session) ([]byte, error) {
	if len(s.Subject) == 0 || len(s.Subject) > 255 {
		return nil, ErrSessionTooLarge
	}
	if len(s.Domain) > 255 {
		return nil, ErrSessionTooLarge
	}

	size := 1 + 1 + len(s.Subject) + 1 + len(s.Domain) + 32 + 8 + 8
	out := make([]byte, 0, size)

	out = append(out, CurrentSchemaVersion)
	out = append(out, byte(len(s.Subject)))
	out = append(out, s.Subject...)
	out = append(out, byte(len(s.Domain)))
	out = append(out, s.Domain...)
	out = append(out, s.RefreshHash[:]...)
	out = binary.BigEndian.AppendUint64(out, uint64(s.CreatedAt))
	out = binary.BigEndian.AppendUint64(out, uint64(s.ExpiresAt))

	return out, nil
}

// Decode parses a stored session blob. CredentialID is left empty; callers
// set it from the key they read.
func Decode(data []byte) (*Session, error) {
	if len(data) < 2 {
		return nil, ErrSessionCorrupt
	}
	version := data[0]
	if version != CurrentSchemaVersion {
		return nil, ErrSessionCorrupt
	}

	idx := 1
	subLen := int(data[idx])
	idx++
	if subLen == 0 || len(data) < idx+subLen+1 {
		return nil, ErrSessionCorrupt
	}
	subject := string(data[idx : idx+subLen])
	idx += subLen

	domLen := int(data[idx])
	idx++
	if len(data) != idx+domLen+32+8+8 {
		return nil, ErrSessionCorrupt
	}
	domain := string(data[idx : idx+domLen])
	idx += domLen

	var hash [32]byte
	copy(hash[:], data[idx:idx+32])
	idx += 32

	createdAt := int64(binary.BigEndian.Uint64(data[idx : idx+8]))
	idx += 8
	expiresAt := int64(binary.BigEndian.Uint64(data[idx : idx+8]))

	return &Session{
		Subject:       subject,
		Domain:        domain,
		RefreshHash:   hash,
		CreatedAt:     createdAt,
		ExpiresAt:     expiresAt,
		SchemaVersion: version,
	}, nil
}
