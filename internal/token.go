package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// CredentialID is the random 16-byte identifier binding an access/refresh
// pair to its server-side session.
type CredentialID [16]byte

const (
	refreshTokenRawSize = 48
	refreshSecretSize   = 32
)

func NewCredentialID() (CredentialID, error) {
	var cid CredentialID
	_, err := rand.Read(cid[:])
	return cid, err
}

func (c CredentialID) Bytes() []byte {
	return c[:]
}

func (c CredentialID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(c[:])
}

func ParseCredentialID(credentialID string) (CredentialID, error) {
	var cid CredentialID

	raw, err := base64.RawURLEncoding.DecodeString(credentialID)
	if err != nil {
		return cid, err
	}
	if len(raw) != len(cid) {
		return cid, errors.New("invalid credential id size")
	}

	copy(cid[:], raw)
	return cid, nil
}

func NewRefreshSecret() ([refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashRefreshSecret(secret [refreshSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeRefreshToken packs the credential ID and secret into the opaque
// refresh token wire format: 48 raw bytes, base64url without padding.
func EncodeRefreshToken(credentialID string, secret [refreshSecretSize]byte) (string, error) {
	cid, err := ParseCredentialID(credentialID)
	if err != nil {
		return "", err
	}

	var raw [refreshTokenRawSize]byte
	copy(raw[:len(cid)], cid[:])
	copy(raw[len(cid):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

func DecodeRefreshToken(token string) (string, [refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, err
	}
	if len(raw) != refreshTokenRawSize {
		return "", secret, errors.New("invalid refresh token size")
	}

	var cid CredentialID
	copy(cid[:], raw[:len(cid)])
	copy(secret[:], raw[len(cid):])

	return cid.String(), secret, nil
}
