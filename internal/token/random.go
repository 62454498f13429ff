package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// SecretSize is the raw entropy of an access or refresh token in bytes.
const SecretSize = 32

// Triple is a freshly minted session identity.
type Triple struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
}

// NewSessionID returns a random (version 4) UUID string.
func NewSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return id.String(), nil
}

// NewSecret returns SecretSize bytes of crypto/rand entropy, base64url
// encoded without padding.
func NewSecret() (string, error) {
	var raw [SecretSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewTriple mints a session id and two unrelated secrets.
func NewTriple() (Triple, error) {
	sid, err := NewSessionID()
	if err != nil {
		return Triple{}, err
	}
	access, err := NewSecret()
	if err != nil {
		return Triple{}, err
	}
	refresh, err := NewSecret()
	if err != nil {
		return Triple{}, err
	}
	if access == refresh {
		return Triple{}, errors.New("generate secret: duplicate output")
	}
	return Triple{SessionID: sid, AccessToken: access, RefreshToken: refresh}, nil
}

// Hash returns the SHA-256 digest of a bearer token.
func Hash(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// HashHex is Hash rendered as lowercase hex, the form used in index keys.
func HashHex(token string) string {
	h := Hash(token)
	return hex.EncodeToString(h[:])
}

// DigestHex renders an already computed digest as lowercase hex.
func DigestHex(digest [32]byte) string {
	return hex.EncodeToString(digest[:])
}
