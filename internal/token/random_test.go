package token

import (
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
)

func TestNewTripleProducesIndependentValues(t *testing.T) {
	seen := make(map[string]struct{}, 300)
	for i := 0; i < 100; i++ {
		tr, err := NewTriple()
		if err != nil {
			t.Fatalf("NewTriple: %v", err)
		}
		if _, err := uuid.Parse(tr.SessionID); err != nil {
			t.Fatalf("session id is not a uuid: %q", tr.SessionID)
		}
		for _, v := range []string{tr.SessionID, tr.AccessToken, tr.RefreshToken} {
			if _, dup := seen[v]; dup {
				t.Fatalf("duplicate value generated: %q", v)
			}
			seen[v] = struct{}{}
		}
	}
}

func TestNewSecretCarries256Bits(t *testing.T) {
	secret, err := NewSecret()
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(secret)
	if err != nil {
		t.Fatalf("decode secret: %v", err)
	}
	if len(raw) != SecretSize {
		t.Fatalf("expected %d raw bytes, got %d", SecretSize, len(raw))
	}
}

func TestHashHexMatchesDigestHex(t *testing.T) {
	if HashHex("abc") != DigestHex(Hash("abc")) {
		t.Fatal("HashHex and DigestHex disagree")
	}
	if len(HashHex("abc")) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(HashHex("abc")))
	}
	if HashHex("abc") == HashHex("abd") {
		t.Fatal("distinct tokens must hash differently")
	}
}
