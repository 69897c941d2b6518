package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

// PKCEMethodS256 is the only code challenge method the bridge accepts.
const PKCEMethodS256 = "S256"

// RFC 7636 section 4.1 bounds for the verifier length.
const (
	MinVerifierLength = 43
	MaxVerifierLength = 128
)

var ErrInvalidVerifier = errors.New("cryptox: invalid pkce verifier")

// PKCEChallenge derives the S256 challenge for verifier:
// base64url(sha256(verifier)) without padding.
func PKCEChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyPKCE recomputes the challenge for verifier and compares it against
// the stored challenge in constant time.
func VerifyPKCE(verifier, challenge string) bool {
	if verifier == "" || challenge == "" {
		return false
	}
	computed := PKCEChallenge(verifier)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

// GeneratePKCEVerifier returns a fresh 256-bit verifier (43 chars).
func GeneratePKCEVerifier() (string, error) {
	return GenerateToken(TokenSize256)
}

// ValidateVerifier checks the verifier against the unreserved character set
// and length limits.
func ValidateVerifier(verifier string) error {
	if len(verifier) < MinVerifierLength || len(verifier) > MaxVerifierLength {
		return ErrInvalidVerifier
	}
	for i := 0; i < len(verifier); i++ {
		c := verifier[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-' || c == '.' || c == '_' || c == '~':
		default:
			return ErrInvalidVerifier
		}
	}
	return nil
}

// ValidateChallenge checks the shape of an S256 challenge (43 base64url chars).
func ValidateChallenge(challenge string) error {
	if len(challenge) != 43 {
		return ErrInvalidVerifier
	}
	if _, err := base64.RawURLEncoding.DecodeString(challenge); err != nil {
		return ErrInvalidVerifier
	}
	return nil
}
