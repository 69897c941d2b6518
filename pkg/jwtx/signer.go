package jwtx

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer holds one Ed25519 private key and the kid it is published under.
type Signer struct {
	kid string
	key ed25519.PrivateKey
}

// NewSigner loads a PKCS8 PEM Ed25519 private key.
func NewSigner(kid string, pemKey []byte) (*Signer, error) {
	if kid == "" {
		return nil, errors.New("jwtx: signer needs a kid")
	}

	block, _ := pem.Decode(pemKey)
	switch {
	case block == nil:
		return nil, errors.New("jwtx: signing key is not PEM")
	case block.Type != "PRIVATE KEY":
		return nil, fmt.Errorf("jwtx: expected a PKCS8 PRIVATE KEY block, got %q", block.Type)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok || len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("jwtx: signing key is %T, want Ed25519", parsed)
	}

	return &Signer{kid: kid, key: key}, nil
}

func (s *Signer) KID() string { return s.kid }

// Sign serializes claims as an EdDSA JWT with the signer's kid in the header.
func (s *Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

// PublicJWK is the entry published at the JWKS endpoint.
func (s *Signer) PublicJWK() JWK {
	return Ed25519JWK(s.kid, s.key.Public().(ed25519.PublicKey))
}
