package jwtx

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/aussiebroadwan/seatbridge/pkg/cryptox"
)

// AlgorithmEdDSA is the only algorithm the bridge signs with.
const AlgorithmEdDSA = "EdDSA"

const maxEphemeralKeys = 10

// KeyManager owns the bridge's signing keys together with the KeySet and
// Verifier built from their public halves. Each mint picks a signer at
// random.
type KeyManager struct {
	KeySet   *KeySet
	Verifier *Verifier

	signers []*Signer
}

type KeyManagerOptions struct {
	Issuer   string   // required
	Audience []string // empty disables the aud check
	Leeway   time.Duration

	// NumKeys is the number of ephemeral keys to generate, 1 to 10.
	NumKeys int
}

// NewEphemeralKeyManager generates keys in memory. Tokens die with the
// process, which only development can live with.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	n := min(max(opts.NumKeys, 1), maxEphemeralKeys)

	signers := make([]*Signer, n)
	for i := range signers {
		pemKey, err := cryptox.GenerateEd25519Key()
		if err != nil {
			return nil, fmt.Errorf("jwtx: generate ephemeral key: %w", err)
		}
		token, err := cryptox.GenerateToken(cryptox.TokenSize128)
		if err != nil {
			return nil, fmt.Errorf("jwtx: generate kid: %w", err)
		}
		if signers[i], err = NewSigner("ephemeral-"+token, pemKey); err != nil {
			return nil, err
		}
	}

	return NewKeyManager(signers, opts)
}

// NewKeyManagerFromPEM loads a single persistent Ed25519 key.
func NewKeyManagerFromPEM(kid string, pemKey []byte, opts KeyManagerOptions) (*KeyManager, error) {
	signer, err := NewSigner(kid, pemKey)
	if err != nil {
		return nil, err
	}
	return NewKeyManager([]*Signer{signer}, opts)
}

func NewKeyManager(signers []*Signer, opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, errors.New("jwtx: issuer is required")
	}
	if len(signers) == 0 {
		return nil, errors.New("jwtx: no signing keys")
	}

	keys := NewKeySet()
	for _, s := range signers {
		if err := keys.Add(s.PublicJWK()); err != nil {
			return nil, err
		}
	}

	return &KeyManager{
		KeySet:   keys,
		Verifier: NewVerifier(keys, opts.Issuer, opts.Audience, opts.Leeway),
		signers:  signers,
	}, nil
}

func (km *KeyManager) IsReady() bool {
	return km.KeySet.Len() > 0
}

// Signer returns one of the signing keys.
func (km *KeyManager) Signer() *Signer {
	if len(km.signers) == 1 {
		return km.signers[0]
	}
	return km.signers[rand.IntN(len(km.signers))]
}

func (km *KeyManager) SignerCount() int {
	return len(km.signers)
}
