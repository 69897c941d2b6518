package jwtx

import (
	"errors"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

// KeySet maps kids to public keys. The bridge keeps one for its own signing
// keys and the identity provider client keeps another, replaced wholesale
// whenever the provider's JWKS is refetched.
type KeySet struct {
	mu   sync.RWMutex
	doc  JWKS
	byID map[string]any
}

func NewKeySet() *KeySet {
	return &KeySet{byID: make(map[string]any)}
}

// Add registers one key.
func (k *KeySet) Add(j JWK) error {
	pub, err := j.PublicKey()
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if _, dup := k.byID[j.Kid]; dup {
		return errors.New("jwtx: duplicate kid " + j.Kid)
	}
	k.byID[j.Kid] = pub
	k.doc.Keys = append(k.doc.Keys, j)
	return nil
}

// Replace swaps in every usable key of set. Entries that fail to decode are
// dropped; Replace fails, leaving the old keys in place, only when none
// decode.
func (k *KeySet) Replace(set JWKS) error {
	byID := make(map[string]any, len(set.Keys))
	doc := JWKS{Keys: make([]JWK, 0, len(set.Keys))}

	var lastErr error
	for _, j := range set.Keys {
		pub, err := j.PublicKey()
		if err != nil {
			lastErr = err
			continue
		}
		byID[j.Kid] = pub
		doc.Keys = append(doc.Keys, j)
	}
	if len(byID) == 0 {
		if lastErr == nil {
			lastErr = errors.New("jwtx: empty key set")
		}
		return lastErr
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.byID = byID
	k.doc = doc
	return nil
}

// Get returns the public key published under kid.
func (k *KeySet) Get(kid string) (any, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if pub, ok := k.byID[kid]; ok {
		return pub, nil
	}
	return nil, ErrNoKey
}

// JWKS is a snapshot of the set in publishable form.
func (k *KeySet) JWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return JWKS{Keys: append([]JWK(nil), k.doc.Keys...)}
}

func (k *KeySet) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.byID)
}
