package jwtx

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

// KeySet holds the identity provider's Ed25519 verification keys by kid.
// It's safe for concurrent use so keys can be swapped while serving.
type KeySet struct {
	mu  sync.RWMutex
	pub map[string]ed25519.PublicKey
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{pub: make(map[string]ed25519.PublicKey)}
}

// Add registers a public key under kid, replacing any previous one.
func (k *KeySet) Add(kid string, pub ed25519.PublicKey) error {
	if len(pub) != ed25519.PublicKeySize {
		return errors.New("jwtx: invalid Ed25519 public key size")
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pub[kid] = pub
	return nil
}

// AddSigner registers the public half of an EdDSA signer.
func (k *KeySet) AddSigner(s *EdDSASigner) error {
	return k.Add(s.KID(), s.pub)
}

// Get returns the public key for the given kid. An empty kid resolves only
// when the set holds exactly one key.
func (k *KeySet) Get(kid string) (ed25519.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if kid == "" {
		if len(k.pub) == 1 {
			for _, pk := range k.pub {
				return pk, nil
			}
		}
		return nil, ErrNoKey
	}

	if pk, ok := k.pub[kid]; ok {
		return pk, nil
	}
	return nil, ErrNoKey
}

// IsReady returns true if the KeySet has at least one key loaded.
func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.pub) > 0
}

// LoadKeySetPEM parses one or more "PUBLIC KEY" PEM blocks (PKIX, Ed25519).
// The kid comes from a "kid" PEM header; blocks without one are numbered
// "key-0", "key-1", ... in file order.
func LoadKeySetPEM(data []byte) (*KeySet, error) {
	ks := NewKeySet()

	for i := 0; ; i++ {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "PUBLIC KEY" {
			return nil, fmt.Errorf("jwtx: expected PUBLIC KEY, got %q", block.Type)
		}

		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKIX: %w", err)
		}
		pub, ok := parsed.(ed25519.PublicKey)
		if !ok {
			return nil, errors.New("jwtx: not an Ed25519 public key")
		}

		kid := block.Headers["kid"]
		if kid == "" {
			kid = fmt.Sprintf("key-%d", i)
		}
		if err := ks.Add(kid, pub); err != nil {
			return nil, err
		}
	}

	if !ks.IsReady() {
		return nil, errors.New("jwtx: no public keys found in PEM")
	}
	return ks, nil
}

// LoadKeySetFile reads a PEM file and parses it with LoadKeySetPEM.
func LoadKeySetFile(path string) (*KeySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jwtx: read public key file: %w", err)
	}
	return LoadKeySetPEM(data)
}

// MarshalPublicKeyPEM encodes pub as a PKIX "PUBLIC KEY" block tagged with kid.
func MarshalPublicKeyPEM(kid string, pub ed25519.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("jwtx: marshal PKIX: %w", err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	if kid != "" {
		block.Headers = map[string]string{"kid": kid}
	}
	return pem.EncodeToMemory(block), nil
}
