package ledger

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// keyInfo domain-separates audit signing keys from any future derivation.
const keyInfo = "veritrail/audit-signing/v1"

// Keyring derives per-tenant ed25519 signing keys from a single deployment
// master key. Tenant keys never touch disk; they are re-derived on demand.
type Keyring struct {
	master []byte
}

// NewKeyring creates a Keyring. The master key must be at least 32 bytes.
func NewKeyring(master []byte) (*Keyring, error) {
	if len(master) < 32 {
		return nil, errors.New("ledger: master key must be at least 32 bytes")
	}
	k := make([]byte, len(master))
	copy(k, master)
	return &Keyring{master: k}, nil
}

// signerFor derives the signing key for one organization. The org ID is the
// HKDF salt, so tenants can never forge entries in each other's chains.
func (kr *Keyring) signerFor(orgID uuid.UUID) (ed25519.PrivateKey, error) {
	r := hkdf.New(sha256.New, kr.master, orgID[:], []byte(keyInfo))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, fmt.Errorf("ledger.Keyring.signerFor: %w", err)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// PublicKey returns the verification key for one organization's chains.
func (kr *Keyring) PublicKey(orgID uuid.UUID) (ed25519.PublicKey, error) {
	priv, err := kr.signerFor(orgID)
	if err != nil {
		return nil, err
	}
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("ledger: unexpected public key type")
	}
	return pub, nil
}
