// Package keyring derives purpose-bound subkeys from the server's master
// secret so that the credential signer, fingerprint hasher and passcode
// digester never share key material.
package keyring

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the length of every derived key. blake3 keyed mode requires
// exactly 32 bytes.
const KeySize = 32

// Purposes. Changing a label invalidates every value derived under it.
const (
	PurposeCredential  = "burner-signaling/credential/v1"
	PurposeFingerprint = "burner-signaling/fingerprint/v1"
	PurposePasscode    = "burner-signaling/passcode/v1"
)

var ErrEmptySecret = errors.New("keyring: master secret is empty")

// Keyring holds a master secret and hands out derived keys.
type Keyring struct {
	master []byte
}

// New returns a Keyring for the given master secret.
func New(master string) (*Keyring, error) {
	if master == "" {
		return nil, ErrEmptySecret
	}
	return &Keyring{master: []byte(master)}, nil
}

// Derive returns the 32-byte key bound to purpose.
func (k *Keyring) Derive(purpose string) ([KeySize]byte, error) {
	var key [KeySize]byte
	r := hkdf.New(sha256.New, k.master, nil, []byte(purpose))
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return key, fmt.Errorf("keyring: derive %s: %w", purpose, err)
	}
	return key, nil
}

// MustDerive is Derive for purposes fixed at compile time.
func (k *Keyring) MustDerive(purpose string) [KeySize]byte {
	key, err := k.Derive(purpose)
	if err != nil {
		panic(err)
	}
	return key
}
