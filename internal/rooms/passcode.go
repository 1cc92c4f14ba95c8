package rooms

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"

	"github.com/zeebo/blake3"
)

// codeChars omits characters that are easy to misread (0/O, 1/I).
const codeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	generatedPasscodeLength = 6
	minPasscodeLength       = 4
	maxPasscodeLength       = 32
)

type passcodeDigest struct {
	salt [16]byte
	sum  [32]byte
}

// passcodes digests passcodes with a server key and a per-room salt so
// the plaintext is never kept.
type passcodes struct {
	key [32]byte
}

func (p passcodes) digest(passcode string) (*passcodeDigest, error) {
	d := &passcodeDigest{}
	if _, err := rand.Read(d.salt[:]); err != nil {
		return nil, fmt.Errorf("passcode salt: %w", err)
	}
	d.sum = p.sum(d.salt, passcode)
	return d, nil
}

func (p passcodes) matches(d *passcodeDigest, passcode string) bool {
	got := p.sum(d.salt, passcode)
	return subtle.ConstantTimeCompare(got[:], d.sum[:]) == 1
}

func (p passcodes) sum(salt [16]byte, passcode string) [32]byte {
	h, err := blake3.NewKeyed(p.key[:])
	if err != nil {
		panic("rooms: blake3 keyed hash initialization failed: " + err.Error())
	}
	h.Write(salt[:])
	h.Write([]byte(passcode))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func generatePasscode() (string, error) {
	b := make([]byte, generatedPasscodeLength)
	max := big.NewInt(int64(len(codeChars)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate passcode: %w", err)
		}
		b[i] = codeChars[n.Int64()]
	}
	return string(b), nil
}
