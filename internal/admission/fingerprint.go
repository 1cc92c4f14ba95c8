package admission

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Fingerprinter turns request attributes (client address, user agent,
// identity) into an opaque bucket key. The key is server-secret so
// fingerprints cannot be precomputed by clients.
type Fingerprinter struct {
	key [32]byte
}

func NewFingerprinter(key [32]byte) *Fingerprinter {
	return &Fingerprinter{key: key}
}

// Fingerprint hashes parts with separators and returns 32 hex chars.
func (f *Fingerprinter) Fingerprint(parts ...string) string {
	hasher, err := blake3.NewKeyed(f.key[:])
	if err != nil {
		panic("admission: blake3 keyed hash initialization failed: " + err.Error())
	}
	for _, p := range parts {
		hasher.Write([]byte(p))
		hasher.Write([]byte{0})
	}
	sum := hasher.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
