// Package identity issues disposable display identities and the signed,
// time-bound bearer credentials that carry them. Nothing about an
// identity is stored server-side; the credential is the only record.
package identity

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Identity is a disposable display label. Two identities are the same
// person only if both fields match.
type Identity struct {
	DisplayID string    `json:"displayId"`
	IssuedAt  time.Time `json:"issuedAt"`
}

// Same reports whether a and b refer to the same issued identity.
func (a Identity) Same(b Identity) bool {
	return a.DisplayID == b.DisplayID && a.IssuedAt.Unix() == b.IssuedAt.Unix()
}

func (a Identity) IsZero() bool { return a.DisplayID == "" }

// newDisplayID returns "adjective-animal-NNNN". Collisions are tolerated.
func newDisplayID() string {
	adjective := adjectives[randomIndex(len(adjectives))]
	animal := animals[randomIndex(len(animals))]
	suffix := 1000 + randomIndex(9000)
	return fmt.Sprintf("%s-%s-%d", adjective, animal, suffix)
}

// randomIndex returns a cryptographically random index in [0, max).
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic("identity: crypto/rand failed: " + err.Error())
	}
	return int(n.Int64())
}
