package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mossy-p/burner-signaling/internal/clock"
)

const (
	DefaultCredentialTTL = time.Hour
	// DefaultRefreshWindow is how close to expiry a credential must be
	// before Refresh issues a replacement.
	DefaultRefreshWindow = 10 * time.Minute
)

// Credential is a signed bearer token and the facts it carries.
type Credential struct {
	Token     string    `json:"token"`
	ID        string    `json:"-"`
	Identity  Identity  `json:"identity"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ExpiresIn is the remaining lifetime at now, never negative.
func (c Credential) ExpiresIn(now time.Time) time.Duration {
	if d := c.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// credentialClaims are the JWT claims. Subject holds the display id and
// idt the identity's own issue time, which survives refreshes.
type credentialClaims struct {
	IdentityIssuedAt int64 `json:"idt"`
	jwt.RegisteredClaims
}

// Config tunes credential lifetimes.
type Config struct {
	CredentialTTL time.Duration
	RefreshWindow time.Duration
}

// Authority issues and verifies credentials. It is safe for concurrent use.
type Authority struct {
	key           []byte
	clock         clock.Clock
	ttl           time.Duration
	refreshWindow time.Duration
	revoked       *Revocations
}

// NewAuthority returns an Authority signing with key (HS256).
func NewAuthority(key []byte, clk clock.Clock, cfg Config) *Authority {
	if clk == nil {
		clk = clock.Real()
	}
	if cfg.CredentialTTL <= 0 {
		cfg.CredentialTTL = DefaultCredentialTTL
	}
	if cfg.RefreshWindow <= 0 {
		cfg.RefreshWindow = DefaultRefreshWindow
	}
	return &Authority{
		key:           key,
		clock:         clk,
		ttl:           cfg.CredentialTTL,
		refreshWindow: cfg.RefreshWindow,
		revoked:       NewRevocations(),
	}
}

// IssueIdentity returns a fresh disposable identity.
func (a *Authority) IssueIdentity() Identity {
	return Identity{
		DisplayID: newDisplayID(),
		IssuedAt:  a.now(),
	}
}

// IssueCredential signs a credential for id with the configured lifetime.
func (a *Authority) IssueCredential(id Identity) (Credential, error) {
	if id.IsZero() {
		return Credential{}, errors.New("identity: cannot issue credential for empty identity")
	}
	now := a.now()
	expiresAt := now.Add(a.ttl)
	jti := uuid.New().String()

	claims := credentialClaims{
		IdentityIssuedAt: id.IssuedAt.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.DisplayID,
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.key)
	if err != nil {
		return Credential{}, fmt.Errorf("identity: sign credential: %w", err)
	}

	return Credential{
		Token:     signed,
		ID:        jti,
		Identity:  Identity{DisplayID: id.DisplayID, IssuedAt: time.Unix(id.IssuedAt.Unix(), 0).UTC()},
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks the signature, expiry and revocation status of token.
// Every failure collapses into ok == false.
func (a *Authority) Verify(token string) (Credential, bool) {
	claims, err := a.parse(token)
	if err != nil {
		return Credential{}, false
	}
	if a.revoked.IsRevoked(claims.ID) {
		return Credential{}, false
	}
	return Credential{
		Token: token,
		ID:    claims.ID,
		Identity: Identity{
			DisplayID: claims.Subject,
			IssuedAt:  time.Unix(claims.IdentityIssuedAt, 0).UTC(),
		},
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, true
}

// Refresh returns a replacement credential when token expires within the
// refresh window. Otherwise it returns the presented credential unchanged
// with refreshed == false. ok is false when token does not verify.
func (a *Authority) Refresh(token string) (cred Credential, refreshed bool, ok bool) {
	current, ok := a.Verify(token)
	if !ok {
		return Credential{}, false, false
	}
	if current.ExpiresAt.Sub(a.now()) >= a.refreshWindow {
		return current, false, true
	}
	next, err := a.IssueCredential(current.Identity)
	if err != nil {
		return Credential{}, false, false
	}
	return next, true, true
}

// Revoke burns token early. It reports whether the token was valid.
func (a *Authority) Revoke(token string) bool {
	cred, ok := a.Verify(token)
	if !ok {
		return false
	}
	a.revoked.Revoke(cred.ID, cred.ExpiresAt)
	return true
}

// Sweep drops revocation entries whose credentials have expired anyway.
func (a *Authority) Sweep(now time.Time) int {
	return a.revoked.Cleanup(now)
}

// TTL is the lifetime given to new credentials.
func (a *Authority) TTL() time.Duration { return a.ttl }

// Now exposes the authority's clock to handlers computing expiresIn.
func (a *Authority) Now() time.Time { return a.clock.Now() }

func (a *Authority) parse(token string) (*credentialClaims, error) {
	claims := &credentialClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.clock.Now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, errors.New("identity: incomplete claims")
	}
	return claims, nil
}

// now is truncated to whole seconds so that the times we report match
// what the JWT NumericDate claims encode.
func (a *Authority) now() time.Time {
	return a.clock.Now().Truncate(time.Second)
}
