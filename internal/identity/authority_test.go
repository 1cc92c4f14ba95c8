package identity

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mossy-p/burner-signaling/internal/clock"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestAuthority(t *testing.T) (*Authority, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	return NewAuthority(testKey, clk, Config{}), clk
}

func TestIssueIdentity_DisplayIDFormat(t *testing.T) {
	a, _ := newTestAuthority(t)
	pattern := regexp.MustCompile(`^[a-z]+-[a-z]+-[0-9]{4}$`)

	for i := 0; i < 20; i++ {
		id := a.IssueIdentity()
		if !pattern.MatchString(id.DisplayID) {
			t.Fatalf("display id %q does not match %s", id.DisplayID, pattern)
		}
	}
}

func TestVerify_SucceedsImmediatelyAndFailsAfterExpiry(t *testing.T) {
	a, clk := newTestAuthority(t)

	id := a.IssueIdentity()
	cred, err := a.IssueCredential(id)
	if err != nil {
		t.Fatalf("IssueCredential: %v", err)
	}
	if got := cred.ExpiresAt.Sub(cred.IssuedAt); got != time.Hour {
		t.Fatalf("lifetime = %v, want 1h", got)
	}

	verified, ok := a.Verify(cred.Token)
	if !ok {
		t.Fatal("fresh credential did not verify")
	}
	if !verified.Identity.Same(id) {
		t.Fatalf("verified identity = %+v, want %+v", verified.Identity, id)
	}

	clk.Advance(59 * time.Minute)
	if _, ok := a.Verify(cred.Token); !ok {
		t.Fatal("credential should still be valid before expiresAt")
	}

	clk.Advance(time.Minute)
	if _, ok := a.Verify(cred.Token); ok {
		t.Fatal("credential verified at expiresAt")
	}
}

func TestVerify_FailsClosed(t *testing.T) {
	a, _ := newTestAuthority(t)
	cred, err := a.IssueCredential(a.IssueIdentity())
	if err != nil {
		t.Fatalf("IssueCredential: %v", err)
	}

	other := NewAuthority([]byte("another-key-another-key-another!"), clock.NewFake(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)), Config{})

	noneToken, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "tiny-fox-1234", "jti": "x", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		auth  *Authority
		token string
	}{
		{"empty", a, ""},
		{"garbage", a, "not-a-jwt"},
		{"truncated", a, cred.Token[:len(cred.Token)-4]},
		{"tampered payload", a, strings.Replace(cred.Token, ".", ".e", 1)},
		{"wrong key", other, cred.Token},
		{"alg none", a, noneToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := tt.auth.Verify(tt.token); ok {
				t.Fatal("expected verification to fail")
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	a, clk := newTestAuthority(t)
	id := a.IssueIdentity()
	cred, err := a.IssueCredential(id)
	if err != nil {
		t.Fatalf("IssueCredential: %v", err)
	}

	clk.Advance(45 * time.Minute)
	same, refreshed, ok := a.Refresh(cred.Token)
	if !ok || refreshed {
		t.Fatalf("Refresh at 15m remaining: ok=%v refreshed=%v, want ok and unchanged", ok, refreshed)
	}
	if same.Token != cred.Token {
		t.Fatal("unchanged refresh returned a different token")
	}
	if got := same.ExpiresIn(clk.Now()); got != 15*time.Minute {
		t.Fatalf("remaining lifetime = %v, want 15m", got)
	}

	clk.Advance(6 * time.Minute)
	next, refreshed, ok := a.Refresh(cred.Token)
	if !ok || !refreshed {
		t.Fatalf("Refresh at 9m remaining: ok=%v refreshed=%v, want a new credential", ok, refreshed)
	}
	if !next.ExpiresAt.After(cred.ExpiresAt) {
		t.Fatalf("refreshed expiry %v not after original %v", next.ExpiresAt, cred.ExpiresAt)
	}
	if !next.Identity.Same(id) {
		t.Fatal("refresh changed the identity")
	}

	if _, _, ok := a.Refresh("garbage"); ok {
		t.Fatal("refresh of an invalid token succeeded")
	}
}

func TestRevoke(t *testing.T) {
	a, clk := newTestAuthority(t)
	cred, _ := a.IssueCredential(a.IssueIdentity())

	if !a.Revoke(cred.Token) {
		t.Fatal("Revoke of a valid credential returned false")
	}
	if _, ok := a.Verify(cred.Token); ok {
		t.Fatal("revoked credential still verifies")
	}
	if a.Revoke(cred.Token) {
		t.Fatal("second Revoke should report an invalid token")
	}

	if removed := a.Sweep(clk.Now()); removed != 0 {
		t.Fatalf("Sweep before expiry removed %d entries", removed)
	}
	clk.Advance(time.Hour)
	if removed := a.Sweep(clk.Now()); removed != 1 {
		t.Fatalf("Sweep after expiry removed %d entries, want 1", removed)
	}
}
