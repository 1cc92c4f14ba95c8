package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mossy-p/burner-signaling/internal/admission"
	"github.com/mossy-p/burner-signaling/internal/clock"
	"github.com/mossy-p/burner-signaling/internal/identity"
	"github.com/mossy-p/burner-signaling/internal/metrics"
	"github.com/mossy-p/burner-signaling/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthority(t *testing.T) (*identity.Authority, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return identity.NewAuthority([]byte("0123456789abcdef0123456789abcdef"), clk, identity.Config{}), clk
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorBody {
	t.Helper()
	var body models.ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestJWTAuth(t *testing.T) {
	authority, clk := newAuthority(t)
	m := metrics.New()
	cred, err := authority.IssueCredential(authority.IssueIdentity())
	if err != nil {
		t.Fatal(err)
	}

	router := gin.New()
	router.GET("/rest", JWTAuth(authority, m), func(c *gin.Context) {
		got, ok := CredentialFrom(c)
		if !ok {
			t.Error("credential missing from context")
		}
		c.String(http.StatusOK, got.Identity.DisplayID)
	})
	router.GET("/ws", WebSocketAuth(authority, m), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"valid bearer", "/rest", "Bearer " + cred.Token, http.StatusOK},
		{"missing header", "/rest", "", http.StatusUnauthorized},
		{"wrong scheme", "/rest", "Basic " + cred.Token, http.StatusUnauthorized},
		{"garbage token", "/rest", "Bearer nope", http.StatusUnauthorized},
		{"query token on rest", "/rest?token=" + cred.Token, "", http.StatusUnauthorized},
		{"query token on ws", "/ws?token=" + cred.Token, "", http.StatusOK},
		{"header on ws", "/ws", "Bearer " + cred.Token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			if tt.want == http.StatusOK && tt.path == "/rest" && w.Body.String() != cred.Identity.DisplayID {
				t.Errorf("display id = %q, want %q", w.Body.String(), cred.Identity.DisplayID)
			}
			if tt.want == http.StatusUnauthorized {
				if body := decodeError(t, w); body.Class != "auth_invalid" {
					t.Errorf("class = %q, want auth_invalid", body.Class)
				}
			}
		})
	}

	if got := m.Get(metrics.CredentialsRejected); got != 1 {
		t.Errorf("credentials_rejected = %d, want 1", got)
	}

	t.Run("expired", func(t *testing.T) {
		clk.Advance(2 * time.Hour)
		req := httptest.NewRequest(http.MethodGet, "/rest", nil)
		req.Header.Set("Authorization", "Bearer "+cred.Token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
	})
}

func TestAdmit(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	policies := map[admission.Class]admission.Policy{
		admission.ClassInfo: {Points: 2, Window: time.Minute, Block: 90 * time.Second},
	}
	limiter := admission.NewLimiter(policies, nil, clk, nil, nil)
	fp := admission.NewFingerprinter([32]byte{1})

	router := gin.New()
	router.Use(Fingerprint(fp))
	router.GET("/info", Admit(limiter, admission.ClassInfo), func(c *gin.Context) {
		if FingerprintFrom(c) == "" {
			t.Error("fingerprint missing")
		}
		c.Status(http.StatusOK)
	})

	do := func(ua string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/info", nil)
		req.Header.Set("User-Agent", ua)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := do("a"); w.Code != http.StatusOK {
			t.Fatalf("attempt %d: status = %d", i, w.Code)
		}
	}
	w := do("a")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "90" {
		t.Errorf("Retry-After = %q, want 90", got)
	}
	body := decodeError(t, w)
	if body.Class != "rate_limited" || body.RetryAfterSeconds != 90 {
		t.Errorf("body = %+v", body)
	}

	if w := do("b"); w.Code != http.StatusOK {
		t.Errorf("other fingerprint: status = %d, want 200", w.Code)
	}
}

func TestOriginFilter(t *testing.T) {
	router := gin.New()
	router.Use(OriginFilter([]string{"https://app.example"}))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name       string
		method     string
		origin     string
		want       int
		wantHeader string
	}{
		{"no origin", http.MethodGet, "", http.StatusOK, ""},
		{"allowed", http.MethodGet, "https://app.example", http.StatusOK, "https://app.example"},
		{"denied", http.MethodGet, "https://evil.example", http.StatusForbidden, ""},
		{"preflight", http.MethodOptions, "https://app.example", http.StatusNoContent, "https://app.example"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/x", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("allow origin = %q, want %q", got, tt.wantHeader)
			}
		})
	}
}
