package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mossy-p/burner-signaling/internal/apperr"
	"github.com/mossy-p/burner-signaling/internal/identity"
	"github.com/mossy-p/burner-signaling/internal/metrics"
	"github.com/mossy-p/burner-signaling/internal/models"
)

// Context keys set by the middleware in this package.
const (
	CredentialKey  = "credential"
	FingerprintKey = "fingerprint"
)

// JWTAuth requires a valid bearer credential in the Authorization header
// and stores it in the context under CredentialKey.
func JWTAuth(authority *identity.Authority, m *metrics.Metrics) gin.HandlerFunc {
	return auth(authority, m, false)
}

// WebSocketAuth is JWTAuth that also accepts the credential in the
// token query parameter, since browsers cannot set headers on a
// WebSocket upgrade.
func WebSocketAuth(authority *identity.Authority, m *metrics.Metrics) gin.HandlerFunc {
	return auth(authority, m, true)
}

func auth(authority *identity.Authority, m *metrics.Metrics, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearerToken(c, allowQuery)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		cred, ok := authority.Verify(tokenString)
		if !ok {
			m.Inc(metrics.CredentialsRejected)
			AbortWithError(c, apperr.New(apperr.AuthInvalid, "Invalid token"))
			return
		}

		c.Set(CredentialKey, cred)
		c.Next()
	}
}

func bearerToken(c *gin.Context, allowQuery bool) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if allowQuery {
			if token := c.Query("token"); token != "" {
				return token, nil
			}
		}
		return "", apperr.New(apperr.AuthInvalid, "Authorization header required")
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", apperr.New(apperr.AuthInvalid, "Invalid authorization header format")
	}
	return parts[1], nil
}

// CredentialFrom returns the credential stored by JWTAuth.
func CredentialFrom(c *gin.Context) (identity.Credential, bool) {
	v, ok := c.Get(CredentialKey)
	if !ok {
		return identity.Credential{}, false
	}
	cred, ok := v.(identity.Credential)
	return cred, ok
}

// AbortWithError ends the request with the status and body for err's
// class. Errors outside the taxonomy become a 500 with a generic body.
func AbortWithError(c *gin.Context, err error) {
	class := apperr.ClassOf(err)
	body := models.ErrorBody{
		Error:             apperr.PublicMessage(err),
		Class:             string(class),
		RetryAfterSeconds: apperr.RetryAfterSeconds(err),
	}
	if body.RetryAfterSeconds > 0 {
		c.Header("Retry-After", strconv.Itoa(body.RetryAfterSeconds))
	}
	status := apperr.HTTPStatus(class)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}
