package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/mossy-p/burner-signaling/internal/admission"
)

// Fingerprint derives the admission key for the request from the client
// address and user agent.
func Fingerprint(fp *admission.Fingerprinter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(FingerprintKey, fp.Fingerprint(c.ClientIP(), c.Request.UserAgent()))
		c.Next()
	}
}

// FingerprintFrom returns the key stored by Fingerprint.
func FingerprintFrom(c *gin.Context) string {
	return c.GetString(FingerprintKey)
}

// Admit spends one point of class before the handler runs and rejects
// the request with 429 when the budget is exhausted.
func Admit(l *admission.Limiter, class admission.Class) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := l.Check(c.Request.Context(), class, FingerprintFrom(c)); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
