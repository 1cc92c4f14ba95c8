package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mossy-p/burner-signaling/internal/apperr"
	"github.com/mossy-p/burner-signaling/internal/identity"
	"github.com/mossy-p/burner-signaling/internal/metrics"
	"github.com/mossy-p/burner-signaling/internal/middleware"
	"github.com/mossy-p/burner-signaling/internal/models"
)

// IssueIdentity mints a disposable identity and its first credential.
func IssueIdentity(authority *identity.Authority, m *metrics.Metrics, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := authority.IssueIdentity()
		cred, err := authority.IssueCredential(id)
		if err != nil {
			logger.Error("failed to issue credential", "err", err)
			middleware.AbortWithError(c, err)
			return
		}
		m.Inc(metrics.IdentitiesIssued)
		logger.Debug("identity issued", "display_id", id.DisplayID)

		c.JSON(http.StatusCreated, models.IdentityResponse{
			Identity:   identityView(cred.Identity),
			Credential: cred.Token,
			ExpiresIn:  seconds(cred, authority),
		})
	}
}

// VerifyCredential reports whether the posted credential is currently
// valid. An invalid credential is a normal answer, not an error.
func VerifyCredential(authority *identity.Authority) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.VerifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.AbortWithError(c, apperr.Invalid("Invalid request body"))
			return
		}

		cred, ok := authority.Verify(req.Credential)
		if !ok {
			c.JSON(http.StatusOK, models.VerifyResponse{Valid: false})
			return
		}
		view := identityView(cred.Identity)
		expiresAt := cred.ExpiresAt
		c.JSON(http.StatusOK, models.VerifyResponse{
			Valid:     true,
			Identity:  &view,
			ExpiresAt: &expiresAt,
		})
	}
}

// RefreshCredential replaces the bearer credential when it is close to
// expiry and otherwise hands it back unchanged.
func RefreshCredential(authority *identity.Authority) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := middleware.CredentialFrom(c)
		if !ok {
			middleware.AbortWithError(c, apperr.New(apperr.AuthInvalid, "User not authenticated"))
			return
		}

		cred, refreshed, ok := authority.Refresh(current.Token)
		if !ok {
			middleware.AbortWithError(c, apperr.New(apperr.AuthInvalid, "Invalid token"))
			return
		}
		c.JSON(http.StatusOK, models.RefreshResponse{
			Credential: cred.Token,
			ExpiresIn:  seconds(cred, authority),
			Refreshed:  refreshed,
		})
	}
}

// BurnCredential revokes the bearer credential ahead of its expiry.
func BurnCredential(authority *identity.Authority, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := middleware.CredentialFrom(c)
		if !ok {
			middleware.AbortWithError(c, apperr.New(apperr.AuthInvalid, "User not authenticated"))
			return
		}
		if !authority.Revoke(current.Token) {
			middleware.AbortWithError(c, apperr.New(apperr.AuthInvalid, "Invalid token"))
			return
		}
		logger.Info("credential burned", "display_id", current.Identity.DisplayID)
		c.JSON(http.StatusOK, gin.H{"revoked": true})
	}
}

func identityView(id identity.Identity) models.IdentityView {
	return models.IdentityView{DisplayID: id.DisplayID, IssuedAt: id.IssuedAt}
}

func seconds(cred identity.Credential, authority *identity.Authority) int {
	return int(cred.ExpiresIn(authority.Now()).Seconds())
}
