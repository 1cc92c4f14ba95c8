package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/mossy-p/burner-signaling/internal/clock"
	"github.com/mossy-p/burner-signaling/internal/identity"
	"github.com/mossy-p/burner-signaling/internal/keyring"
	"github.com/mossy-p/burner-signaling/internal/models"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Mint a disposable identity and credential with the configured secret",
	Long: `Mint a disposable identity and credential offline, signed with the same key a
running server derives from its secret. Useful for exercising the WebSocket
endpoint from scripts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig("")
		if err != nil {
			return err
		}
		keys, err := keyring.New(cfg.JWTSecret)
		if err != nil {
			return err
		}
		key := keys.MustDerive(keyring.PurposeCredential)
		authority := identity.NewAuthority(key[:], clock.Real(), identity.Config{
			CredentialTTL: cfg.CredentialTTL,
			RefreshWindow: cfg.RefreshWindow,
		})

		cred, err := authority.IssueCredential(authority.IssueIdentity())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(models.IdentityResponse{
			Identity:   models.IdentityView{DisplayID: cred.Identity.DisplayID, IssuedAt: cred.Identity.IssuedAt},
			Credential: cred.Token,
			ExpiresIn:  int(cred.ExpiresIn(authority.Now()).Seconds()),
		})
	},
}
