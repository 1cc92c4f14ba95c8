package models

import "time"

// IdentityResponse is returned when a disposable identity is issued.
type IdentityResponse struct {
	Identity   IdentityView `json:"identity"`
	Credential string       `json:"credential"`
	ExpiresIn  int          `json:"expiresIn"`
}

// IdentityView is an identity as clients see it.
type IdentityView struct {
	DisplayID string    `json:"displayId"`
	IssuedAt  time.Time `json:"issuedAt"`
}

// VerifyRequest carries a credential to check.
type VerifyRequest struct {
	Credential string `json:"credential" binding:"required"`
}

// VerifyResponse reports whether a credential is currently valid.
type VerifyResponse struct {
	Valid     bool          `json:"valid"`
	Identity  *IdentityView `json:"identity,omitempty"`
	ExpiresAt *time.Time    `json:"expiresAt,omitempty"`
}

// RefreshResponse carries either a new credential or the unchanged one.
type RefreshResponse struct {
	Credential string `json:"credential"`
	ExpiresIn  int    `json:"expiresIn"`
	Refreshed  bool   `json:"refreshed"`
}
