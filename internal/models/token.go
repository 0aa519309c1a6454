package models

import (
	"time"

	"github.com/google/uuid"
)

// Purpose of server side token
type TokenPurpose string

const (
	TokenPurposeRefresh       TokenPurpose = "REFRESH"
	TokenPurposeResetPassword TokenPurpose = "RESET_PASSWORD"
)

// Token persisted in the ledger: one live row per user per purpose
type ServerToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Value     string
	Purpose   TokenPurpose
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the token is not valid at 'now'
// The token is already expired at the exact expiry instant
func (t ServerToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Flavor of self-contained bearer token. Every flavor is signed with its own key
type TokenFlavor string

const (
	TokenFlavorAccess  TokenFlavor = "access"
	TokenFlavorRefresh TokenFlavor = "refresh"
)

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Result of every successful authentication flow
// RefreshToken is empty when the flow does not issue one (federated login)
type AuthResult struct {
	User         Profile `json:"user"`
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token,omitempty"`
}
