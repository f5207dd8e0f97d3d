package models

import (
	"fmt"
	"time"
)

// Authorization is the OAuth token material issued by the gateway's auth
// endpoint. It is stored verbatim; a refresh replaces it wholesale.
type Authorization struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// Credential is a channel's stored authorization against the gateway.
// Exactly one variant is present per channel: a static API token that
// never expires, or an OAuth token pair with an expiry.
type Credential interface {
	// AuthorizationHeader returns the value for the Authorization header
	// on gateway requests.
	AuthorizationHeader() string
	// Expiring reports whether the credential needs periodic refreshing.
	Expiring() bool
}

// StaticToken is the pre-OAuth credential shape: a plain API token.
type StaticToken struct {
	Token string
}

func (t StaticToken) AuthorizationHeader() string {
	return fmt.Sprintf("Token %s", t.Token)
}

func (t StaticToken) Expiring() bool { return false }

// OAuthToken is the expiring credential shape.
type OAuthToken struct {
	Authorization Authorization
	ExpiresAt     time.Time
}

func (t OAuthToken) AuthorizationHeader() string {
	tokenType := t.Authorization.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return fmt.Sprintf("%s %s", tokenType, t.Authorization.AccessToken)
}

func (t OAuthToken) Expiring() bool { return true }
