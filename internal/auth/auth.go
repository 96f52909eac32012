package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// CredentialKey is the key-value entry holding the persisted [Credential].
const CredentialKey = "drive_access_token"

// State is the credential lifecycle state.
type State int

const (
	SignedOut State = iota
	SignedIn
	Expired
	Public
)

func (s State) String() string {
	switch s {
	case SignedOut:
		return "signed_out"
	case SignedIn:
		return "signed_in"
	case Expired:
		return "expired"
	case Public:
		return "public"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StateChange is delivered to subscribers on every transition.
type StateChange struct {
	From State
	To   State
	Err  error // cause of the transition, if any
}

// Credential is an issued token and its assumed expiry.
type Credential struct {
	Token            *oauth2.Token `json:"token"`
	IssuedAtEpochMs  int64         `json:"issuedAtEpochMs"`
	ExpiresAtEpochMs int64         `json:"expiresAtEpochMs"`
}

// ExpiresAt returns the assumed expiry as a [time.Time].
func (c Credential) ExpiresAt() time.Time {
	return time.UnixMilli(c.ExpiresAtEpochMs)
}

// AccessToken returns the bearer token, or "" for an empty credential.
func (c Credential) AccessToken() string {
	if c.Token == nil {
		return ""
	}
	return c.Token.AccessToken
}

func newCredential(tok *oauth2.Token, now time.Time, ttl time.Duration) Credential {
	return Credential{
		Token:            tok,
		IssuedAtEpochMs:  now.UnixMilli(),
		ExpiresAtEpochMs: now.Add(ttl).UnixMilli(),
	}
}

func decodeCredential(raw string) (*Credential, error) {
	var c Credential
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, err
	}
	if c.AccessToken() == "" {
		return nil, fmt.Errorf("credential has no access token")
	}
	return &c, nil
}

// TokenProvider obtains tokens from the identity provider.
type TokenProvider interface {
	// Interactive runs a user-facing consent flow.
	Interactive(ctx context.Context) (*oauth2.Token, error)

	// Silent obtains a fresh token without user interaction, typically from current's refresh token.
	// A nil token with a nil error counts as failure.
	Silent(ctx context.Context, current *oauth2.Token) (*oauth2.Token, error)

	// Revoke invalidates tok at the provider; best effort.
	Revoke(ctx context.Context, tok *oauth2.Token) error
}

// KV is the persistent key-value store backing the credential.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// Clearer removes derived persisted state on sign-out.
type Clearer func() error
