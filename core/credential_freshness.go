package core

import (
	"time"
)

const (
	DefaultTokenExpiringSoonWindow = 5 * time.Minute
	DefaultTokenRefreshLeadWindow  = 5 * time.Minute
)

// TokenState captures the decrypted-token lifecycle flags for a connection.
// The orchestrator consults it before provider calls to decide whether a
// proactive refresh is worth attempting.
type TokenState struct {
	ExpiresAt       *time.Time
	HasAccessToken  bool
	HasRefreshToken bool
	IsExpired       bool
	IsExpiringSoon  bool
}

// ResolveTokenState evaluates expiry flags for a connection's stored tokens.
// Absent expiry means the token never expires on its own.
func ResolveTokenState(now time.Time, conn Connection, expiringSoonWindow time.Duration) TokenState {
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}
	if expiringSoonWindow <= 0 {
		expiringSoonWindow = DefaultTokenExpiringSoonWindow
	}

	state := TokenState{
		HasAccessToken:  len(conn.EncryptedAccessToken) > 0,
		HasRefreshToken: len(conn.EncryptedRefreshToken) > 0,
	}
	if conn.TokenExpiresAt == nil {
		return state
	}
	expiresAt := conn.TokenExpiresAt.UTC()
	state.ExpiresAt = &expiresAt
	if !expiresAt.After(now) {
		state.IsExpired = true
		return state
	}
	state.IsExpiringSoon = !expiresAt.After(now.Add(expiringSoonWindow))
	return state
}

// ShouldRefreshToken reports whether a refresh should run before provider
// operations: only when a refresh token exists, and either the access token
// is missing or its expiry falls inside the lead window.
func ShouldRefreshToken(now time.Time, state TokenState, refreshLeadWindow time.Duration) bool {
	if !state.HasRefreshToken {
		return false
	}
	if !state.HasAccessToken {
		return true
	}
	if state.ExpiresAt == nil {
		return false
	}
	if refreshLeadWindow <= 0 {
		refreshLeadWindow = DefaultTokenRefreshLeadWindow
	}
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}
	return !state.ExpiresAt.UTC().After(now.Add(refreshLeadWindow))
}
