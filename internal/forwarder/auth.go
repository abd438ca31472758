// Package forwarder streams game-state notifications to external consumers
// over WebSocket and gRPC. Both forwarders are decktracker emitters.
package forwarder

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthorized is returned when a client presents a wrong access token.
var ErrUnauthorized = errors.New("invalid access token")

// TokenChecker verifies client access tokens against a bcrypt hash. An empty
// hash accepts every client.
type TokenChecker struct {
	hash []byte
}

// NewTokenChecker creates a checker for the given bcrypt hash.
func NewTokenChecker(hash string) TokenChecker {
	return TokenChecker{hash: []byte(strings.TrimSpace(hash))}
}

// HashToken produces the hash to put in the configuration.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Check compares token with the configured hash.
func (c TokenChecker) Check(token string) error {
	if len(c.hash) == 0 {
		return nil
	}
	if token == "" || bcrypt.CompareHashAndPassword(c.hash, []byte(token)) != nil {
		return ErrUnauthorized
	}
	return nil
}

// tokenFromRequest reads a bearer token, falling back to the token query
// parameter for browser clients that cannot set headers on upgrade.
func tokenFromRequest(r *http.Request) string {
	if token, ok := bearer(r.Header.Get("Authorization")); ok {
		return token
	}
	return r.URL.Query().Get("token")
}

func bearer(value string) (string, bool) {
	const prefix = "Bearer "
	if len(value) > len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
		return strings.TrimSpace(value[len(prefix):]), true
	}
	return "", false
}
