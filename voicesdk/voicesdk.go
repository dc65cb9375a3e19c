/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Telnyx LLC
 */

// Package voicesdk provides the core building blocks shared by the voice
// signaling client: configuration, credentials, the error taxonomy, the
// event observer registry, and the custom header wire type.
package voicesdk

import (
	"fmt"
	"log"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// Logger is the interface for SDK logging. Any logger that implements Printf
// (such as the standard library's *log.Logger) can be used.
type Logger interface {
	Printf(format string, v ...any)
}

// Credentials identify the user to the signaling gateway. Either a login
// token or a username/password pair must be provided.
type Credentials struct {
	// LoginToken is an on-demand credential (JWT) minted by the application
	// backend. Takes precedence over Login/Password when set.
	LoginToken string

	// Login and Password are SIP connection credentials.
	Login    string
	Password string

	// SessionID is an optional identifier to reattach to a previous session.
	// When empty, the gateway assigns a new one at login.
	SessionID string
}

// Validate returns an error if the credentials cannot be used for a login.
func (c *Credentials) Validate() error {
	if c.LoginToken == "" && (c.Login == "" || c.Password == "") {
		return fmt.Errorf("credentials require either a login token or login and password")
	}
	return nil
}

// tokenSignatureAlgorithms lists the JWS algorithms accepted when inspecting
// a login token's claims.
var tokenSignatureAlgorithms = []jose.SignatureAlgorithm{
	jose.HS256, jose.RS256, jose.RS512, jose.ES256, jose.ES512, jose.PS256,
}

// TokenExpiry extracts the expiry claim from a login token without verifying
// its signature. Verification happens at the gateway; the client only uses
// the claim to warn about tokens that will not survive a reconnect window.
// Returns a zero time if the token carries no expiry claim.
func TokenExpiry(token string) (time.Time, error) {
	parsed, err := jwt.ParseSigned(token, tokenSignatureAlgorithms)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse login token: %w", err)
	}

	var claims jwt.Claims
	if err := parsed.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to read login token claims: %w", err)
	}

	if claims.Expiry == nil {
		return time.Time{}, nil
	}
	return claims.Expiry.Time(), nil
}

// Config holds the configuration shared across the SDK.
type Config struct {
	// GatewayURL is the websocket URL of the signaling gateway.
	GatewayURL string

	// ReconnectTimeout bounds the reconnection control loop. When the timer
	// expires before connectivity returns, the attempt is abandoned and
	// dropped calls stay dropped.
	ReconnectTimeout time.Duration

	// PendingActionDelay is the settle delay between constructing an inbound
	// call and executing an externally queued answer/end action against it.
	PendingActionDelay time.Duration

	// Logger is the logger for SDK operations. If nil, the standard
	// library's default logger (log.Default()) is used.
	Logger Logger
}

// DefaultConfig returns the default configuration for the SDK.
func DefaultConfig() *Config {
	return &Config{
		GatewayURL:         "wss://rtc.telnyx.com",
		ReconnectTimeout:   60 * time.Second,
		PendingActionDelay: 1 * time.Second,
	}
}

// GetLogger returns the configured logger, falling back to log.Default().
func (c *Config) GetLogger() Logger {
	if c == nil || c.Logger == nil {
		return log.Default()
	}
	return c.Logger
}
