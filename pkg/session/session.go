// Package session holds the process-wide bearer credential and the identity
// of the signed-in account, and persists both between runs.
package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/grovetools/bnb/pkg/models"
)

// Well-known durable storage keys.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// Session is an authenticated credential and the identity it belongs to.
type Session struct {
	Token    string          `json:"-"`
	Identity models.Identity `json:"identity"`
	// ExpiresAt is read from the token's exp claim without verifying the
	// signature. It is zero for tokens that carry no expiry.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the token's advertised expiry has passed. The
// server remains the authority; a false result does not mean it will be
// accepted.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Credentials are the login form fields.
type Credentials struct {
	Email    string
	Password string
}

// Reason names why the session changed.
type Reason string

const (
	ReasonLogin    Reason = "login"
	ReasonRegister Reason = "register"
	ReasonRestore  Reason = "restore"
	ReasonIdentity Reason = "identity"
	ReasonLogout   Reason = "logout"
	ReasonExpired  Reason = "expired"
)

// Transition is published to subscribers. Session is nil when the holder
// became anonymous.
type Transition struct {
	Reason  Reason
	Session *Session
}

// Authenticated reports whether the transition left a session in place.
func (t Transition) Authenticated() bool {
	return t.Session != nil
}

func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
