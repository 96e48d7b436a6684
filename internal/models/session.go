package models

import "time"

type AuthEventType string

const (
	EventSignedIn       AuthEventType = "SIGNED_IN"
	EventSignedOut      AuthEventType = "SIGNED_OUT"
	EventTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEventType = "USER_UPDATED"
)

// Session is an authenticated session issued by the auth provider.
type Session struct {
	ID           string    `json:"id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user"`
}

// AuthEvent is published on every auth-state change. It never carries tokens.
// User is nil for sign-out; SessionID always names the session the event
// applies to.
type AuthEvent struct {
	Type       AuthEventType `json:"type"`
	SessionID  string        `json:"session_id"`
	User       *User         `json:"user,omitempty"`
	PrevUserID string        `json:"prev_user_id,omitempty"`
	ExpiresAt  time.Time     `json:"expires_at,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// AuthState is what handlers see for the current request: who is signed in,
// their profile, and whether resolution is still in flight.
type AuthState struct {
	User    *User    `json:"user"`
	Session *Session `json:"-"`
	Profile *Profile `json:"profile"`
	Loading bool     `json:"loading"`
}

func (s *AuthState) Role() (UserRole, bool) {
	if s == nil || s.Profile == nil {
		return "", false
	}
	return s.Profile.Role, true
}

func (s *AuthState) Authenticated() bool {
	return s != nil && s.User != nil
}

// SignUpResult carries the outcome of a sign-up. Session is nil when the
// provider requires email confirmation first; ConfirmationToken is then set
// if the provider leaves delivering it to the caller.
type SignUpResult struct {
	User              *User
	Session           *Session
	ConfirmationToken string
}
