package auth

import (
	"fmt"
	"time"
)

// Session is the raw session issued by a SessionStore. It carries the
// subject, the opaque tokens and the two claim bundles the engine reads.
// The engine never mutates a Session.
type Session struct {
	UserID       string         `json:"user_id"`
	Email        string         `json:"email,omitempty"`
	AccessToken  string         `json:"access_token,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time      `json:"expires_at,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
}

// Claims returns the typed projection of the session claim bundles
func (s *Session) Claims() ClaimSet {
	if s == nil {
		return ClaimSet{}
	}
	return ParseClaims(s.AppMetadata, s.UserMetadata)
}

// SessionEventKind tags the notifications a SessionStore emits
type SessionEventKind string

const (
	EventInitialSession SessionEventKind = "INITIAL_SESSION"
	EventSignedIn       SessionEventKind = "SIGNED_IN"
	EventSignedOut      SessionEventKind = "SIGNED_OUT"
	EventTokenRefreshed SessionEventKind = "TOKEN_REFRESHED"
	EventUserUpdated    SessionEventKind = "USER_UPDATED"
)

// SessionEvent is a single session change notification
type SessionEvent struct {
	Kind    SessionEventKind
	Session *Session
}

// IsExpired reports whether the access token lifetime has passed
func (s *Session) IsExpired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

func (s Session) String() string {
	return fmt.Sprintf(
		"user=%s email=%s exp=%s app=%v user_meta=%v",
		s.UserID,
		s.Email,
		s.ExpiresAt.Format(time.RFC1123),
		s.AppMetadata,
		s.UserMetadata,
	)
}
