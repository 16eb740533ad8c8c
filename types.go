package auth

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// SessionStore is the remote service that issues and validates sessions.
type SessionStore interface {
	GetCurrentSession(ctx context.Context) (*Session, error)
	SignIn(ctx context.Context, credential Credential) (*Session, error)
	SignOut(ctx context.Context) error
	RefreshSession(ctx context.Context) (*Session, error)
	Subscribe(handler func(SessionEvent)) (unsubscribe func())
}

// UnitAssignment describes the condominium unit an actor is attached to
type UnitAssignment struct {
	ID     string `json:"id"`
	Number string `json:"number,omitempty"`
	Block  string `json:"block,omitempty"`
	Floor  string `json:"floor,omitempty"`
}

// EnrichmentRecord is the profile data looked up by subject id
type EnrichmentRecord struct {
	SubjectID   string          `json:"subject_id"`
	DisplayName string          `json:"display_name,omitempty"`
	ActorType   string          `json:"actor_type,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	Unit        *UnitAssignment `json:"unit,omitempty"`
}

// EnrichmentStore provides supplementary profile data keyed by subject id.
// FindBySubjectID returns (nil, nil) when no record exists.
type EnrichmentStore interface {
	FindBySubjectID(ctx context.Context, subjectID string) (*EnrichmentRecord, error)
}

// Redirector sends an actor somewhere else, e.g. the pending approval page
type Redirector interface {
	Redirect(ctx context.Context, destination string, identity *Identity)
}

// RedirectorFunc adapts a function into a Redirector.
type RedirectorFunc func(ctx context.Context, destination string, identity *Identity)

// Redirect satisfies the Redirector interface.
func (f RedirectorFunc) Redirect(ctx context.Context, destination string, identity *Identity) {
	if f == nil {
		return
	}
	f(ctx, destination, identity)
}

type logRedirector struct {
	logger Logger
}

func (r logRedirector) Redirect(_ context.Context, destination string, identity *Identity) {
	id := ""
	if identity != nil {
		id = identity.ID
	}
	r.logger.Info("redirecting subject %q to %s", id, destination)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
