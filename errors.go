package auth

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeConcurrentOperation = "SESSION_CONCURRENT_OPERATION"
	TextCodeInvalidCredentials  = "SESSION_INVALID_CREDENTIALS"
	TextCodeApprovalPending     = "SESSION_APPROVAL_PENDING"
	TextCodeNoSession           = "SESSION_NOT_FOUND"
	TextCodeTimeout             = "SESSION_TIMEOUT"
	TextCodeSecretLogin         = "SESSION_SECRET_LOGIN_DISABLED"
	TextCodeStoreUnavailable    = "SESSION_STORE_UNAVAILABLE"
	TextCodeSuperseded          = "SESSION_SUPERSEDED"
)

// ErrConcurrentOperation is returned when a login is attempted while another one is in flight
var ErrConcurrentOperation = goerrors.New("another login is already in progress", goerrors.CategoryConflict).
	WithTextCode(TextCodeConcurrentOperation).
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials is returned when the session store rejects a credential
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrApprovalPending is returned when the actor authenticated but is not approved yet
var ErrApprovalPending = goerrors.New("account pending approval", goerrors.CategoryAuth).
	WithTextCode(TextCodeApprovalPending).
	WithCode(goerrors.CodeForbidden)

// ErrNoSession is returned when there is no session to act on
var ErrNoSession = goerrors.New("no active session", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNoSession).
	WithCode(goerrors.CodeNotFound)

// ErrTimeout is returned when a bounded wait expires
var ErrTimeout = goerrors.New("operation timed out", goerrors.CategoryOperation).
	WithTextCode(TextCodeTimeout)

// ErrSecretLoginDisabled is returned when no system identifier is configured for secret logins
var ErrSecretLoginDisabled = goerrors.New("secret login is not configured", goerrors.CategoryBadInput).
	WithTextCode(TextCodeSecretLogin).
	WithCode(goerrors.CodeBadRequest)

// ErrSessionStoreUnavailable wraps transport failures talking to the session store
var ErrSessionStoreUnavailable = goerrors.New("session store unavailable", goerrors.CategoryInternal).
	WithTextCode(TextCodeStoreUnavailable).
	WithCode(goerrors.CodeInternal)

// ErrSuperseded is returned when a logout overtook a pending login or refresh
var ErrSuperseded = goerrors.New("operation superseded by logout", goerrors.CategoryConflict).
	WithTextCode(TextCodeSuperseded).
	WithCode(goerrors.CodeConflict)

// IsTimeoutError reports whether err came from a bounded wait
func IsTimeoutError(err error) bool {
	return hasTextCode(err, TextCodeTimeout)
}

// IsConcurrentOperation reports whether err is a reentrant login rejection
func IsConcurrentOperation(err error) bool {
	return hasTextCode(err, TextCodeConcurrentOperation)
}

// IsInvalidCredentials reports whether err is a rejected credential
func IsInvalidCredentials(err error) bool {
	return hasTextCode(err, TextCodeInvalidCredentials)
}

// IsApprovalPending reports whether err is a pending approval outcome
func IsApprovalPending(err error) bool {
	return hasTextCode(err, TextCodeApprovalPending)
}

// IsNoSession reports whether err means there was no session to act on
func IsNoSession(err error) bool {
	return hasTextCode(err, TextCodeNoSession)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		if richErr.TextCode == code {
			return true
		}
		if richErr.Source != nil {
			return hasTextCode(richErr.Source, code)
		}
		return false
	}
	return hasTextCode(errors.Unwrap(err), code)
}

// wrapError clones base, keeps err as the source and attaches metadata.
func wrapError(base *goerrors.Error, err error, meta map[string]any) error {
	if base == nil {
		return err
	}

	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if err != nil {
		clone.Source = err
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}
