package sessionstore

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeEmptyPassword    = "ACCOUNT_EMPTY_PASSWORD"
	TextCodePasswordMismatch = "ACCOUNT_PASSWORD_MISMATCH"
	TextCodeTokenExpired     = "SESSION_TOKEN_EXPIRED"
	TextCodeTokenMalformed   = "SESSION_TOKEN_MALFORMED"
	TextCodeTokenType        = "SESSION_TOKEN_WRONG_TYPE"
)

var ErrEmptyPassword = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

var ErrPasswordMismatch = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenExpired = goerrors.New("session token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenMalformed = goerrors.New("session token malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

var ErrWrongTokenType = goerrors.New("unexpected session token type", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenType).
	WithCode(goerrors.CodeUnauthorized)
