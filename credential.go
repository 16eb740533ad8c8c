package auth

import (
	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// Credential is what a SessionStore needs to sign an actor in
type Credential struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

// Validate checks the credential is complete before any I/O happens
func (c Credential) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Identifier, validation.Required, validation.Length(1, 320)),
		validation.Field(&c.Secret, validation.Required),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid credential").
			WithTextCode(TextCodeInvalidCredentials).
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}

// String never prints the secret
func (c Credential) String() string {
	return "credential{" + c.Identifier + "}"
}
