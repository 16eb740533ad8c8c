package auth

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joeshaw/envdecode"
)

const (
	DefaultSessionTimeout      = 2500 * time.Millisecond
	DefaultEnrichTimeout       = 800 * time.Millisecond
	DefaultWatchdogTimeout     = 3 * time.Second
	DefaultOperationTimeout    = 10 * time.Second
	DefaultPendingApprovalPath = "/pending-approval"
)

// Config holds the session engine options. Values can be loaded from the
// environment with LoadConfig.
type Config struct {
	// SuperadminID is the subject id that bypasses the approval gate. ENV: CONDO_SUPERADMIN_ID
	SuperadminID string `env:"CONDO_SUPERADMIN_ID"`
	// SessionTimeout bounds the startup "get current session" query. ENV: CONDO_SESSION_TIMEOUT
	SessionTimeout time.Duration `env:"CONDO_SESSION_TIMEOUT,default=2500ms"`
	// EnrichTimeout bounds the enrichment lookup. ENV: CONDO_ENRICH_TIMEOUT
	EnrichTimeout time.Duration `env:"CONDO_ENRICH_TIMEOUT,default=800ms"`
	// WatchdogTimeout forces the loading flag off during startup. ENV: CONDO_WATCHDOG_TIMEOUT
	WatchdogTimeout time.Duration `env:"CONDO_WATCHDOG_TIMEOUT,default=3s"`
	// OperationTimeout bounds sign in, sign out and refresh calls. ENV: CONDO_OPERATION_TIMEOUT
	OperationTimeout time.Duration `env:"CONDO_OPERATION_TIMEOUT,default=10s"`
	// SecretLoginIdentifier is the system account used by LoginWithSecret. ENV: CONDO_SECRET_LOGIN_IDENTIFIER
	SecretLoginIdentifier string `env:"CONDO_SECRET_LOGIN_IDENTIFIER"`
	// PendingApprovalPath is where unapproved actors are redirected. ENV: CONDO_PENDING_APPROVAL_PATH
	PendingApprovalPath string `env:"CONDO_PENDING_APPROVAL_PATH,default=/pending-approval"`
}

// DefaultConfig returns a Config with the recommended timings.
func DefaultConfig() Config {
	return Config{
		SessionTimeout:      DefaultSessionTimeout,
		EnrichTimeout:       DefaultEnrichTimeout,
		WatchdogTimeout:     DefaultWatchdogTimeout,
		OperationTimeout:    DefaultOperationTimeout,
		PendingApprovalPath: DefaultPendingApprovalPath,
	}
}

// LoadConfig decodes the configuration from environment variables,
// falling back to defaults for anything unset.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return cfg, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode session config")
	}
	cfg = cfg.withDefaults()
	return cfg, cfg.Validate()
}

// Validate checks the configuration is usable
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.SessionTimeout, validation.Required),
		validation.Field(&c.EnrichTimeout, validation.Required),
		validation.Field(&c.WatchdogTimeout, validation.Required),
		validation.Field(&c.OperationTimeout, validation.Required),
		validation.Field(&c.PendingApprovalPath, validation.Required),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid session config")
	}
	return nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = def.SessionTimeout
	}
	if c.EnrichTimeout <= 0 {
		c.EnrichTimeout = def.EnrichTimeout
	}
	if c.WatchdogTimeout <= 0 {
		c.WatchdogTimeout = def.WatchdogTimeout
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = def.OperationTimeout
	}
	if c.PendingApprovalPath == "" {
		c.PendingApprovalPath = def.PendingApprovalPath
	}
	return c
}
