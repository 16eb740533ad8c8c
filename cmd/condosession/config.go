package main

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joeshaw/envdecode"
)

// ServerConfig is the process level configuration. Session engine timings
// are loaded separately by auth.LoadConfig.
type ServerConfig struct {
	ListenAddr  string `env:"CONDO_LISTEN_ADDR,default=:8572" json:"listen_addr"`
	DatabaseDSN string `env:"CONDO_DATABASE_DSN,default=file:condo.db?cache=shared" json:"database_dsn"`

	SigningKey string        `env:"CONDO_JWT_SIGNING_KEY" json:"-"`
	Issuer     string        `env:"CONDO_JWT_ISSUER,default=condo-session" json:"issuer"`
	AccessTTL  time.Duration `env:"CONDO_ACCESS_TOKEN_TTL,default=1h" json:"access_ttl"`
	RefreshTTL time.Duration `env:"CONDO_REFRESH_TOKEN_TTL,default=168h" json:"refresh_ttl"`

	PhoneRegion string `env:"CONDO_PHONE_REGION,default=BR" json:"phone_region"`

	RedisAddr     string        `env:"CONDO_REDIS_ADDR" json:"redis_addr,omitempty"`
	RedisPassword string        `env:"CONDO_REDIS_PASSWORD" json:"-"`
	RedisDB       int           `env:"CONDO_REDIS_DB,default=0" json:"redis_db"`
	CacheTTL      time.Duration `env:"CONDO_ENRICHMENT_CACHE_TTL,default=5m" json:"cache_ttl"`

	AdminEmail    string `env:"CONDO_ADMIN_EMAIL" json:"admin_email,omitempty"`
	AdminPassword string `env:"CONDO_ADMIN_PASSWORD" json:"-"`

	// token pair of a previous run, resumed before the bootstrap
	RestoreAccessToken  string `env:"CONDO_RESTORE_ACCESS_TOKEN" json:"-"`
	RestoreRefreshToken string `env:"CONDO_RESTORE_REFRESH_TOKEN" json:"-"`

	ShutdownTimeout time.Duration `env:"CONDO_SHUTDOWN_TIMEOUT,default=10s" json:"shutdown_timeout"`
}

func loadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return cfg, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode server config")
	}
	return cfg, cfg.Validate()
}

func (c ServerConfig) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.ListenAddr, validation.Required),
		validation.Field(&c.DatabaseDSN, validation.Required),
		validation.Field(&c.SigningKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&c.AccessTTL, validation.Required),
		validation.Field(&c.RefreshTTL, validation.Required),
	)
	if err == nil && c.AdminEmail != "" {
		err = validation.Validate(c.AdminPassword, validation.Required, validation.Length(10, 100))
	}
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid server config")
	}
	return nil
}
