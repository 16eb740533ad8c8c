package auth_test

import (
	"testing"
	"time"

	auth "github.com/goliatone/go-condo-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := auth.DefaultConfig()

	assert.Equal(t, 2500*time.Millisecond, cfg.SessionTimeout)
	assert.Equal(t, 800*time.Millisecond, cfg.EnrichTimeout)
	assert.Equal(t, 3*time.Second, cfg.WatchdogTimeout)
	assert.Equal(t, "/pending-approval", cfg.PendingApprovalPath)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("CONDO_SUPERADMIN_ID", "root-1")
	t.Setenv("CONDO_SESSION_TIMEOUT", "1s")
	t.Setenv("CONDO_ENRICH_TIMEOUT", "250ms")
	t.Setenv("CONDO_SECRET_LOGIN_IDENTIFIER", "kiosk@condo.test")
	t.Setenv("CONDO_PENDING_APPROVAL_PATH", "/aguardando")

	cfg, err := auth.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "root-1", cfg.SuperadminID)
	assert.Equal(t, time.Second, cfg.SessionTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.EnrichTimeout)
	assert.Equal(t, auth.DefaultWatchdogTimeout, cfg.WatchdogTimeout)
	assert.Equal(t, "kiosk@condo.test", cfg.SecretLoginIdentifier)
	assert.Equal(t, "/aguardando", cfg.PendingApprovalPath)
}

func TestLoadConfig_BadDuration(t *testing.T) {
	t.Setenv("CONDO_WATCHDOG_TIMEOUT", "soon")

	_, err := auth.LoadConfig()
	assert.Error(t, err)
}

func TestConfig_ValidateRejectsEmpty(t *testing.T) {
	assert.Error(t, auth.Config{}.Validate())
}

func TestCredential_Validate(t *testing.T) {
	assert.NoError(t, auth.Credential{Identifier: "ana@condo.test", Secret: "s3cret"}.Validate())

	err := auth.Credential{Identifier: "ana@condo.test"}.Validate()
	require.Error(t, err)
	assert.True(t, auth.IsInvalidCredentials(err))

	err = auth.Credential{Secret: "s3cret"}.Validate()
	require.Error(t, err)

	assert.NotContains(t, auth.Credential{Identifier: "a", Secret: "hidden"}.String(), "hidden")
}
