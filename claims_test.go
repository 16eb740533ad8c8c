package auth_test

import (
	"testing"
	"time"

	auth "github.com/goliatone/go-condo-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClaims_AppMetadataWins(t *testing.T) {
	app := map[string]any{"role": "syndic", "approved": true}
	user := map[string]any{"role": "admin", "approved": false, "full_name": "Ana Souza"}

	claims := auth.ParseClaims(app, user)

	assert.Equal(t, "syndic", claims.Role)
	require.NotNil(t, claims.Approved)
	assert.True(t, *claims.Approved)
	assert.Equal(t, "Ana Souza", claims.DisplayName)
}

func TestParseClaims_AlternateKeys(t *testing.T) {
	claims := auth.ParseClaims(map[string]any{
		"user_role":   "council",
		"is_approved": "true",
		"user_type":   "owner",
		"name":        "Bruno",
	}, nil)

	assert.Equal(t, "council", claims.Role)
	require.NotNil(t, claims.Approved)
	assert.True(t, *claims.Approved)
	assert.Equal(t, "owner", claims.ActorType)
	assert.Equal(t, "Bruno", claims.DisplayName)
}

func TestParseClaims_UserMetadataCannotAuthorize(t *testing.T) {
	user := map[string]any{
		"role":        "admin",
		"approved":    true,
		"approved_by": "self",
		"approved_at": "2024-03-01T10:00:00Z",
		"actor_type":  "tenant",
		"full_name":   "Carla Dias",
	}

	claims := auth.ParseClaims(map[string]any{}, user)

	assert.Empty(t, claims.Role)
	assert.Nil(t, claims.Approved)
	assert.Nil(t, claims.ApprovedAt)
	assert.Empty(t, claims.ApprovedBy)
	assert.Equal(t, "tenant", claims.ActorType)
	assert.Equal(t, "Carla Dias", claims.DisplayName)
}

func TestParseClaims_MissingValues(t *testing.T) {
	claims := auth.ParseClaims(nil, map[string]any{"approved": "maybe"})

	assert.Empty(t, claims.Role)
	assert.Nil(t, claims.Approved)
	assert.Nil(t, claims.ApprovedAt)
}

func TestParseClaims_ApprovedAt(t *testing.T) {
	t.Run("rfc3339 string", func(t *testing.T) {
		claims := auth.ParseClaims(map[string]any{"approved_at": "2024-03-01T10:00:00Z"}, nil)
		require.NotNil(t, claims.ApprovedAt)
		assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), claims.ApprovedAt.UTC())
	})

	t.Run("unix seconds from json", func(t *testing.T) {
		claims := auth.ParseClaims(map[string]any{"approved_at": float64(1709287200)}, nil)
		require.NotNil(t, claims.ApprovedAt)
		assert.Equal(t, int64(1709287200), claims.ApprovedAt.Unix())
	})

	t.Run("garbage is ignored", func(t *testing.T) {
		claims := auth.ParseClaims(map[string]any{"approved_at": "yesterday"}, nil)
		assert.Nil(t, claims.ApprovedAt)
	})
}

func TestSession_Claims(t *testing.T) {
	var nilSession *auth.Session
	assert.Equal(t, auth.ClaimSet{}, nilSession.Claims())

	session := approvedSession("u1", "staff")
	claims := session.Claims()
	assert.Equal(t, "staff", claims.Role)
	assert.Equal(t, "User u1", claims.DisplayName)
}

func TestSession_IsExpired(t *testing.T) {
	now := time.Now()

	assert.False(t, (&auth.Session{}).IsExpired(now))
	assert.True(t, (&auth.Session{ExpiresAt: now.Add(-time.Second)}).IsExpired(now))
	assert.False(t, (&auth.Session{ExpiresAt: now.Add(time.Minute)}).IsExpired(now))
}
