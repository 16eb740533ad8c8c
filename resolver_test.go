package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	auth "github.com/goliatone/go-condo-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestToBasicIdentity_Defaults(t *testing.T) {
	resolver := auth.NewIdentityResolver(nil, auth.WithResolverLogger(testLogger{}))

	identity := resolver.ToBasicIdentity(&auth.Session{
		UserID: "u3",
		Email:  "carla@condo.test",
	})

	require.NotNil(t, identity)
	assert.Equal(t, "u3", identity.ID)
	assert.Equal(t, auth.RoleResident, identity.Role)
	assert.False(t, identity.Approved)
	assert.False(t, identity.Superadmin)
	assert.Equal(t, "carla", identity.DisplayName)
	assert.False(t, identity.Enriched)
}

func TestToBasicIdentity_NoSession(t *testing.T) {
	resolver := auth.NewIdentityResolver(nil)

	assert.Nil(t, resolver.ToBasicIdentity(nil))
	assert.Nil(t, resolver.ToBasicIdentity(&auth.Session{Email: "x@condo.test"}))
}

func TestToBasicIdentity_ReadsClaims(t *testing.T) {
	resolver := auth.NewIdentityResolver(nil)

	identity := resolver.ToBasicIdentity(&auth.Session{
		UserID: "u1",
		Email:  "u1@condo.test",
		AppMetadata: map[string]any{
			"role":        "syndic",
			"approved":    true,
			"approved_by": "board",
			"approved_at": "2024-01-10T12:00:00Z",
		},
		UserMetadata: map[string]any{
			"role":      "admin",
			"full_name": "Diego Lima",
			"user_type": "owner",
		},
	})

	require.NotNil(t, identity)
	assert.Equal(t, auth.RoleSyndic, identity.Role)
	assert.True(t, identity.Approved)
	assert.Equal(t, "board", identity.ApprovedBy)
	require.NotNil(t, identity.ApprovedAt)
	assert.Equal(t, 2024, identity.ApprovedAt.Year())
	assert.Equal(t, "Diego Lima", identity.DisplayName)
	assert.Equal(t, "owner", identity.ActorType)
}

func TestToBasicIdentity_SelfApprovalIgnored(t *testing.T) {
	resolver := auth.NewIdentityResolver(nil)

	identity := resolver.ToBasicIdentity(&auth.Session{
		UserID:       "u9",
		UserMetadata: map[string]any{"role": "admin", "approved": true},
	})

	require.NotNil(t, identity)
	assert.Equal(t, auth.RoleResident, identity.Role)
	assert.False(t, identity.Approved)
	assert.False(t, auth.IsAdmitted(identity))
}

func TestToBasicIdentity_UnknownRoleFallsBack(t *testing.T) {
	resolver := auth.NewIdentityResolver(nil, auth.WithResolverLogger(testLogger{}))

	identity := resolver.ToBasicIdentity(&auth.Session{
		UserID:      "u1",
		AppMetadata: map[string]any{"role": "landlord", "approved": true},
	})

	require.NotNil(t, identity)
	assert.Equal(t, auth.RoleResident, identity.Role)
	assert.True(t, identity.Approved)
}

func TestToBasicIdentity_SuperadminOverride(t *testing.T) {
	resolver := auth.NewIdentityResolver(nil, auth.WithSuperadminID("root-1"))

	identity := resolver.ToBasicIdentity(&auth.Session{
		UserID:      "root-1",
		Email:       "root@condo.test",
		AppMetadata: map[string]any{"role": "resident", "approved": false},
	})

	require.NotNil(t, identity)
	assert.Equal(t, auth.RoleAdmin, identity.Role)
	assert.True(t, identity.Approved)
	assert.True(t, identity.Superadmin)
	assert.True(t, auth.IsAdmitted(identity))

	other := resolver.ToBasicIdentity(&auth.Session{UserID: "root-2"})
	require.NotNil(t, other)
	assert.False(t, other.Superadmin)
	assert.Equal(t, auth.RoleResident, other.Role)
}

func TestEnrich_MergesRecordWithoutTouchingAuthorization(t *testing.T) {
	store := new(MockEnrichmentStore)
	store.On("FindBySubjectID", mock.Anything, "u1").Return(&auth.EnrichmentRecord{
		SubjectID:   "u1",
		DisplayName: "Ana Souza",
		ActorType:   "tenant",
		Phone:       "+5511987654321",
		Unit:        &auth.UnitAssignment{ID: "unit-101", Number: "101", Block: "A"},
	}, nil)

	resolver := auth.NewIdentityResolver(store)
	enriched := resolver.Enrich(context.Background(), approvedSession("u1", "council"))

	require.NotNil(t, enriched)
	assert.True(t, enriched.Enriched)
	assert.Equal(t, "Ana Souza", enriched.DisplayName)
	assert.Equal(t, "tenant", enriched.ActorType)
	assert.Equal(t, "+5511987654321", enriched.Phone)
	require.True(t, enriched.HasUnit())
	assert.Equal(t, "101", enriched.Unit.Number)
	assert.Equal(t, auth.RoleCouncil, enriched.Role)
	assert.True(t, enriched.Approved)
	store.AssertExpectations(t)
}

func TestEnrich_SkipsUnapproved(t *testing.T) {
	store := new(MockEnrichmentStore)
	resolver := auth.NewIdentityResolver(store)

	assert.Nil(t, resolver.Enrich(context.Background(), pendingSession("u2")))
	store.AssertNotCalled(t, "FindBySubjectID", mock.Anything, mock.Anything)
}

func TestEnrichIdentity_NothingToAdd(t *testing.T) {
	basic := &auth.Identity{ID: "u1", Role: auth.RoleResident, Approved: true}

	t.Run("no store", func(t *testing.T) {
		resolver := auth.NewIdentityResolver(nil)
		assert.Nil(t, resolver.EnrichIdentity(context.Background(), basic))
	})

	t.Run("no record", func(t *testing.T) {
		store := new(MockEnrichmentStore)
		store.On("FindBySubjectID", mock.Anything, "u1").Return(nil, nil)
		resolver := auth.NewIdentityResolver(store, auth.WithResolverLogger(testLogger{}))
		assert.Nil(t, resolver.EnrichIdentity(context.Background(), basic))
	})

	t.Run("store error", func(t *testing.T) {
		store := new(MockEnrichmentStore)
		store.On("FindBySubjectID", mock.Anything, "u1").Return(nil, errors.New("connection refused"))
		resolver := auth.NewIdentityResolver(store, auth.WithResolverLogger(testLogger{}))
		assert.Nil(t, resolver.EnrichIdentity(context.Background(), basic))
	})

	t.Run("record for someone else", func(t *testing.T) {
		store := new(MockEnrichmentStore)
		store.On("FindBySubjectID", mock.Anything, "u1").Return(&auth.EnrichmentRecord{SubjectID: "u9"}, nil)
		resolver := auth.NewIdentityResolver(store, auth.WithResolverLogger(testLogger{}))
		assert.Nil(t, resolver.EnrichIdentity(context.Background(), basic))
	})
}

func TestEnrichIdentity_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	store := new(MockEnrichmentStore)
	store.On("FindBySubjectID", mock.Anything, "u1").
		Run(func(mock.Arguments) { <-release }).
		Return(&auth.EnrichmentRecord{SubjectID: "u1", DisplayName: "late"}, nil)

	resolver := auth.NewIdentityResolver(store,
		auth.WithEnrichTimeout(30*time.Millisecond),
		auth.WithResolverLogger(testLogger{}),
	)

	start := time.Now()
	enriched := resolver.EnrichIdentity(context.Background(), &auth.Identity{ID: "u1", Approved: true})

	assert.Nil(t, enriched)
	assert.Less(t, time.Since(start), time.Second)
}

func TestIdentity_CloneIsDeep(t *testing.T) {
	at := time.Now()
	original := &auth.Identity{
		ID:         "u1",
		ApprovedAt: &at,
		Unit:       &auth.UnitAssignment{ID: "unit-1", Number: "1"},
	}

	clone := original.Clone()
	clone.Unit.Number = "2"
	*clone.ApprovedAt = at.Add(time.Hour)

	assert.Equal(t, "1", original.Unit.Number)
	assert.Equal(t, at, *original.ApprovedAt)

	var nilIdentity *auth.Identity
	assert.Nil(t, nilIdentity.Clone())
	assert.False(t, nilIdentity.HasUnit())
}

func TestIsAdmitted(t *testing.T) {
	assert.False(t, auth.IsAdmitted(nil))
	assert.False(t, auth.IsAdmitted(&auth.Identity{ID: "u2"}))
	assert.True(t, auth.IsAdmitted(&auth.Identity{ID: "u1", Approved: true}))
	assert.True(t, auth.IsAdmitted(&auth.Identity{ID: "root", Superadmin: true}))
}
