package activitymap_test

import (
	"context"
	"errors"
	"testing"
	"time"

	auth "github.com/goliatone/go-condo-auth"
	"github.com/goliatone/go-condo-auth/activitymap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType:  auth.ActivityEventEnriched,
		SubjectID:  "user-100",
		Source:     "SIGNED_IN",
		Metadata:   map[string]any{"unit_id": "unit-7"},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	assert.Equal(t, "user-100", out.ActorID)
	assert.Equal(t, string(auth.ActivityEventEnriched), out.Verb)
	assert.Equal(t, "session", out.ObjectType)
	assert.Equal(t, "user-100", out.ObjectID)
	assert.Equal(t, "session", out.Channel)
	assert.True(t, out.OccurredAt.Equal(ts))
	assert.Equal(t, "unit-7", out.Metadata["unit_id"])
	assert.Equal(t, "SIGNED_IN", out.Metadata[activitymap.MetadataKeySource])

	assert.Len(t, event.Metadata, 1, "event metadata must not be mutated")
}

func TestMapper_EventWithoutSubject(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventWatchdogFired,
	})

	assert.Equal(t, "system", out.ActorID)
	assert.Empty(t, out.ObjectID)
	assert.Nil(t, out.Metadata)
	assert.False(t, out.OccurredAt.IsZero())
}

func TestMapper_Options(t *testing.T) {
	t.Parallel()

	mapper := activitymap.NewMapper(
		activitymap.WithChannel("audit"),
		activitymap.WithObjectType("account"),
		activitymap.WithActorFallback("anonymous"),
		activitymap.WithObjectID(func(e auth.ActivityEvent) string {
			id, _ := e.Metadata["identifier"].(string)
			return id
		}),
	)

	out := mapper.Map(auth.ActivityEvent{
		EventType: auth.ActivityEventLoginFailure,
		Source:    "login",
		Metadata: map[string]any{
			"identifier":                  "ana@example.com",
			activitymap.MetadataKeySource: "existing",
		},
	})

	assert.Equal(t, "anonymous", out.ActorID)
	assert.Equal(t, "audit", out.Channel)
	assert.Equal(t, "account", out.ObjectType)
	assert.Equal(t, "ana@example.com", out.ObjectID)
	assert.Equal(t, "existing", out.Metadata[activitymap.MetadataKeySource])
}

func TestMapper_Sink(t *testing.T) {
	t.Parallel()

	var got []activitymap.Record
	sink := activitymap.NewMapper().Sink(func(_ context.Context, record activitymap.Record) error {
		got = append(got, record)
		if record.Verb == string(auth.ActivityEventLogout) {
			return errors.New("write failed")
		}
		return nil
	})

	require.NoError(t, sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventLoginSuccess,
		SubjectID: "u1",
	}))
	assert.Error(t, sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventLogout,
		SubjectID: "u1",
	}))

	require.Len(t, got, 2)
	assert.Equal(t, "u1", got[0].ActorID)
}
