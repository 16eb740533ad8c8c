// Package activitymap turns session activity events into a flat record
// that audit pipelines can store without knowing the auth package.
package activitymap

import (
	"context"
	"maps"
	"strings"
	"time"

	auth "github.com/goliatone/go-condo-auth"
)

// MetadataKeySource stores which manager path produced the event
const MetadataKeySource = "source"

// Record is the transport agnostic shape handed to downstream systems.
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Mapper converts auth.ActivityEvent values into Records
type Mapper struct {
	channel       string
	objectType    string
	actorFallback string
	objectID      func(auth.ActivityEvent) string
	now           func() time.Time
}

type Option func(*Mapper)

// WithChannel sets the channel, "session" by default
func WithChannel(channel string) Option {
	return func(m *Mapper) {
		m.channel = strings.TrimSpace(channel)
	}
}

// WithObjectType sets the object type, "session" by default
func WithObjectType(objectType string) Option {
	return func(m *Mapper) {
		m.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback names the actor of events without a subject, e.g. a
// failed login or the startup watchdog. Default "system".
func WithActorFallback(actorID string) Option {
	return func(m *Mapper) {
		if actorID = strings.TrimSpace(actorID); actorID != "" {
			m.actorFallback = actorID
		}
	}
}

// WithObjectID overrides how the object id is read from an event
func WithObjectID(fn func(auth.ActivityEvent) string) Option {
	return func(m *Mapper) {
		if fn != nil {
			m.objectID = fn
		}
	}
}

func NewMapper(opts ...Option) *Mapper {
	m := &Mapper{
		channel:       "session",
		objectType:    "session",
		actorFallback: "system",
		objectID:      func(e auth.ActivityEvent) string { return e.SubjectID },
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Map builds the Record for event. The event metadata is copied.
func (m *Mapper) Map(event auth.ActivityEvent) Record {
	actor := strings.TrimSpace(event.SubjectID)
	if actor == "" {
		actor = m.actorFallback
	}

	at := event.OccurredAt
	if at.IsZero() {
		at = m.now()
	}

	var meta map[string]any
	if len(event.Metadata) > 0 {
		meta = maps.Clone(event.Metadata)
	}
	if source := strings.TrimSpace(event.Source); source != "" {
		if meta == nil {
			meta = map[string]any{}
		}
		if _, taken := meta[MetadataKeySource]; !taken {
			meta[MetadataKeySource] = source
		}
	}

	return Record{
		ActorID:    actor,
		Verb:       string(event.EventType),
		ObjectType: m.objectType,
		ObjectID:   strings.TrimSpace(m.objectID(event)),
		Channel:    m.channel,
		Metadata:   meta,
		OccurredAt: at,
	}
}

// Sink adapts write into an auth.ActivitySink that maps every event first
func (m *Mapper) Sink(write func(ctx context.Context, record Record) error) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		if write == nil {
			return nil
		}
		return write(ctx, m.Map(event))
	})
}

// Normalize maps event with the default Mapper
func Normalize(event auth.ActivityEvent) Record {
	return NewMapper().Map(event)
}
