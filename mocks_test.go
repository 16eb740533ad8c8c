package auth_test

import (
	"context"
	"sync"

	"github.com/goliatone/go-condo-auth"
	"github.com/stretchr/testify/mock"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// MockEnrichmentStore implements auth.EnrichmentStore
type MockEnrichmentStore struct {
	mock.Mock
}

func (m *MockEnrichmentStore) FindBySubjectID(ctx context.Context, subjectID string) (*auth.EnrichmentRecord, error) {
	args := m.Called(ctx, subjectID)
	record, _ := args.Get(0).(*auth.EnrichmentRecord)
	return record, args.Error(1)
}

// fakeSessionStore is a scriptable auth.SessionStore. Zero value answers
// "no session" to every query.
type fakeSessionStore struct {
	mu sync.Mutex

	current     *auth.Session
	currentErr  error
	currentHold chan struct{}

	signIn  func(ctx context.Context, credential auth.Credential) (*auth.Session, error)
	refresh func(ctx context.Context) (*auth.Session, error)

	signOutErr   error
	signOutCalls int
	credentials  []auth.Credential

	onSubscribe func(handler func(auth.SessionEvent))
	handlers    map[int]func(auth.SessionEvent)
	nextID      int
}

func (f *fakeSessionStore) GetCurrentSession(ctx context.Context) (*auth.Session, error) {
	if f.currentHold != nil {
		<-f.currentHold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.currentErr
}

func (f *fakeSessionStore) SignIn(ctx context.Context, credential auth.Credential) (*auth.Session, error) {
	f.mu.Lock()
	f.credentials = append(f.credentials, credential)
	signIn := f.signIn
	f.mu.Unlock()

	if signIn == nil {
		return nil, auth.ErrInvalidCredentials
	}
	return signIn(ctx, credential)
}

func (f *fakeSessionStore) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	return f.signOutErr
}

func (f *fakeSessionStore) RefreshSession(ctx context.Context) (*auth.Session, error) {
	f.mu.Lock()
	refresh := f.refresh
	f.mu.Unlock()

	if refresh == nil {
		return nil, auth.ErrNoSession
	}
	return refresh(ctx)
}

func (f *fakeSessionStore) Subscribe(handler func(auth.SessionEvent)) func() {
	f.mu.Lock()
	if f.handlers == nil {
		f.handlers = map[int]func(auth.SessionEvent){}
	}
	id := f.nextID
	f.nextID++
	f.handlers[id] = handler
	onSubscribe := f.onSubscribe
	f.mu.Unlock()

	if onSubscribe != nil {
		onSubscribe(handler)
	}

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
	}
}

func (f *fakeSessionStore) emit(event auth.SessionEvent) {
	f.mu.Lock()
	handlers := make([]func(auth.SessionEvent), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}

func (f *fakeSessionStore) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeSessionStore) signedOut() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOutCalls
}

func approvedSession(id string, role string) *auth.Session {
	return &auth.Session{
		UserID:      id,
		Email:       id + "@condo.test",
		AccessToken: "token-" + id,
		AppMetadata: map[string]any{
			"role":     role,
			"approved": true,
		},
		UserMetadata: map[string]any{
			"full_name": "User " + id,
		},
	}
}

func pendingSession(id string) *auth.Session {
	return &auth.Session{
		UserID:      id,
		Email:       id + "@condo.test",
		AccessToken: "token-" + id,
		AppMetadata: map[string]any{
			"approved": false,
		},
	}
}

type recordingRedirector struct {
	mu    sync.Mutex
	calls []string
	ids   []string
}

func (r *recordingRedirector) Redirect(_ context.Context, destination string, identity *auth.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, destination)
	if identity != nil {
		r.ids = append(r.ids, identity.ID)
	}
}

func (r *recordingRedirector) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}
