package sessionstore

import (
	"context"
	"sync"
	"time"

	auth "github.com/goliatone/go-condo-auth"
)

// Store is a local auth.SessionStore: accounts live in a bun database,
// sessions are signed JWT pairs and the current session is kept in memory.
type Store struct {
	accounts Accounts
	tokens   *TokenService
	logger   auth.Logger
	now      func() time.Time

	mu       sync.Mutex
	current  *auth.Session
	handlers map[uint64]func(auth.SessionEvent)
	nextID   uint64
}

var _ auth.SessionStore = (*Store)(nil)

// StoreOption customizes a Store
type StoreOption func(*Store)

// WithStoreLogger sets the logger
func WithStoreLogger(logger auth.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreClock overrides time.Now for expiry checks
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(accounts Accounts, tokens *TokenService, opts ...StoreOption) *Store {
	s := &Store{
		accounts: accounts,
		tokens:   tokens,
		logger:   nopLogger{},
		now:      time.Now,
		handlers: make(map[uint64]func(auth.SessionEvent)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// GetCurrentSession returns the in memory session, or nil when there is
// none or its access token expired.
func (s *Store) GetCurrentSession(ctx context.Context) (*auth.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.IsExpired(s.now()) {
		return nil, nil
	}
	return copySession(s.current), nil
}

// Restore resumes a session from a previously issued token pair
func (s *Store) Restore(ctx context.Context, access, refresh string) (*auth.Session, error) {
	session, err := s.tokens.SessionFromToken(access, refresh)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = session
	s.mu.Unlock()

	s.notify(auth.SessionEvent{Kind: auth.EventSignedIn, Session: copySession(session)})
	return copySession(session), nil
}

// SignIn checks the credential against the accounts table. Unknown
// identifiers and wrong passwords are both auth.ErrInvalidCredentials.
func (s *Store) SignIn(ctx context.Context, credential auth.Credential) (*auth.Session, error) {
	account, err := s.accounts.GetByIdentifier(ctx, credential.Identifier)
	if err != nil {
		if isNotFound(err) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := ComparePasswordAndHash(credential.Secret, account.PasswordHash); err != nil {
		s.logger.Debug("sign in rejected for %s: %v", account.ID, err)
		return nil, auth.ErrInvalidCredentials
	}

	if err := s.accounts.TrackLogin(ctx, account.ID); err != nil {
		s.logger.Warn("failed to track login for %s: %v", account.ID, err)
	}

	session, err := s.tokens.Issue(account)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = session
	s.mu.Unlock()

	s.notify(auth.SessionEvent{Kind: auth.EventSignedIn, Session: copySession(session)})
	return copySession(session), nil
}

// SignOut drops the current session. Signing out without a session is a
// no-op.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	had := s.current != nil
	s.current = nil
	s.mu.Unlock()

	if had {
		s.notify(auth.SessionEvent{Kind: auth.EventSignedOut})
	}
	return nil
}

// RefreshSession exchanges the refresh token for a new pair. The account
// is read again so role and approval changes reach the claims.
func (s *Store) RefreshSession(ctx context.Context) (*auth.Session, error) {
	s.mu.Lock()
	current := copySession(s.current)
	s.mu.Unlock()

	if current == nil {
		return nil, auth.ErrNoSession
	}

	claims, err := s.tokens.Parse(current.RefreshToken, TokenTypeRefresh)
	if err != nil {
		s.logger.Info("refresh token rejected: %v", err)
		s.drop(current.AccessToken)
		return nil, auth.ErrNoSession
	}

	account, err := s.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		if isNotFound(err) {
			s.drop(current.AccessToken)
			return nil, auth.ErrNoSession
		}
		return nil, err
	}

	session, err := s.tokens.Issue(account)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.current == nil || s.current.AccessToken != current.AccessToken {
		s.mu.Unlock()
		return nil, auth.ErrNoSession
	}
	s.current = session
	s.mu.Unlock()

	s.notify(auth.SessionEvent{Kind: auth.EventTokenRefreshed, Session: copySession(session)})
	return copySession(session), nil
}

// Subscribe registers handler. The handler receives an INITIAL_SESSION
// event with the current session asynchronously, then every change.
func (s *Store) Subscribe(handler func(auth.SessionEvent)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = handler
	var initial *auth.Session
	if s.current != nil && !s.current.IsExpired(s.now()) {
		initial = copySession(s.current)
	}
	s.mu.Unlock()

	go handler(auth.SessionEvent{Kind: auth.EventInitialSession, Session: initial})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.handlers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) drop(accessToken string) {
	s.mu.Lock()
	dropped := s.current != nil && s.current.AccessToken == accessToken
	if dropped {
		s.current = nil
	}
	s.mu.Unlock()

	if dropped {
		s.notify(auth.SessionEvent{Kind: auth.EventSignedOut})
	}
}

func (s *Store) notify(event auth.SessionEvent) {
	s.mu.Lock()
	handlers := make([]func(auth.SessionEvent), 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}

func copySession(session *auth.Session) *auth.Session {
	if session == nil {
		return nil
	}
	out := *session
	out.UserMetadata = copyMap(session.UserMetadata)
	out.AppMetadata = copyMap(session.AppMetadata)
	return &out
}

func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
