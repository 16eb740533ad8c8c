package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// SessionManager owns the SessionState. It runs the startup sequence, the
// public operations and the store notifications through one publication
// routine: admit, publish the basic identity, then upgrade it in the
// background with the enriched identity.
type SessionManager struct {
	store        SessionStore
	enrichment   EnrichmentStore
	resolver     *IdentityResolver
	observer     *SessionObserver
	gate         ApprovalGate
	config       Config
	logger       Logger
	redirector   Redirector
	activitySink ActivitySink

	mu            sync.Mutex
	state         SessionState
	generation    uint64
	logoutEpoch   uint64
	sessionToken  string
	rejectedToken string
	started       bool
	booting       bool
	closed        bool
	watchdog      *time.Timer
	nextOp        uint64
	inflight      map[uint64]uint64 // op id -> logout epoch at start

	loginInFlight atomic.Bool
	hub           *stateHub
	background    sync.WaitGroup
}

// ManagerOption customizes a SessionManager
type ManagerOption func(*SessionManager)

// WithConfig sets timings, superadmin and redirect options
func WithConfig(cfg Config) ManagerOption {
	return func(m *SessionManager) {
		m.config = cfg.withDefaults()
	}
}

// WithLogger sets the logger shared by the manager, resolver and observer
func WithLogger(logger Logger) ManagerOption {
	return func(m *SessionManager) {
		m.logger = normalizeLogger(logger)
	}
}

// WithRedirector sets where unapproved actors are sent
func WithRedirector(r Redirector) ManagerOption {
	return func(m *SessionManager) {
		if r != nil {
			m.redirector = r
		}
	}
}

// WithActivitySink configures an ActivitySink for session events.
func WithActivitySink(sink ActivitySink) ManagerOption {
	return func(m *SessionManager) {
		m.activitySink = normalizeActivitySink(sink)
	}
}

// WithApprovalGate replaces IsAdmitted
func WithApprovalGate(gate ApprovalGate) ManagerOption {
	return func(m *SessionManager) {
		if gate != nil {
			m.gate = gate
		}
	}
}

// NewSessionManager returns a manager in its initial state: no identity,
// loading. enrichment may be nil.
func NewSessionManager(store SessionStore, enrichment EnrichmentStore, opts ...ManagerOption) *SessionManager {
	m := &SessionManager{
		store:        store,
		enrichment:   enrichment,
		gate:         IsAdmitted,
		config:       DefaultConfig(),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		state:        newSessionState(nil, true),
		hub:          newStateHub(),
		inflight:     make(map[uint64]uint64),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if m.redirector == nil {
		m.redirector = logRedirector{logger: m.logger}
	}

	m.resolver = NewIdentityResolver(enrichment,
		WithSuperadminID(m.config.SuperadminID),
		WithEnrichTimeout(m.config.EnrichTimeout),
		WithResolverGate(m.gate),
		WithResolverLogger(m.logger),
	)

	m.observer = NewSessionObserver(store,
		WithObserverTimeout(m.config.SessionTimeout),
		WithObserverLogger(m.logger),
	)

	return m
}

// Resolver exposes the identity resolver used by the manager
func (m *SessionManager) Resolver() *IdentityResolver {
	return m.resolver
}

// State returns a copy of the current session state
func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Subscribe returns a channel that always holds the newest state, starting
// with the current one. Call the returned func to stop receiving.
func (m *SessionManager) Subscribe() (<-chan SessionState, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hub.subscribe(m.state)
}

// Start runs the startup sequence. It arms the watchdog, subscribes to the
// session store and publishes the initial decision. It returns once the
// current session query resolved or timed out.
func (m *SessionManager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.booting = true
	bootGeneration := m.generation
	m.watchdog = time.AfterFunc(m.config.WatchdogTimeout, m.fireWatchdog)
	m.mu.Unlock()

	m.observer.Start(ctx, func(ctx context.Context, event SessionEvent) {
		m.handleEvent(ctx, event, bootGeneration)
	})
}

// Close stops the watchdog and the store subscription and waits for
// background enrichment to settle. Notifications that arrive afterwards
// are ignored.
func (m *SessionManager) Close() {
	m.mu.Lock()
	m.closed = true
	m.finishBootLocked()
	m.mu.Unlock()

	m.observer.Stop()
	m.background.Wait()
	m.hub.close()
}

// Login signs in with credential. Only one login may be in flight; a
// second call fails with ErrConcurrentOperation before any I/O.
func (m *SessionManager) Login(ctx context.Context, credential Credential) (bool, error) {
	return m.login(ctx, credential, "login")
}

// LoginWithSecret signs in the configured system account with secret
func (m *SessionManager) LoginWithSecret(ctx context.Context, secret string) (bool, error) {
	if m.config.SecretLoginIdentifier == "" {
		return false, ErrSecretLoginDisabled
	}
	return m.login(ctx, Credential{
		Identifier: m.config.SecretLoginIdentifier,
		Secret:     secret,
	}, "login_secret")
}

// Logout clears the local state immediately and then asks the store to
// invalidate the session. The local state is cleared even if the remote
// call fails; the returned values only describe the remote outcome.
func (m *SessionManager) Logout(ctx context.Context) (bool, error) {
	m.mu.Lock()
	subject := m.state.SubjectID()
	m.generation++
	m.logoutEpoch++
	m.sessionToken = ""
	m.rejectedToken = ""
	m.finishBootLocked()
	m.publishLocked(newSessionState(nil, false))
	m.mu.Unlock()

	err := awaitErr(ctx, m.config.OperationTimeout, m.store.SignOut)

	meta := map[string]any{}
	if err != nil {
		meta["error"] = err.Error()
	}
	m.emit(ctx, ActivityEventLogout, subject, "logout", meta)

	if err != nil {
		m.logger.Warn("remote sign out failed, local session cleared: %v", err)
		return false, classifyStoreError(err)
	}
	return true, nil
}

// Refresh asks the store for a new token and republishes the identity from
// its claims. A failed refresh leaves the state untouched.
func (m *SessionManager) Refresh(ctx context.Context) (bool, error) {
	m.mu.Lock()
	op, epoch := m.beginOpLocked()
	m.mu.Unlock()
	defer m.endOp(op)

	session, err := AwaitWithTimeout(ctx, m.config.OperationTimeout, m.store.RefreshSession)
	if err == nil && session == nil {
		err = ErrNoSession
	}
	if err != nil {
		err = classifyStoreError(err)
		m.emit(ctx, ActivityEventRefreshFailure, m.State().SubjectID(), "refresh", map[string]any{
			"error": err.Error(),
		})
		return false, err
	}

	outcome := m.applySession(ctx, session, applyOptions{
		source:            "refresh",
		expectLogoutEpoch: &epoch,
	})
	if outcome == outcomeSuperseded {
		m.discardSuperseded(ctx, "refresh")
	}

	ok, err := m.outcomeResult(outcome, session)
	if ok {
		m.emit(ctx, ActivityEventRefreshSuccess, session.UserID, "refresh", nil)
	}
	return ok, err
}

func (m *SessionManager) login(ctx context.Context, credential Credential, source string) (bool, error) {
	if !m.loginInFlight.CompareAndSwap(false, true) {
		return false, ErrConcurrentOperation
	}
	defer m.loginInFlight.Store(false)

	if err := credential.Validate(); err != nil {
		m.emitLoginFailure(ctx, credential, source, err)
		return false, err
	}

	m.mu.Lock()
	op, epoch := m.beginOpLocked()
	m.publishLocked(newSessionState(m.state.Identity, true))
	m.mu.Unlock()
	defer m.endOp(op)

	session, err := AwaitWithTimeout(ctx, m.config.OperationTimeout, func(ctx context.Context) (*Session, error) {
		return m.store.SignIn(ctx, credential)
	})
	if err == nil && session == nil {
		err = ErrInvalidCredentials
	}
	if err != nil {
		m.clearLoading()
		err = classifyStoreError(err)
		m.emitLoginFailure(ctx, credential, source, err)
		return false, err
	}

	outcome := m.applySession(ctx, session, applyOptions{
		source:            source,
		expectLogoutEpoch: &epoch,
	})
	if outcome == outcomeSuperseded {
		m.discardSuperseded(ctx, source)
	}

	ok, err := m.outcomeResult(outcome, session)
	if ok {
		m.emit(ctx, ActivityEventLoginSuccess, session.UserID, source, map[string]any{
			"identifier": credential.Identifier,
		})
	} else {
		m.emitLoginFailure(ctx, credential, source, err)
	}
	return ok, err
}

func (m *SessionManager) handleEvent(ctx context.Context, event SessionEvent, bootGeneration uint64) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		m.logger.Debug("manager closed, ignoring %s", event.Kind)
		return
	}

	switch event.Kind {
	case EventInitialSession:
		m.applySession(ctx, event.Session, applyOptions{
			source:           string(event.Kind),
			expectGeneration: &bootGeneration,
		})
	case EventSignedIn, EventTokenRefreshed:
		m.applySession(ctx, event.Session, applyOptions{
			source:           string(event.Kind),
			dropIfSuperseded: true,
		})
	case EventSignedOut:
		m.clearSession(string(event.Kind))
	}
}

type applyOutcome int

const (
	outcomePublished applyOutcome = iota
	outcomeUnchanged
	outcomeCleared
	outcomeRejected
	outcomeSuperseded
)

type applyOptions struct {
	source            string
	expectGeneration  *uint64
	expectLogoutEpoch *uint64
	// dropIfSuperseded discards the session while a login or refresh that
	// started before the last logout is still in flight.
	dropIfSuperseded bool
}

// applySession is the single publication routine. The basic identity is
// computed without I/O, gated, published, and only then enriched.
func (m *SessionManager) applySession(ctx context.Context, session *Session, opts applyOptions) applyOutcome {
	basic := m.resolver.ToBasicIdentity(session)

	m.mu.Lock()

	if m.isStaleLocked(opts) {
		m.finishBootLocked()
		m.clearLoadingLocked()
		m.mu.Unlock()
		m.logger.Debug("dropping superseded %s result", opts.source)
		return outcomeSuperseded
	}

	if basic == nil {
		m.generation++
		m.sessionToken = ""
		m.finishBootLocked()
		m.publishLocked(newSessionState(nil, false))
		m.mu.Unlock()
		return outcomeCleared
	}

	if !m.gate(basic) {
		repeated := session.AccessToken != "" && session.AccessToken == m.rejectedToken
		m.generation++
		m.sessionToken = ""
		m.rejectedToken = session.AccessToken
		m.finishBootLocked()
		m.publishLocked(newSessionState(nil, false))
		m.mu.Unlock()

		if repeated {
			m.logger.Debug("%s already redirected to approval", basic.ID)
			return outcomeRejected
		}

		m.redirector.Redirect(ctx, m.config.PendingApprovalPath, basic.Clone())
		m.emit(ctx, ActivityEventApprovalPending, basic.ID, opts.source, map[string]any{
			"redirect": m.config.PendingApprovalPath,
		})
		return outcomeRejected
	}

	if session.AccessToken != "" && session.AccessToken == m.sessionToken && m.state.SubjectID() == basic.ID {
		m.finishBootLocked()
		m.clearLoadingLocked()
		m.mu.Unlock()
		return outcomeUnchanged
	}

	m.generation++
	generation := m.generation
	m.sessionToken = session.AccessToken
	m.rejectedToken = ""
	m.finishBootLocked()
	m.publishLocked(newSessionState(basic.Clone(), false))
	m.mu.Unlock()

	m.enrichInBackground(ctx, generation, basic, opts.source)
	return outcomePublished
}

func (m *SessionManager) enrichInBackground(ctx context.Context, generation uint64, basic *Identity, source string) {
	if m.enrichment == nil {
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.background.Add(1)
	m.mu.Unlock()

	bg := context.WithoutCancel(ctx)
	go func() {
		defer m.background.Done()

		enriched := m.resolver.EnrichIdentity(bg, basic)
		if enriched == nil {
			return
		}

		m.mu.Lock()
		if m.generation != generation || m.state.SubjectID() != enriched.ID {
			m.mu.Unlock()
			m.logger.Debug("discarding stale enrichment for %s", enriched.ID)
			return
		}
		m.publishLocked(SessionState{
			Identity:        enriched,
			IsAuthenticated: true,
			IsLoading:       m.state.IsLoading,
		})
		m.mu.Unlock()

		meta := map[string]any{}
		if enriched.HasUnit() {
			meta["unit_id"] = enriched.Unit.ID
		}
		m.emit(bg, ActivityEventEnriched, enriched.ID, source, meta)
	}()
}

func (m *SessionManager) clearSession(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generation++
	m.logoutEpoch++
	m.sessionToken = ""
	m.rejectedToken = ""
	m.finishBootLocked()
	if m.state.Identity != nil || m.state.IsLoading {
		m.publishLocked(newSessionState(nil, false))
	}
	m.logger.Debug("session cleared by %s", source)
}

// beginOpLocked registers a login or refresh and returns its id together
// with the logout epoch it started in.
func (m *SessionManager) beginOpLocked() (uint64, uint64) {
	m.nextOp++
	m.inflight[m.nextOp] = m.logoutEpoch
	return m.nextOp, m.logoutEpoch
}

func (m *SessionManager) endOp(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, id)
}

func (m *SessionManager) hasSupersededOpLocked() bool {
	for _, epoch := range m.inflight {
		if epoch != m.logoutEpoch {
			return true
		}
	}
	return false
}

// discardSuperseded runs after a logout overtook a login or refresh. The
// store may still hold the session the operation created, so it is signed
// out again unless a newer identity was published meanwhile.
func (m *SessionManager) discardSuperseded(ctx context.Context, source string) {
	m.mu.Lock()
	signedOut := m.state.Identity == nil
	m.sessionToken = ""
	m.clearLoadingLocked()
	m.mu.Unlock()

	if !signedOut {
		return
	}
	if err := awaitErr(ctx, m.config.OperationTimeout, m.store.SignOut); err != nil {
		m.logger.Warn("sign out of superseded %s session failed: %v", source, err)
	}
}

func (m *SessionManager) clearLoading() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLoadingLocked()
}

func (m *SessionManager) clearLoadingLocked() {
	if m.state.IsLoading {
		m.publishLocked(newSessionState(m.state.Identity, false))
	}
}

func (m *SessionManager) isStaleLocked(opts applyOptions) bool {
	if opts.expectGeneration != nil && *opts.expectGeneration != m.generation {
		return true
	}
	if opts.expectLogoutEpoch != nil && *opts.expectLogoutEpoch != m.logoutEpoch {
		return true
	}
	if opts.dropIfSuperseded && m.hasSupersededOpLocked() {
		return true
	}
	return false
}

// finishBootLocked disarms the watchdog once the startup sequence decided.
func (m *SessionManager) finishBootLocked() {
	if !m.booting {
		return
	}
	m.booting = false
	if m.watchdog != nil {
		m.watchdog.Stop()
	}
}

func (m *SessionManager) fireWatchdog() {
	m.mu.Lock()
	if !m.booting {
		m.mu.Unlock()
		return
	}
	m.booting = false
	fired := m.state.IsLoading
	if fired {
		m.publishLocked(newSessionState(m.state.Identity, false))
	}
	m.mu.Unlock()

	if fired {
		m.logger.Warn("session bootstrap watchdog fired after %s", m.config.WatchdogTimeout)
		m.emit(context.Background(), ActivityEventWatchdogFired, "", "watchdog", map[string]any{
			"timeout": m.config.WatchdogTimeout.String(),
		})
	}
}

func (m *SessionManager) publishLocked(state SessionState) {
	m.state = state
	m.hub.publish(state)
}

func (m *SessionManager) outcomeResult(outcome applyOutcome, session *Session) (bool, error) {
	switch outcome {
	case outcomePublished, outcomeUnchanged:
		return true, nil
	case outcomeRejected:
		return false, wrapError(ErrApprovalPending, nil, map[string]any{
			"subject_id": session.UserID,
			"redirect":   m.config.PendingApprovalPath,
		})
	case outcomeSuperseded:
		return false, ErrSuperseded
	default:
		return false, ErrNoSession
	}
}

func (m *SessionManager) emitLoginFailure(ctx context.Context, credential Credential, source string, err error) {
	meta := map[string]any{
		"identifier": credential.Identifier,
	}
	if err != nil {
		meta["error"] = err.Error()
	}
	m.emit(ctx, ActivityEventLoginFailure, "", source, meta)
}

func (m *SessionManager) emit(ctx context.Context, eventType ActivityEventType, subjectID, source string, metadata map[string]any) {
	sink := normalizeActivitySink(m.activitySink)
	event := ActivityEvent{
		EventType:  eventType,
		SubjectID:  subjectID,
		Source:     source,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(context.WithoutCancel(ctx), event); err != nil {
		m.logger.Warn("activity sink record error: %v", err)
	}
}

// classifyStoreError keeps typed session errors and wraps transport failures
func classifyStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case IsTimeoutError(err), IsInvalidCredentials(err), IsNoSession(err):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return wrapError(ErrSessionStoreUnavailable, err, nil)
	}
}
