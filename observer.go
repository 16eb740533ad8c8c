package auth

import (
	"context"
	"sync"
	"time"
)

// SessionHandler receives the normalized session stream. The first call is
// always the startup result with Kind EventInitialSession; session is nil
// when there is no session, including on timeout or error.
type SessionHandler func(ctx context.Context, event SessionEvent)

// SessionObserver merges the store's current session query and its change
// notifications into one stream. It never returns errors: transport
// failures are logged and reported as "no session".
type SessionObserver struct {
	store   SessionStore
	timeout time.Duration
	logger  Logger

	mu               sync.Mutex
	started          bool
	initialDelivered bool
	initialEmpty     bool
	unsubscribe      func()
}

// ObserverOption customizes a SessionObserver
type ObserverOption func(*SessionObserver)

// WithObserverTimeout bounds the startup session query
func WithObserverTimeout(timeout time.Duration) ObserverOption {
	return func(o *SessionObserver) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithObserverLogger sets the logger
func WithObserverLogger(logger Logger) ObserverOption {
	return func(o *SessionObserver) {
		o.logger = normalizeLogger(logger)
	}
}

// NewSessionObserver creates an observer for store
func NewSessionObserver(store SessionStore, opts ...ObserverOption) *SessionObserver {
	o := &SessionObserver{
		store:   store,
		timeout: DefaultSessionTimeout,
		logger:  defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	return o
}

// Start subscribes to the store and delivers the current session. It must
// be called once; later calls are ignored. Start blocks at most for the
// configured timeout.
func (o *SessionObserver) Start(ctx context.Context, handler SessionHandler) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		o.logger.Warn("session observer already started")
		return
	}
	o.started = true
	o.mu.Unlock()

	bg := context.WithoutCancel(ctx)

	unsubscribe := o.store.Subscribe(func(event SessionEvent) {
		o.dispatch(bg, handler, event)
	})

	o.mu.Lock()
	o.unsubscribe = unsubscribe
	o.mu.Unlock()

	session, err := AwaitWithTimeout(ctx, o.timeout, o.store.GetCurrentSession)
	if err != nil {
		if IsTimeoutError(err) {
			o.logger.Warn("current session query timed out after %s", o.timeout)
		} else {
			o.logger.Error("current session query failed: %v", err)
		}
		session = nil
	}

	o.mu.Lock()
	o.initialDelivered = true
	o.initialEmpty = session == nil
	o.mu.Unlock()

	handler(bg, SessionEvent{Kind: EventInitialSession, Session: session})
}

// Stop ends the subscription
func (o *SessionObserver) Stop() {
	o.mu.Lock()
	unsubscribe := o.unsubscribe
	o.unsubscribe = nil
	o.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (o *SessionObserver) dispatch(ctx context.Context, handler SessionHandler, event SessionEvent) {
	switch event.Kind {
	case EventInitialSession:
		o.mu.Lock()
		// the query result drives the first publication; a late notification
		// is only useful when that query came back empty
		forward := o.initialDelivered && o.initialEmpty && event.Session != nil
		if forward {
			o.initialEmpty = false
		}
		o.mu.Unlock()

		if !forward {
			o.logger.Debug("suppressing store initial session notification")
			return
		}
		handler(ctx, SessionEvent{Kind: EventSignedIn, Session: event.Session})

	case EventSignedIn, EventSignedOut, EventTokenRefreshed:
		handler(ctx, event)

	default:
		o.logger.Debug("ignoring session event %s", event.Kind)
	}
}
