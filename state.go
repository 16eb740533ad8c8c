package auth

import "sync"

// SessionState is the externally visible session tuple.
// IsAuthenticated is always Identity != nil.
type SessionState struct {
	Identity        *Identity `json:"identity"`
	IsAuthenticated bool      `json:"is_authenticated"`
	IsLoading       bool      `json:"is_loading"`
}

func newSessionState(identity *Identity, loading bool) SessionState {
	return SessionState{
		Identity:        identity,
		IsAuthenticated: identity != nil,
		IsLoading:       loading,
	}
}

func (s SessionState) clone() SessionState {
	s.Identity = s.Identity.Clone()
	return s
}

// SubjectID is the id of the published identity, if any
func (s SessionState) SubjectID() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.ID
}

// stateHub fans out published states to subscribers. Each subscriber gets
// a one slot channel that always holds the newest state. Callers must
// serialize publish.
type stateHub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan SessionState
}

func newStateHub() *stateHub {
	return &stateHub{subs: make(map[uint64]chan SessionState)}
}

func (h *stateHub) subscribe(current SessionState) (<-chan SessionState, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++

	ch := make(chan SessionState, 1)
	ch <- current.clone()
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
		})
	}
}

func (h *stateHub) publish(state SessionState) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- state.clone()
	}
}

func (h *stateHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
