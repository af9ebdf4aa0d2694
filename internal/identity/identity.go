// Package identity tracks the authentication session the sync engine
// routes on. The actual credential exchange happens in an external
// provider; this package only carries its result: a stable user id and the
// signed-in / signed-out / pending lifecycle.
package identity

import "sync"

// Session is the identity snapshot consumed by the sync layer.
type Session struct {
	// UserID is the stable identifier of the signed-in user, empty when
	// signed out.
	UserID string
	// IsAuthenticated is true once a user id is known.
	IsAuthenticated bool
	// IsLoading is true while the initial identity check is still in
	// flight; routing decisions should wait for it to clear.
	IsLoading bool
}

// Manager holds the current session and notifies watchers on changes.
//
// Watch callbacks run synchronously on the goroutine that changed the
// session, in registration order.
type Manager struct {
	mu       sync.Mutex
	session  Session
	watchers map[int]func(Session)
	nextID   int
}

// NewManager creates a manager in the pending state: not authenticated,
// identity check still loading.
func NewManager() *Manager {
	return &Manager{
		session:  Session{IsLoading: true},
		watchers: make(map[int]func(Session)),
	}
}

// Session returns the current session snapshot.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// SignIn records a completed sign-in for uid and notifies watchers.
func (m *Manager) SignIn(uid string) {
	m.set(Session{UserID: uid, IsAuthenticated: true})
}

// SignOut clears the session and notifies watchers.
func (m *Manager) SignOut() {
	m.set(Session{})
}

// Resolve marks the initial identity check complete without a signed-in
// user (guest mode).
func (m *Manager) Resolve() {
	m.mu.Lock()
	if m.session.IsAuthenticated || !m.session.IsLoading {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.set(Session{})
}

// Watch registers fn to run on every session change. The returned cancel
// function is idempotent.
func (m *Manager) Watch(fn func(Session)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, id)
			m.mu.Unlock()
		})
	}
}

func (m *Manager) set(s Session) {
	m.mu.Lock()
	m.session = s
	fns := make([]func(Session), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
