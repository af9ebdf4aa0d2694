package identity

import "testing"

func TestNewManagerStartsLoading(t *testing.T) {
	m := NewManager()
	s := m.Session()
	if !s.IsLoading || s.IsAuthenticated || s.UserID != "" {
		t.Fatalf("expected pending session, got %+v", s)
	}
}

func TestSignInNotifiesWatchers(t *testing.T) {
	m := NewManager()

	var got []Session
	m.Watch(func(s Session) { got = append(got, s) })

	m.SignIn("u1")

	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	if !got[0].IsAuthenticated || got[0].UserID != "u1" || got[0].IsLoading {
		t.Fatalf("unexpected session: %+v", got[0])
	}
}

func TestSignOutClearsSession(t *testing.T) {
	m := NewManager()
	m.SignIn("u1")
	m.SignOut()

	s := m.Session()
	if s.IsAuthenticated || s.UserID != "" {
		t.Fatalf("expected cleared session, got %+v", s)
	}
}

func TestResolveOnlyAppliesWhilePending(t *testing.T) {
	m := NewManager()
	m.Resolve()
	if s := m.Session(); s.IsLoading {
		t.Fatalf("expected resolve to clear loading")
	}

	m.SignIn("u1")
	m.Resolve()
	if s := m.Session(); !s.IsAuthenticated {
		t.Fatalf("resolve must not sign out an authenticated session")
	}
}

func TestWatchCancelIsIdempotent(t *testing.T) {
	m := NewManager()

	calls := 0
	cancel := m.Watch(func(Session) { calls++ })

	m.SignIn("u1")
	cancel()
	cancel()
	m.SignOut()

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
