// Package profile owns the user profile document stream.
//
// The profile is edited as a whole unit, so cloud reconciliation is the
// engine's timestamp merge: on first load after sign-in the newer of the
// local and remote copies wins and overwrites the other.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/nexusapp/nexus/internal/engine"
	"github.com/nexusapp/nexus/internal/stream"
)

// Store holds the in-memory profile and persists changes through the
// engine.
type Store struct {
	engine *engine.Engine
	logger *log.Logger

	mu      sync.Mutex
	profile *stream.Profile
}

// New creates the profile store, loading any saved profile. A missing or
// corrupt profile leaves the store empty (onboarding not yet completed).
func New(eng *engine.Engine, logger *log.Logger) (*Store, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[profile] ", log.LstdFlags)
	}
	s := &Store{engine: eng, logger: logger}

	raw, err := eng.Load(context.Background(), stream.User)
	if err != nil {
		logger.Printf("Error loading profile: %v", err)
		return s, nil
	}
	s.profile = decode(raw, logger)
	return s, nil
}

// Profile returns the current profile, or nil before onboarding.
func (s *Store) Profile() *stream.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	return &p
}

// Save replaces the profile and persists it.
func (s *Store) Save(name, university string, credits float64, courses []stream.Course) {
	p := stream.Profile{Name: name, University: university, Credits: credits, Courses: courses}

	s.mu.Lock()
	s.profile = &p
	s.mu.Unlock()
	s.persist(p)
}

// UpdateCourses replaces the course list on an existing profile. Calling
// before onboarding is a logged no-op.
func (s *Store) UpdateCourses(courses []stream.Course) {
	s.mu.Lock()
	if s.profile == nil {
		s.mu.Unlock()
		s.logger.Printf("WARNING: UpdateCourses called before a profile exists, ignoring")
		return
	}
	s.profile.Courses = courses
	p := *s.profile
	s.mu.Unlock()
	s.persist(p)
}

// Reconcile merges the local and cloud copies of the profile via the
// engine's timestamp merge and adopts the winner in memory.
func (s *Store) Reconcile(ctx context.Context) error {
	winner, err := s.engine.ReconcileDocument(ctx, stream.User)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.profile = decode(winner, s.logger)
	s.mu.Unlock()
	return nil
}

func (s *Store) persist(p stream.Profile) {
	data, err := json.Marshal(p)
	if err != nil {
		s.logger.Printf("Error marshaling profile: %v", err)
		return
	}
	if err := s.engine.Save(context.Background(), stream.User, data); err != nil {
		s.logger.Printf("Error saving profile: %v", err)
	}
}

func decode(raw json.RawMessage, logger *log.Logger) *stream.Profile {
	if raw == nil {
		return nil
	}
	var p stream.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		logger.Printf("Corrupt profile data, ignoring: %v", err)
		return nil
	}
	return &p
}
