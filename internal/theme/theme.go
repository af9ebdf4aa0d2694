// Package theme owns the UI theme preference document stream.
package theme

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"

	"github.com/nexusapp/nexus/internal/engine"
	"github.com/nexusapp/nexus/internal/stream"
)

// Theme values. The retired "silver" value is remapped to light on load.
const (
	Dark   = "dark"
	White  = "white"
	Hybrid = "hybrid"
	Light  = "light"
)

// Store holds the current theme and persists changes through the engine.
type Store struct {
	engine *engine.Engine
	logger *log.Logger

	mu    sync.Mutex
	theme string
}

// New creates the theme store, loading the saved preference. Unknown or
// corrupt values fall back to dark.
func New(eng *engine.Engine, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(os.Stderr, "[theme] ", log.LstdFlags)
	}
	s := &Store{engine: eng, logger: logger, theme: Dark}

	raw, err := eng.Load(context.Background(), stream.Theme)
	if err != nil || raw == nil {
		return s
	}
	var saved string
	if err := json.Unmarshal(raw, &saved); err != nil {
		return s
	}
	s.theme = Normalize(saved)
	return s
}

// Normalize maps a stored theme value to a valid one.
func Normalize(v string) string {
	switch v {
	case "silver":
		return Light
	case Dark, Hybrid, Light, White:
		return v
	default:
		return Dark
	}
}

// Theme returns the current theme.
func (s *Store) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// Set applies and persists a theme value.
func (s *Store) Set(v string) {
	s.mu.Lock()
	s.theme = Normalize(v)
	current := s.theme
	s.mu.Unlock()
	s.persist(current)
}

// Toggle cycles dark -> white -> hybrid -> dark.
func (s *Store) Toggle() string {
	s.mu.Lock()
	switch s.theme {
	case Dark:
		s.theme = White
	case White:
		s.theme = Hybrid
	default:
		s.theme = Dark
	}
	current := s.theme
	s.mu.Unlock()

	s.persist(current)
	return current
}

func (s *Store) persist(v string) {
	data, _ := json.Marshal(v)
	if err := s.engine.Save(context.Background(), stream.Theme, data); err != nil {
		s.logger.Printf("Error saving theme: %v", err)
	}
}
