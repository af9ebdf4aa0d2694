// Package study owns the flashcard-deck and quiz collection streams.
//
// Unlike tasks, these collections change rarely and as whole units (a deck
// is saved or deleted, never edited item-by-item), so persistence uses the
// engine's whole-collection save: local first, then a batch rewrite of the
// remote collection.
package study

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/nexusapp/nexus/internal/engine"
	"github.com/nexusapp/nexus/internal/stream"
)

// Store holds the saved decks and quizzes, newest first.
type Store struct {
	engine *engine.Engine
	logger *log.Logger
	notify func(kind, message string)
	now    func() time.Time

	mu      sync.Mutex
	decks   []stream.Deck
	quizzes []stream.Quiz
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithNotifier sets the callback invoked after successful saves and
// deletes, for UI toasts.
func WithNotifier(fn func(kind, message string)) Option {
	return func(s *Store) { s.notify = fn }
}

// WithNow overrides the clock used for ids and dates.
func WithNow(fn func() time.Time) Option {
	return func(s *Store) { s.now = fn }
}

// New creates the study store, loading decks and quizzes from the engine.
// Corrupt persisted data initializes the affected collection empty.
func New(eng *engine.Engine, opts ...Option) (*Store, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}

	s := &Store{
		engine: eng,
		logger: log.New(os.Stderr, "[study] ", log.LstdFlags),
		notify: func(string, string) {},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if raw, err := eng.Load(context.Background(), stream.Flashcards); err == nil && raw != nil {
		if err := json.Unmarshal(raw, &s.decks); err != nil {
			s.logger.Printf("Corrupt flashcard data, starting empty: %v", err)
			s.decks = nil
		}
	}
	if raw, err := eng.Load(context.Background(), stream.Quizzes); err == nil && raw != nil {
		if err := json.Unmarshal(raw, &s.quizzes); err != nil {
			s.logger.Printf("Corrupt quiz data, starting empty: %v", err)
			s.quizzes = nil
		}
	}
	return s, nil
}

// Decks returns a snapshot of the saved decks, newest first.
func (s *Store) Decks() []stream.Deck {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]stream.Deck(nil), s.decks...)
}

// Quizzes returns a snapshot of the saved quizzes, newest first.
func (s *Store) Quizzes() []stream.Quiz {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]stream.Quiz(nil), s.quizzes...)
}

// SaveDeck stores a new flashcard deck at the front of the list.
func (s *Store) SaveDeck(title string, cards []stream.Card) stream.Deck {
	deck := stream.Deck{
		ID:    s.now().UnixMilli(),
		Title: title,
		Cards: cards,
		Date:  s.now().Format(stream.DateLayout),
	}

	s.mu.Lock()
	s.decks = append([]stream.Deck{deck}, s.decks...)
	s.persistDecksLocked()
	s.mu.Unlock()

	s.notify("success", "Flashcard deck saved!")
	return deck
}

// DeleteDeck removes a deck by id. Unknown ids are no-ops.
func (s *Store) DeleteDeck(id int64) {
	s.mu.Lock()
	out := s.decks[:0]
	for _, d := range s.decks {
		if d.ID != id {
			out = append(out, d)
		}
	}
	s.decks = out
	s.persistDecksLocked()
	s.mu.Unlock()

	s.notify("success", "Deck deleted")
}

// SaveQuiz stores a new quiz at the front of the list.
func (s *Store) SaveQuiz(title string, questions []stream.Question) stream.Quiz {
	quiz := stream.Quiz{
		ID:        s.now().UnixMilli(),
		Title:     title,
		Questions: questions,
		Date:      s.now().Format(stream.DateLayout),
	}

	s.mu.Lock()
	s.quizzes = append([]stream.Quiz{quiz}, s.quizzes...)
	s.persistQuizzesLocked()
	s.mu.Unlock()

	s.notify("success", "Quiz saved!")
	return quiz
}

// DeleteQuiz removes a quiz by id. Unknown ids are no-ops.
func (s *Store) DeleteQuiz(id int64) {
	s.mu.Lock()
	out := s.quizzes[:0]
	for _, q := range s.quizzes {
		if q.ID != id {
			out = append(out, q)
		}
	}
	s.quizzes = out
	s.persistQuizzesLocked()
	s.mu.Unlock()

	s.notify("success", "Quiz deleted")
}

func (s *Store) persistDecksLocked() {
	data, err := json.Marshal(s.decks)
	if err != nil {
		s.logger.Printf("Error marshaling decks: %v", err)
		return
	}
	if err := s.engine.Save(context.Background(), stream.Flashcards, data); err != nil {
		s.logger.Printf("Error saving decks: %v", err)
	}
}

func (s *Store) persistQuizzesLocked() {
	data, err := json.Marshal(s.quizzes)
	if err != nil {
		s.logger.Printf("Error marshaling quizzes: %v", err)
		return
	}
	if err := s.engine.Save(context.Background(), stream.Quizzes, data); err != nil {
		s.logger.Printf("Error saving quizzes: %v", err)
	}
}
