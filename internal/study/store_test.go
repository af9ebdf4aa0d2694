package study

import (
	"encoding/json"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/nexusapp/nexus/internal/engine"
	"github.com/nexusapp/nexus/internal/local"
	"github.com/nexusapp/nexus/internal/remote"
	"github.com/nexusapp/nexus/internal/stream"
)

func setupStudyStore(t *testing.T, opts ...Option) (*Store, *local.Store) {
	t.Helper()

	localStore, err := local.Open(filepath.Join(t.TempDir(), "nexus.db"))
	if err != nil {
		t.Fatalf("failed to open local store: %v", err)
	}
	t.Cleanup(func() { _ = localStore.Close() })

	eng := engine.New(localStore, remote.NewMemory(), log.New(io.Discard, "", 0))
	opts = append([]Option{WithLogger(log.New(io.Discard, "", 0))}, opts...)
	store, err := New(eng, opts...)
	if err != nil {
		t.Fatalf("failed to create study store: %v", err)
	}
	return store, localStore
}

func TestSaveDeckPrepends(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	store, _ := setupStudyStore(t, WithNow(func() time.Time {
		tick++
		return now.Add(time.Duration(tick) * time.Second)
	}))

	first := store.SaveDeck("Biology", []stream.Card{{Front: "ATP", Back: "energy carrier"}})
	second := store.SaveDeck("History", []stream.Card{{Front: "1066", Back: "Hastings"}})

	decks := store.Decks()
	if len(decks) != 2 {
		t.Fatalf("expected 2 decks, got %d", len(decks))
	}
	if decks[0].ID != second.ID || decks[1].ID != first.ID {
		t.Fatalf("expected newest-first order, got %+v", decks)
	}
	if decks[0].Date != "2026-03-01" {
		t.Fatalf("expected creation date stamped, got %s", decks[0].Date)
	}
}

func TestSaveDeckPersists(t *testing.T) {
	store, localStore := setupStudyStore(t)

	store.SaveDeck("Chemistry", []stream.Card{{Front: "H2O", Back: "water"}})

	raw, err := localStore.Get(stream.Flashcards.LocalKey())
	if err != nil {
		t.Fatalf("failed to read local store: %v", err)
	}
	var decks []stream.Deck
	if err := json.Unmarshal(raw, &decks); err != nil {
		t.Fatalf("failed to decode persisted decks: %v", err)
	}
	if len(decks) != 1 || decks[0].Title != "Chemistry" {
		t.Fatalf("expected persisted deck, got %+v", decks)
	}
}

func TestDeleteDeck(t *testing.T) {
	store, _ := setupStudyStore(t)

	deck := store.SaveDeck("Doomed", nil)
	store.DeleteDeck(deck.ID)
	store.DeleteDeck(deck.ID) // unknown id is a no-op

	if got := store.Decks(); len(got) != 0 {
		t.Fatalf("expected no decks, got %+v", got)
	}
}

func TestSaveQuizPrepends(t *testing.T) {
	store, _ := setupStudyStore(t)

	q := []stream.Question{{Prompt: "2+2?", Choices: []string{"3", "4"}, Answer: 1}}
	first := store.SaveQuiz("Math", q)
	second := store.SaveQuiz("More Math", q)

	quizzes := store.Quizzes()
	if len(quizzes) != 2 {
		t.Fatalf("expected 2 quizzes, got %d", len(quizzes))
	}
	if quizzes[0].ID != second.ID || quizzes[1].ID != first.ID {
		t.Fatalf("expected newest-first order, got %+v", quizzes)
	}
}

func TestDeleteQuiz(t *testing.T) {
	store, _ := setupStudyStore(t)

	quiz := store.SaveQuiz("Doomed", nil)
	store.DeleteQuiz(quiz.ID)

	if got := store.Quizzes(); len(got) != 0 {
		t.Fatalf("expected no quizzes, got %+v", got)
	}
}

func TestNotifierReceivesToasts(t *testing.T) {
	var kinds, messages []string
	store, _ := setupStudyStore(t, WithNotifier(func(kind, message string) {
		kinds = append(kinds, kind)
		messages = append(messages, message)
	}))

	deck := store.SaveDeck("Toasty", nil)
	store.DeleteDeck(deck.ID)

	if len(messages) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(messages))
	}
	if messages[0] != "Flashcard deck saved!" || kinds[0] != "success" {
		t.Fatalf("unexpected save notification: %s/%s", kinds[0], messages[0])
	}
	if messages[1] != "Deck deleted" {
		t.Fatalf("unexpected delete notification: %s", messages[1])
	}
}

func TestNewLoadsPersistedCollections(t *testing.T) {
	localStore, err := local.Open(filepath.Join(t.TempDir(), "nexus.db"))
	if err != nil {
		t.Fatalf("failed to open local store: %v", err)
	}
	defer localStore.Close()

	decks := []stream.Deck{{ID: 1, Title: "saved deck", Date: "2026-01-01"}}
	data, _ := json.Marshal(decks)
	if err := localStore.Put(stream.Flashcards.LocalKey(), data); err != nil {
		t.Fatalf("failed to seed decks: %v", err)
	}
	// Corrupt quizzes initialize empty without failing the store.
	if err := localStore.PutRaw(stream.Quizzes.LocalKey(), `{"wrong":"shape"}`); err != nil {
		t.Fatalf("failed to seed quizzes: %v", err)
	}

	eng := engine.New(localStore, remote.NewMemory(), log.New(io.Discard, "", 0))
	store, err := New(eng, WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if got := store.Decks(); len(got) != 1 || got[0].Title != "saved deck" {
		t.Fatalf("expected persisted deck, got %+v", got)
	}
	if got := store.Quizzes(); len(got) != 0 {
		t.Fatalf("expected empty quizzes for corrupt data, got %+v", got)
	}
}
