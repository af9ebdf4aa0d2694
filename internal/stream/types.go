package stream

import (
	"encoding/json"
	"time"
)

// Document is the remote envelope for document streams. The payload is kept
// opaque; UpdatedAt is the last-modified timestamp used for newer-wins
// reconciliation.
type Document struct {
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Item is one member of a collection stream, addressed by the string form
// of its id with the record itself as the document body.
type Item struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Card is a single flashcard.
type Card struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// Deck is one item of the flashcards collection stream. Decks are shown
// newest-first, so new decks are prepended.
type Deck struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Cards []Card `json:"cards"`
	Date  string `json:"date"`
}

// Question is a single quiz question with one correct answer index.
type Question struct {
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices"`
	Answer  int      `json:"answer"`
}

// Quiz is one item of the quizzes collection stream.
type Quiz struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	Date      string     `json:"date"`
}

// Course is one row of the user's course list.
type Course struct {
	Name    string  `json:"name"`
	Credits float64 `json:"credits"`
	Grade   string  `json:"grade,omitempty"`
}

// Profile is the user document stream payload.
type Profile struct {
	Name       string   `json:"name"`
	University string   `json:"university"`
	Credits    float64  `json:"credits"`
	Courses    []Course `json:"courses"`
}
