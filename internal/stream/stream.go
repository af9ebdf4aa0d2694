// Package stream defines the named data streams synchronized between the
// local store and the remote store, along with the record types they carry.
//
// A stream is an independently-synced unit of user data. Document streams
// hold one JSON value per user; collection streams hold a set of items that
// are addressable by id and can be mutated independently.
package stream

// Name identifies a data stream.
type Name string

const (
	// User is the profile document (name, university, credits, courses).
	User Name = "user"
	// Tasks is the to-do list collection.
	Tasks Name = "tasks"
	// Flashcards is the flashcard deck collection.
	Flashcards Name = "flashcards"
	// Quizzes is the saved quiz collection.
	Quizzes Name = "quizzes"
	// Theme is the UI theme preference document.
	Theme Name = "theme"
	// Grades is the grade calculator state document.
	Grades Name = "grades"
	// Timetable is the weekly timetable document.
	Timetable Name = "timetable"
)

// All lists every stream in a stable order. Migration iterates this.
func All() []Name {
	return []Name{User, Tasks, Flashcards, Quizzes, Theme, Grades, Timetable}
}

// localKeys maps stream names to their local store keys. The keys are part
// of the on-disk format and must not change; "theme" predates the nexus_
// prefix convention.
var localKeys = map[Name]string{
	User:       "nexus_user",
	Tasks:      "nexus_tasks",
	Flashcards: "nexus_flashcards",
	Quizzes:    "nexus_quizzes",
	Theme:      "theme",
	Grades:     "nexus_grades",
	Timetable:  "nexus_timetable",
}

// LocalKey returns the local store key for the stream.
func (n Name) LocalKey() string {
	if key, ok := localKeys[n]; ok {
		return key
	}
	return string(n)
}

// IsCollection reports whether the stream is a collection of independently
// addressable items rather than a single document.
func (n Name) IsCollection() bool {
	switch n {
	case Tasks, Flashcards, Quizzes:
		return true
	default:
		return false
	}
}

// Valid reports whether n is a known stream name.
func (n Name) Valid() bool {
	_, ok := localKeys[n]
	return ok
}
