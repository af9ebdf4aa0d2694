package stream

import (
	"fmt"
	"time"
)

// Task tags.
const (
	TagSchool   = "School"
	TagPersonal = "Personal"
)

// Task priorities.
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// DateLayout is the calendar date format used by task due dates.
const DateLayout = "2006-01-02"

// TimeLayout is the optional time-of-day format for task due times.
const TimeLayout = "15:04"

// Task is one item of the tasks collection stream.
//
// IDs are creation timestamps in epoch milliseconds, generated client-side.
// An ID never changes once the task exists; every other field is mutable.
type Task struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Date      string `json:"date"`           // due date, DateLayout
	Time      string `json:"time,omitempty"` // due time of day, TimeLayout
	Tag       string `json:"tag"`            // School or Personal
	Priority  string `json:"priority"`       // normal or high
	Completed bool   `json:"completed"`
}

// Validate checks field values. Zero-value optional fields pass.
func (t *Task) Validate() error {
	if t.ID == 0 {
		return fmt.Errorf("id is required")
	}
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if t.Date != "" {
		if _, err := time.Parse(DateLayout, t.Date); err != nil {
			return fmt.Errorf("invalid date %q: %w", t.Date, err)
		}
	}
	if t.Time != "" {
		if _, err := time.Parse(TimeLayout, t.Time); err != nil {
			return fmt.Errorf("invalid time %q: %w", t.Time, err)
		}
	}
	switch t.Tag {
	case TagSchool, TagPersonal:
	default:
		return fmt.Errorf("tag must be %s or %s (got %q)", TagSchool, TagPersonal, t.Tag)
	}
	switch t.Priority {
	case PriorityNormal, PriorityHigh:
	default:
		return fmt.Errorf("priority must be %s or %s (got %q)", PriorityNormal, PriorityHigh, t.Priority)
	}
	return nil
}

// Due returns the task's due instant in the given location. Tasks without a
// time component are due at end of day. Returns the zero time when no date
// is set.
func (t *Task) Due(loc *time.Location) time.Time {
	if t.Date == "" {
		return time.Time{}
	}
	if t.Time != "" {
		due, err := time.ParseInLocation(DateLayout+" "+TimeLayout, t.Date+" "+t.Time, loc)
		if err == nil {
			return due
		}
	}
	due, err := time.ParseInLocation(DateLayout, t.Date, loc)
	if err != nil {
		return time.Time{}
	}
	return due.Add(24*time.Hour - time.Second)
}

// DueToday reports whether the task's due date equals now's calendar date.
func (t *Task) DueToday(now time.Time) bool {
	return t.Date == now.Format(DateLayout)
}

// CloneTasks returns a deep copy of the task slice. Feature stores snapshot
// state with this before optimistic mutations so a failed remote write can
// restore the exact pre-mutation value.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out
}

// SampleTasks returns the starter tasks seeded for brand-new installs with
// no persisted task data.
func SampleTasks() []Task {
	return []Task{
		{ID: 1, Title: "CS 101 Final Project", Date: "2026-02-28", Tag: TagSchool, Priority: PriorityHigh},
		{ID: 2, Title: "Apply for Internship", Date: "2026-01-30", Tag: TagPersonal, Priority: PriorityNormal},
		{ID: 3, Title: "Buy Groceries", Date: "2026-01-24", Tag: TagPersonal, Priority: PriorityNormal, Completed: true},
	}
}
