// Package tracker implements the per-day wellness trackers: the entry types,
// the one-entry-per-day save semantics, and the read-time aggregation shown on
// the dashboard.
package tracker

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies a tracker.
type Kind string

// Tracker kinds.
const (
	KindMood     Kind = "mood"
	KindWater    Kind = "water"
	KindSleep    Kind = "sleep"
	KindWeight   Kind = "weight"
	KindMeals    Kind = "meals"
	KindJournal  Kind = "journal"
	KindExercise Kind = "exercise"
	KindStretch  Kind = "stretch"
)

// Kinds lists every tracker in dashboard order.
var Kinds = []Kind{
	KindSleep,
	KindMood,
	KindWater,
	KindMeals,
	KindWeight,
	KindExercise,
	KindStretch,
	KindJournal,
}

var tables = map[Kind]string{
	KindMood:     "mood_entries",
	KindWater:    "water_entries",
	KindSleep:    "sleep_entries",
	KindWeight:   "weight_entries",
	KindMeals:    "meal_entries",
	KindJournal:  "journal_entries",
	KindExercise: "exercise_entries",
	KindStretch:  "stretch_entries",
}

var titles = map[Kind]string{
	KindMood:     "Mood",
	KindWater:    "Water",
	KindSleep:    "Sleep",
	KindWeight:   "Weight",
	KindMeals:    "Meals",
	KindJournal:  "Journal",
	KindExercise: "Exercise",
	KindStretch:  "Stretching",
}

// Common errors.
var (
	ErrNotFound     = errors.New("entry not found")
	ErrUnknownKind  = errors.New("unknown tracker")
	ErrInvalidEntry = errors.New("invalid entry")
)

// ParseKind converts a path segment such as "sleep" to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := tables[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Table returns the name of the table holding entries of this kind.
func (k Kind) Table() string {
	return tables[k]
}

// Title returns the display name of the tracker.
func (k Kind) Title() string {
	return titles[k]
}

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

// Date is a civil date in DateLayout form. Entries are keyed by user and Date.
type Date string

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// ParseDate validates s and returns it as a Date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("parsing date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of the date. The zero Date yields the zero time.
func (d Date) Time() time.Time {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// String implements fmt.Stringer.
func (d Date) String() string {
	return string(d)
}
