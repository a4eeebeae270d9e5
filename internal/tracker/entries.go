package tracker

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Meta holds the fields every entry shares. ID and timestamps are assigned on save.
type Meta struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Date      Date      `json:"date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Base returns the shared fields.
func (m *Meta) Base() *Meta {
	return m
}

// Entry is a single day's record for one tracker.
//
// Columns, Values and Targets describe the tracker-specific columns in the
// same order, so a store can insert, update and scan without knowing the type.
type Entry interface {
	Kind() Kind
	Base() *Meta
	// Prepare validates the entry and fills derived fields.
	Prepare() error
	Columns() []string
	Values() []any
	Targets() []any
	// Metrics returns the numeric values averaged over a window.
	Metrics() map[string]float64
}

// New returns an empty entry of the given kind.
func New(kind Kind) (Entry, error) {
	switch kind {
	case KindMood:
		return &MoodEntry{}, nil
	case KindWater:
		return &WaterEntry{}, nil
	case KindSleep:
		return &SleepEntry{}, nil
	case KindWeight:
		return &WeightEntry{}, nil
	case KindMeals:
		return &MealEntry{}, nil
	case KindJournal:
		return &JournalEntry{}, nil
	case KindExercise:
		return &ExerciseEntry{}, nil
	case KindStretch:
		return &StretchEntry{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func fieldError(field, msg string) error {
	return fmt.Errorf("%s %s", field, msg)
}

func inRange(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return fieldError(field, fmt.Sprintf("must be between %d and %d", lo, hi))
	}
	return nil
}

// ============================================================================
// Mood
// ============================================================================

// MoodEntry records how the day felt on a 1-5 scale.
type MoodEntry struct {
	Meta
	Mood   int    `json:"mood"`
	Energy int    `json:"energy,omitempty"` // 0 when not recorded
	Note   string `json:"note,omitempty"`
}

func (e *MoodEntry) Kind() Kind { return KindMood }

func (e *MoodEntry) Prepare() error {
	e.Note = strings.TrimSpace(e.Note)
	return errors.Join(inRange("mood", e.Mood, 1, 5), inRange("energy", e.Energy, 0, 5))
}

func (e *MoodEntry) Columns() []string { return []string{"mood", "energy", "note"} }
func (e *MoodEntry) Values() []any     { return []any{e.Mood, e.Energy, e.Note} }
func (e *MoodEntry) Targets() []any    { return []any{&e.Mood, &e.Energy, &e.Note} }

func (e *MoodEntry) Metrics() map[string]float64 {
	m := map[string]float64{"mood": float64(e.Mood)}
	if e.Energy > 0 {
		m["energy"] = float64(e.Energy)
	}
	return m
}

// ============================================================================
// Water
// ============================================================================

// DefaultWaterGoal is the daily cup goal used when the profile has none.
const DefaultWaterGoal = 8

// WaterEntry records cups of water against the day's goal.
type WaterEntry struct {
	Meta
	Cups int `json:"cups"`
	Goal int `json:"goal"`
}

func (e *WaterEntry) Kind() Kind { return KindWater }

func (e *WaterEntry) Prepare() error {
	if e.Goal == 0 {
		e.Goal = DefaultWaterGoal
	}
	return errors.Join(inRange("cups", e.Cups, 0, 100), inRange("goal", e.Goal, 1, 100))
}

func (e *WaterEntry) Columns() []string { return []string{"cups", "goal"} }
func (e *WaterEntry) Values() []any     { return []any{e.Cups, e.Goal} }
func (e *WaterEntry) Targets() []any    { return []any{&e.Cups, &e.Goal} }

// GoalMet reports whether the day's goal was reached.
func (e *WaterEntry) GoalMet() bool {
	return e.Goal > 0 && e.Cups >= e.Goal
}

func (e *WaterEntry) Metrics() map[string]float64 {
	met := 0.0
	if e.GoalMet() {
		met = 1
	}
	return map[string]float64{"cups": float64(e.Cups), "goal_met": met}
}

// ============================================================================
// Sleep
// ============================================================================

// SleepEntry records the night ending on the entry date.
type SleepEntry struct {
	Meta
	Bedtime       string  `json:"bedtime"`
	WakeTime      string  `json:"wake_time"`
	Quality       int     `json:"quality"`
	DurationHours float64 `json:"duration_hours"`
	Note          string  `json:"note,omitempty"`
}

func (e *SleepEntry) Kind() Kind { return KindSleep }

func (e *SleepEntry) Prepare() error {
	e.Note = strings.TrimSpace(e.Note)
	hours, err := SleepDuration(e.Bedtime, e.WakeTime)
	if err != nil {
		return errors.Join(err, inRange("quality", e.Quality, 1, 5))
	}
	e.DurationHours = hours
	return inRange("quality", e.Quality, 1, 5)
}

func (e *SleepEntry) Columns() []string {
	return []string{"bedtime", "wake_time", "quality", "duration_hours", "note"}
}

func (e *SleepEntry) Values() []any {
	return []any{e.Bedtime, e.WakeTime, e.Quality, e.DurationHours, e.Note}
}

func (e *SleepEntry) Targets() []any {
	return []any{&e.Bedtime, &e.WakeTime, &e.Quality, &e.DurationHours, &e.Note}
}

func (e *SleepEntry) Metrics() map[string]float64 {
	return map[string]float64{
		"duration_hours": e.DurationHours,
		"quality":        float64(e.Quality),
	}
}

// ============================================================================
// Weight
// ============================================================================

// WeightEntry records a body weight in kilograms.
type WeightEntry struct {
	Meta
	WeightKg float64 `json:"weight_kg"`
	Note     string  `json:"note,omitempty"`
}

func (e *WeightEntry) Kind() Kind { return KindWeight }

func (e *WeightEntry) Prepare() error {
	e.Note = strings.TrimSpace(e.Note)
	if e.WeightKg <= 0 || e.WeightKg > 700 {
		return fieldError("weight_kg", "must be between 0 and 700")
	}
	return nil
}

func (e *WeightEntry) Columns() []string { return []string{"weight_kg", "note"} }
func (e *WeightEntry) Values() []any     { return []any{e.WeightKg, e.Note} }
func (e *WeightEntry) Targets() []any    { return []any{&e.WeightKg, &e.Note} }

func (e *WeightEntry) Metrics() map[string]float64 {
	return map[string]float64{"weight_kg": e.WeightKg}
}

// ============================================================================
// Meals
// ============================================================================

// MealEntry records what was eaten during the day.
type MealEntry struct {
	Meta
	Breakfast string `json:"breakfast,omitempty"`
	Lunch     string `json:"lunch,omitempty"`
	Dinner    string `json:"dinner,omitempty"`
	Snacks    string `json:"snacks,omitempty"`
	Calories  int    `json:"calories,omitempty"`
}

func (e *MealEntry) Kind() Kind { return KindMeals }

func (e *MealEntry) Prepare() error {
	e.Breakfast = strings.TrimSpace(e.Breakfast)
	e.Lunch = strings.TrimSpace(e.Lunch)
	e.Dinner = strings.TrimSpace(e.Dinner)
	e.Snacks = strings.TrimSpace(e.Snacks)

	var errs []error
	if e.Breakfast == "" && e.Lunch == "" && e.Dinner == "" && e.Snacks == "" {
		errs = append(errs, fieldError("meals", "need at least one meal"))
	}
	errs = append(errs, inRange("calories", e.Calories, 0, 20000))
	return errors.Join(errs...)
}

func (e *MealEntry) Columns() []string {
	return []string{"breakfast", "lunch", "dinner", "snacks", "calories"}
}

func (e *MealEntry) Values() []any {
	return []any{e.Breakfast, e.Lunch, e.Dinner, e.Snacks, e.Calories}
}

func (e *MealEntry) Targets() []any {
	return []any{&e.Breakfast, &e.Lunch, &e.Dinner, &e.Snacks, &e.Calories}
}

func (e *MealEntry) Metrics() map[string]float64 {
	if e.Calories == 0 {
		return map[string]float64{}
	}
	return map[string]float64{"calories": float64(e.Calories)}
}

// ============================================================================
// Journal
// ============================================================================

// JournalEntry is a free-form note for the day.
type JournalEntry struct {
	Meta
	Title     string `json:"title,omitempty"`
	Content   string `json:"content"`
	Gratitude string `json:"gratitude,omitempty"`
}

func (e *JournalEntry) Kind() Kind { return KindJournal }

func (e *JournalEntry) Prepare() error {
	e.Title = strings.TrimSpace(e.Title)
	e.Content = strings.TrimSpace(e.Content)
	e.Gratitude = strings.TrimSpace(e.Gratitude)
	if e.Content == "" {
		return fieldError("content", "is required")
	}
	return nil
}

func (e *JournalEntry) Columns() []string { return []string{"title", "content", "gratitude"} }
func (e *JournalEntry) Values() []any     { return []any{e.Title, e.Content, e.Gratitude} }
func (e *JournalEntry) Targets() []any    { return []any{&e.Title, &e.Content, &e.Gratitude} }

func (e *JournalEntry) Metrics() map[string]float64 {
	return map[string]float64{"words": float64(len(strings.Fields(e.Content)))}
}

// ============================================================================
// Exercise
// ============================================================================

// Exercise intensities.
const (
	IntensityLow      = "low"
	IntensityModerate = "moderate"
	IntensityHigh     = "high"
)

// ExerciseEntry records the day's workout.
type ExerciseEntry struct {
	Meta
	Activity        string `json:"activity"`
	DurationMinutes int    `json:"duration_minutes"`
	Intensity       string `json:"intensity"`
}

func (e *ExerciseEntry) Kind() Kind { return KindExercise }

func (e *ExerciseEntry) Prepare() error {
	e.Activity = strings.TrimSpace(e.Activity)
	e.Intensity = strings.ToLower(strings.TrimSpace(e.Intensity))
	if e.Intensity == "" {
		e.Intensity = IntensityModerate
	}

	var errs []error
	if e.Activity == "" {
		errs = append(errs, fieldError("activity", "is required"))
	}
	errs = append(errs, inRange("duration_minutes", e.DurationMinutes, 1, 1440))
	switch e.Intensity {
	case IntensityLow, IntensityModerate, IntensityHigh:
	default:
		errs = append(errs, fieldError("intensity", "must be low, moderate or high"))
	}
	return errors.Join(errs...)
}

func (e *ExerciseEntry) Columns() []string {
	return []string{"activity", "duration_minutes", "intensity"}
}

func (e *ExerciseEntry) Values() []any {
	return []any{e.Activity, e.DurationMinutes, e.Intensity}
}

func (e *ExerciseEntry) Targets() []any {
	return []any{&e.Activity, &e.DurationMinutes, &e.Intensity}
}

func (e *ExerciseEntry) Metrics() map[string]float64 {
	return map[string]float64{"duration_minutes": float64(e.DurationMinutes)}
}

// ============================================================================
// Stretch
// ============================================================================

// StretchEntry records a stretching routine.
type StretchEntry struct {
	Meta
	Routine         string `json:"routine"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (e *StretchEntry) Kind() Kind { return KindStretch }

func (e *StretchEntry) Prepare() error {
	e.Routine = strings.TrimSpace(e.Routine)
	var errs []error
	if e.Routine == "" {
		errs = append(errs, fieldError("routine", "is required"))
	}
	errs = append(errs, inRange("duration_minutes", e.DurationMinutes, 1, 600))
	return errors.Join(errs...)
}

func (e *StretchEntry) Columns() []string { return []string{"routine", "duration_minutes"} }
func (e *StretchEntry) Values() []any     { return []any{e.Routine, e.DurationMinutes} }
func (e *StretchEntry) Targets() []any    { return []any{&e.Routine, &e.DurationMinutes} }

func (e *StretchEntry) Metrics() map[string]float64 {
	return map[string]float64{"duration_minutes": float64(e.DurationMinutes)}
}

// Ensure every entry type implements Entry.
var (
	_ Entry = (*MoodEntry)(nil)
	_ Entry = (*WaterEntry)(nil)
	_ Entry = (*SleepEntry)(nil)
	_ Entry = (*WeightEntry)(nil)
	_ Entry = (*MealEntry)(nil)
	_ Entry = (*JournalEntry)(nil)
	_ Entry = (*ExerciseEntry)(nil)
	_ Entry = (*StretchEntry)(nil)
)
