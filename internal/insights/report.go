package insights

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/justestif/wellness-tracker/internal/tracker"
)

// Lister reads a user's entries of one tracker. *tracker.Service satisfies it.
type Lister interface {
	List(ctx context.Context, kind tracker.Kind, userID uuid.UUID, from, to tracker.Date) ([]tracker.Entry, error)
}

// Collect merges the sleep, mood and water entries between from and to into
// one Day per logged date, oldest first.
func Collect(ctx context.Context, src Lister, userID uuid.UUID, from, to tracker.Date) ([]Day, error) {
	byDate := make(map[tracker.Date]*Day)
	day := func(d tracker.Date) *Day {
		if byDate[d] == nil {
			byDate[d] = &Day{Date: d}
		}
		return byDate[d]
	}

	for _, kind := range []tracker.Kind{tracker.KindSleep, tracker.KindMood, tracker.KindWater} {
		entries, err := src.List(ctx, kind, userID, from, to)
		if err != nil {
			return nil, fmt.Errorf("collecting %s: %w", kind, err)
		}
		for _, e := range entries {
			d := day(e.Base().Date)
			switch e := e.(type) {
			case *tracker.SleepEntry:
				hours, quality := e.DurationHours, e.Quality
				d.SleepHours, d.SleepQuality = &hours, &quality
			case *tracker.MoodEntry:
				mood := e.Mood
				d.Mood = &mood
			case *tracker.WaterEntry:
				cups := e.Cups
				d.WaterCups, d.WaterGoal = &cups, e.Goal
			}
		}
	}

	days := make([]Day, 0, len(byDate))
	for d := from; d <= to; d = d.AddDays(1) {
		if v, ok := byDate[d]; ok {
			days = append(days, *v)
		}
	}
	return days, nil
}

// Build collects the window ending at to and detects its patterns.
func Build(ctx context.Context, src Lister, userID uuid.UUID, from, to tracker.Date, cfg Config) (*Report, error) {
	if from > to {
		from, to = to, from
	}
	days, err := Collect(ctx, src, userID, from, to)
	if err != nil {
		return nil, err
	}

	patterns, outliers := Detect(days, cfg)
	return &Report{
		From:     from,
		To:       to,
		Patterns: patterns,
		Outliers: outliers,
		Summary:  FormatSummary(patterns, outliers),
	}, nil
}

// FormatSummary returns a one-line description of the detected patterns.
func FormatSummary(patterns []Pattern, outliers []Day) string {
	total := len(outliers)
	for _, p := range patterns {
		total += len(p.Days)
	}

	var sb strings.Builder
	if len(patterns) == 0 {
		sb.WriteString(fmt.Sprintf("No patterns found in %d %s", total, plural(total, "day", "days")))
	} else {
		sb.WriteString(fmt.Sprintf("Found %d %s across %d %s",
			len(patterns), plural(len(patterns), "pattern", "patterns"), total, plural(total, "day", "days")))
	}
	if len(outliers) > 0 {
		sb.WriteString(fmt.Sprintf(" (%d %s didn't fit)", len(outliers), plural(len(outliers), "day", "days")))
	}
	return sb.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
