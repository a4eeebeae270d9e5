package tracker

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
)

// Summary aggregates a tracker's entries over a date window.
type Summary struct {
	Kind     Kind               `json:"kind"`
	From     Date               `json:"from"`
	To       Date               `json:"to"`
	Count    int                `json:"count"`
	Averages map[string]float64 `json:"averages"`
	// Change is the last value minus the first value of each metric.
	Change map[string]float64 `json:"change"`
	Latest Entry              `json:"latest,omitempty"`
}

// Average returns the average of metric, or 0 when it was never recorded.
func (s *Summary) Average(metric string) float64 {
	return s.Averages[metric]
}

// Summarize computes averages and first-to-last change of entries, which
// must be sorted oldest first.
func Summarize(kind Kind, from, to Date, entries []Entry) *Summary {
	sum := &Summary{
		Kind:     kind,
		From:     from,
		To:       to,
		Count:    len(entries),
		Averages: make(map[string]float64),
		Change:   make(map[string]float64),
	}
	if len(entries) == 0 {
		return sum
	}
	sum.Latest = entries[len(entries)-1]

	totals := make(map[string]float64)
	counts := make(map[string]int)
	first := make(map[string]float64)
	last := make(map[string]float64)

	for _, e := range entries {
		for name, v := range e.Metrics() {
			if _, seen := first[name]; !seen {
				first[name] = v
			}
			last[name] = v
			totals[name] += v
			counts[name]++
		}
	}

	for name, total := range totals {
		sum.Averages[name] = round2(total / float64(counts[name]))
		sum.Change[name] = round2(last[name] - first[name])
	}
	return sum
}

// MetricNames returns the metric names present in the summary, sorted.
func (s *Summary) MetricNames() []string {
	names := make([]string, 0, len(s.Averages))
	for name := range s.Averages {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// DashboardWeekDays is the window summarised on the dashboard.
const DashboardWeekDays = 7

// Dashboard is the overview shown after sign-in.
type Dashboard struct {
	Today   Date              `json:"today"`
	Profile *Profile          `json:"profile"`
	Entries map[Kind]Entry    `json:"entries"`
	Week    map[Kind]*Summary `json:"week"`
}

// Logged reports whether today's entry for kind exists.
func (d *Dashboard) Logged(kind Kind) bool {
	return d.Entries[kind] != nil
}

// Dashboard assembles today's entries and the last week's summary for every tracker.
func (s *Service) Dashboard(ctx context.Context, userID uuid.UUID) (*Dashboard, error) {
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := s.Today()
	from := today.AddDays(-(DashboardWeekDays - 1))
	d := &Dashboard{
		Today:   today,
		Profile: profile,
		Entries: make(map[Kind]Entry, len(Kinds)),
		Week:    make(map[Kind]*Summary, len(Kinds)),
	}

	for _, kind := range Kinds {
		entries, err := s.List(ctx, kind, userID, from, today)
		if err != nil {
			return nil, fmt.Errorf("building dashboard: %w", err)
		}
		sum := Summarize(kind, from, today, entries)
		d.Week[kind] = sum
		if sum.Latest != nil && sum.Latest.Base().Date == today {
			d.Entries[kind] = sum.Latest
		}
	}
	return d, nil
}
