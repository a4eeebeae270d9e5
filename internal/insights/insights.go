// Package insights groups a user's days into recurring wellness patterns
// using k-means over sleep, mood and water.
package insights

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/justestif/wellness-tracker/internal/tracker"
)

// Config holds clustering parameters.
type Config struct {
	NumPatterns    int // Number of clusters to create (default: 3)
	MinPatternSize int // Minimum days per pattern (smaller clusters become outliers)
}

// DefaultConfig returns the recommended default configuration.
func DefaultConfig() Config {
	return Config{
		NumPatterns:    3,
		MinPatternSize: 3,
	}
}

// Day is one calendar day's metrics. Nil fields were not logged.
type Day struct {
	Date         tracker.Date `json:"date"`
	SleepHours   *float64     `json:"sleep_hours,omitempty"`
	SleepQuality *int         `json:"sleep_quality,omitempty"`
	Mood         *int         `json:"mood,omitempty"`
	WaterCups    *int         `json:"water_cups,omitempty"`
	WaterGoal    int          `json:"water_goal,omitempty"`
}

// Complete reports whether every clustered metric was logged.
func (d Day) Complete() bool {
	return d.SleepHours != nil && d.SleepQuality != nil && d.Mood != nil && d.WaterCups != nil
}

// Pattern is a cluster of similar days.
type Pattern struct {
	Name        string             `json:"name"`  // "Well rested & upbeat: Jun 1 - Jun 9, 2024"
	Label       string             `json:"label"` // "Well rested & upbeat"
	Description string             `json:"description"`
	Days        []Day              `json:"days"`
	Centroid    map[string]float64 `json:"centroid"` // Average metric values in natural units
	Start       tracker.Date       `json:"start"`
	End         tracker.Date       `json:"end"`
}

// dayObservation wraps a Day to implement clusters.Observation.
type dayObservation struct {
	day    *Day
	coords clusters.Coordinates
}

func (o dayObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o dayObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// featureNames defines the metrics used for clustering, in coordinate order.
var featureNames = []string{"sleep_hours", "sleep_quality", "mood", "water"}

// Detect groups days by metric similarity using k-means clustering.
// Returns patterns, most recent first, and the days that fit none of them.
// Days missing any metric are outliers.
func Detect(days []Day, cfg Config) ([]Pattern, []Day) {
	if len(days) == 0 {
		return nil, nil
	}

	if cfg.NumPatterns <= 0 {
		cfg.NumPatterns = DefaultConfig().NumPatterns
	}
	if cfg.MinPatternSize <= 0 {
		cfg.MinPatternSize = DefaultConfig().MinPatternSize
	}

	// Separate complete days from partial ones
	var complete []*Day
	var partial []Day

	for i := range days {
		d := &days[i]
		if d.Complete() {
			complete = append(complete, d)
		} else {
			partial = append(partial, *d)
		}
	}

	// If fewer complete days than clusters, everything is an outlier
	if len(complete) < cfg.NumPatterns {
		return nil, allOutliers(complete, partial)
	}

	var obs clusters.Observations
	for _, d := range complete {
		obs = append(obs, dayObservation{day: d, coords: normalize(d)})
	}

	result, err := kmeans.New().Partition(obs, cfg.NumPatterns)
	if err != nil {
		slog.Warn("k-means clustering failed", "error", err)
		return nil, allOutliers(complete, partial)
	}

	var patterns []Pattern
	var outliers []Day

	for _, cluster := range result {
		var members []Day
		for _, o := range cluster.Observations {
			if do, ok := o.(dayObservation); ok {
				members = append(members, *do.day)
			}
		}

		if len(members) < cfg.MinPatternSize {
			outliers = append(outliers, members...)
			continue
		}

		slices.SortFunc(members, func(a, b Day) int {
			return compareDates(a.Date, b.Date)
		})

		centroid := averages(members)
		center := memberCenter(members)
		label := patternLabel(center)
		start, end := members[0].Date, members[len(members)-1].Date

		patterns = append(patterns, Pattern{
			Name:        formatPatternName(label, start, end),
			Label:       label,
			Description: describe(center),
			Days:        members,
			Centroid:    centroid,
			Start:       start,
			End:         end,
		})
	}

	outliers = append(outliers, partial...)
	slices.SortFunc(outliers, func(a, b Day) int {
		return compareDates(a.Date, b.Date)
	})

	// Most recent pattern first
	slices.SortFunc(patterns, func(a, b Pattern) int {
		return compareDates(b.End, a.End)
	})

	return patterns, outliers
}

// memberCenter is the mean of the members' normalized coordinates. The
// partition's own Center is not used: kmeans leaves it at its random seed
// when the first assignment pass moves nothing, as with a single cluster.
func memberCenter(members []Day) clusters.Coordinates {
	center := make(clusters.Coordinates, len(featureNames))
	for i := range members {
		for j, v := range normalize(&members[i]) {
			center[j] += v
		}
	}
	for j := range center {
		center[j] /= float64(len(members))
	}
	return center
}

func allOutliers(complete []*Day, partial []Day) []Day {
	var out []Day
	for _, d := range complete {
		out = append(out, *d)
	}
	out = append(out, partial...)
	slices.SortFunc(out, func(a, b Day) int {
		return compareDates(a.Date, b.Date)
	})
	return out
}

func compareDates(a, b tracker.Date) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// normalize maps a complete day onto [0,1] per feature so no metric
// dominates the distance.
func normalize(d *Day) clusters.Coordinates {
	goal := d.WaterGoal
	if goal <= 0 {
		goal = tracker.DefaultWaterGoal
	}
	return clusters.Coordinates{
		clamp01((*d.SleepHours - 4) / 5),
		float64(*d.SleepQuality-1) / 4,
		float64(*d.Mood-1) / 4,
		clamp01(float64(*d.WaterCups) / float64(goal)),
	}
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}

// averages returns the mean of each metric in natural units.
func averages(days []Day) map[string]float64 {
	sums := make([]float64, len(featureNames))
	for _, d := range days {
		sums[0] += *d.SleepHours
		sums[1] += float64(*d.SleepQuality)
		sums[2] += float64(*d.Mood)
		sums[3] += float64(*d.WaterCups)
	}

	n := float64(len(days))
	centroid := make(map[string]float64, len(featureNames))
	for i, name := range featureNames {
		centroid[name] = round2(sums[i] / n)
	}
	return centroid
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

// formatPatternName combines a pattern label with its date range.
func formatPatternName(label string, start, end tracker.Date) string {
	const dateFormat = "Jan 2, 2006"
	startStr := start.Time().Format(dateFormat)
	endStr := end.Time().Format(dateFormat)

	if startStr == endStr {
		return fmt.Sprintf("%s: %s", label, startStr)
	}
	return fmt.Sprintf("%s: %s - %s", label, startStr, endStr)
}

// Report is the insights page content for one window.
type Report struct {
	From     tracker.Date `json:"from"`
	To       tracker.Date `json:"to"`
	Patterns []Pattern    `json:"patterns"`
	Outliers []Day        `json:"outliers"`
	Summary  string       `json:"summary"`
}
