package insights

import "github.com/muesli/clusters"

// patternLabel names a normalized centroid.
// Uses a 2x2 rest/mood quadrant system with a hydration modifier.
//
// Quadrants:
//   - Rested + High mood = "Well rested & upbeat"
//   - Rested + Low mood  = "Rested but low"
//   - Tired  + High mood = "Short on sleep, still upbeat"
//   - Tired  + Low mood  = "Tired & low"
//
// Hydration modifier: goal met on average appends "(well hydrated)",
// under half the goal appends "(under-hydrated)".
func patternLabel(center clusters.Coordinates) string {
	rest := (center[0] + center[1]) / 2
	mood := center[2]
	water := center[3]

	rested := rest > 0.6
	upbeat := mood > 0.5

	var base string
	switch {
	case rested && upbeat:
		base = "Well rested & upbeat"
	case rested && !upbeat:
		base = "Rested but low"
	case !rested && upbeat:
		base = "Short on sleep, still upbeat"
	default:
		base = "Tired & low"
	}

	switch {
	case water >= 0.95:
		return base + " (well hydrated)"
	case water < 0.5:
		return base + " (under-hydrated)"
	}
	return base
}

// describe returns a one-sentence reading of a normalized centroid.
func describe(center clusters.Coordinates) string {
	rest := (center[0] + center[1]) / 2
	mood := center[2]

	switch {
	case rest > 0.6 && mood > 0.5:
		return "Good sleep and a good mood went together on these days."
	case rest > 0.6:
		return "You slept well but your mood stayed low. Something other than rest may be weighing on you."
	case mood > 0.5:
		return "Your mood held up despite short or poor sleep. Watch for it catching up with you."
	default:
		return "Poor sleep and low mood showed up together. An earlier night may help."
	}
}
