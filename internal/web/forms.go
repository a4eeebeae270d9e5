package web

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/justestif/wellness-tracker/internal/tracker"
)

// Input kinds of a form field.
const (
	inputText     = "text"
	inputTextarea = "textarea"
	inputTime     = "time"
	inputNumber   = "number"
	inputDecimal  = "decimal"
	inputScale    = "scale"
	inputSelect   = "select"
)

// formField describes one input of a tracker form. Name is the JSON name of
// the entry field it fills.
type formField struct {
	Name     string
	Label    string
	Input    string
	Required bool
	Min      int
	Max      int
	Options  []string
}

var trackerFields = map[tracker.Kind][]formField{
	tracker.KindSleep: {
		{Name: "bedtime", Label: "Bedtime", Input: inputTime, Required: true},
		{Name: "wake_time", Label: "Wake time", Input: inputTime, Required: true},
		{Name: "quality", Label: "Quality", Input: inputScale, Required: true, Min: 1, Max: 5},
		{Name: "note", Label: "Note", Input: inputTextarea},
	},
	tracker.KindMood: {
		{Name: "mood", Label: "Mood", Input: inputScale, Required: true, Min: 1, Max: 5},
		{Name: "energy", Label: "Energy", Input: inputScale, Min: 1, Max: 5},
		{Name: "note", Label: "Note", Input: inputTextarea},
	},
	tracker.KindWater: {
		{Name: "cups", Label: "Cups", Input: inputNumber, Required: true, Min: 0, Max: 100},
		{Name: "goal", Label: "Goal (cups)", Input: inputNumber, Min: 1, Max: 100},
	},
	tracker.KindMeals: {
		{Name: "breakfast", Label: "Breakfast", Input: inputText},
		{Name: "lunch", Label: "Lunch", Input: inputText},
		{Name: "dinner", Label: "Dinner", Input: inputText},
		{Name: "snacks", Label: "Snacks", Input: inputText},
		{Name: "calories", Label: "Calories", Input: inputNumber, Min: 0, Max: 20000},
	},
	tracker.KindWeight: {
		{Name: "weight_kg", Label: "Weight (kg)", Input: inputDecimal, Required: true},
		{Name: "note", Label: "Note", Input: inputTextarea},
	},
	tracker.KindExercise: {
		{Name: "activity", Label: "Activity", Input: inputText, Required: true},
		{Name: "duration_minutes", Label: "Duration (minutes)", Input: inputNumber, Required: true, Min: 1, Max: 1440},
		{Name: "intensity", Label: "Intensity", Input: inputSelect, Options: []string{
			tracker.IntensityLow, tracker.IntensityModerate, tracker.IntensityHigh,
		}},
	},
	tracker.KindStretch: {
		{Name: "routine", Label: "Routine", Input: inputText, Required: true},
		{Name: "duration_minutes", Label: "Duration (minutes)", Input: inputNumber, Required: true, Min: 1, Max: 600},
	},
	tracker.KindJournal: {
		{Name: "title", Label: "Title", Input: inputText},
		{Name: "content", Label: "Entry", Input: inputTextarea, Required: true},
		{Name: "gratitude", Label: "Grateful for", Input: inputTextarea},
	},
}

// entryFromForm builds an entry of kind for userID from submitted form values.
// The date defaults to today when the form leaves it empty.
func entryFromForm(kind tracker.Kind, userID string, form url.Values) (tracker.Entry, error) {
	values := map[string]any{"user_id": userID}
	if d := strings.TrimSpace(form.Get("date")); d != "" {
		values["date"] = d
	}

	for _, f := range trackerFields[kind] {
		raw := strings.TrimSpace(form.Get(f.Name))
		if raw == "" {
			if f.Required {
				return nil, fmt.Errorf("%w: %s is required", tracker.ErrInvalidEntry, strings.ToLower(f.Label))
			}
			continue
		}

		switch f.Input {
		case inputNumber, inputScale:
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s must be a whole number", tracker.ErrInvalidEntry, strings.ToLower(f.Label))
			}
			values[f.Name] = n
		case inputDecimal:
			n, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s must be a number", tracker.ErrInvalidEntry, strings.ToLower(f.Label))
			}
			values[f.Name] = n
		default:
			values[f.Name] = raw
		}
	}

	return decodeEntry(kind, values)
}

// decodeEntry fills a new entry of kind from JSON-shaped values.
func decodeEntry(kind tracker.Kind, values map[string]any) (tracker.Entry, error) {
	entry, err := tracker.New(kind)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encoding form: %w", err)
	}
	if err := json.Unmarshal(data, entry); err != nil {
		return nil, fmt.Errorf("%w: %v", tracker.ErrInvalidEntry, err)
	}
	return entry, nil
}

// entryValues returns the form values of an existing entry keyed by field name.
func entryValues(e tracker.Entry) map[string]string {
	out := make(map[string]string)
	if e == nil {
		return out
	}
	data, err := json.Marshal(e)
	if err != nil {
		return out
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return out
	}
	for k, v := range raw {
		switch v := v.(type) {
		case nil:
		case float64:
			out[k] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

// profileFromForm applies the submitted profile form to p.
func profileFromForm(p *tracker.Profile, form url.Values) error {
	p.FullName = strings.TrimSpace(form.Get("full_name"))

	p.DateOfBirth = nil
	if raw := strings.TrimSpace(form.Get("date_of_birth")); raw != "" {
		d, err := tracker.ParseDate(raw)
		if err != nil {
			return fmt.Errorf("%w: date of birth must be YYYY-MM-DD", tracker.ErrInvalidEntry)
		}
		p.DateOfBirth = &d
	}

	p.HeightCm = 0
	if raw := strings.TrimSpace(form.Get("height_cm")); raw != "" {
		h, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%w: height must be a number", tracker.ErrInvalidEntry)
		}
		p.HeightCm = h
	}

	p.WaterGoal = 0
	if raw := strings.TrimSpace(form.Get("water_goal")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: water goal must be a whole number", tracker.ErrInvalidEntry)
		}
		p.WaterGoal = n
	}

	p.WeightGoalKg = nil
	if raw := strings.TrimSpace(form.Get("weight_goal_kg")); raw != "" {
		w, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%w: weight goal must be a number", tracker.ErrInvalidEntry)
		}
		p.WeightGoalKg = &w
	}
	return nil
}

// parseBirthDate reads the optional date of birth of the sign-up form.
func parseBirthDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(tracker.DateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("date of birth must be YYYY-MM-DD")
	}
	return &t, nil
}
