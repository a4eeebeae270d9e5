package tracker

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Profile holds per-user settings and the details captured at sign-up.
type Profile struct {
	UserID       uuid.UUID `json:"user_id"`
	FullName     string    `json:"full_name"`
	DateOfBirth  *Date     `json:"date_of_birth,omitempty"`
	HeightCm     float64   `json:"height_cm,omitempty"`
	WaterGoal    int       `json:"water_goal"`
	WeightGoalKg *float64  `json:"weight_goal_kg,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewProfile returns a profile with default settings for userID.
func NewProfile(userID uuid.UUID, fullName string) *Profile {
	return &Profile{
		UserID:    userID,
		FullName:  strings.TrimSpace(fullName),
		WaterGoal: DefaultWaterGoal,
	}
}

// Prepare validates the profile and applies defaults.
func (p *Profile) Prepare() error {
	p.FullName = strings.TrimSpace(p.FullName)
	if p.WaterGoal == 0 {
		p.WaterGoal = DefaultWaterGoal
	}

	var errs []error
	if p.UserID == uuid.Nil {
		errs = append(errs, fieldError("user_id", "is required"))
	}
	errs = append(errs, inRange("water_goal", p.WaterGoal, 1, 100))
	if p.HeightCm < 0 || p.HeightCm > 300 {
		errs = append(errs, fieldError("height_cm", "must be between 0 and 300"))
	}
	if p.WeightGoalKg != nil && (*p.WeightGoalKg <= 0 || *p.WeightGoalKg > 700) {
		errs = append(errs, fieldError("weight_goal_kg", "must be between 0 and 700"))
	}
	if p.DateOfBirth != nil {
		if _, err := ParseDate(string(*p.DateOfBirth)); err != nil {
			errs = append(errs, fieldError("date_of_birth", "must be YYYY-MM-DD"))
		}
	}
	return errors.Join(errs...)
}
