package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/wellness-tracker/internal/tracker"
)

// ProfileRepository handles profile database operations.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// Get retrieves the profile of a user.
func (r *ProfileRepository) Get(ctx context.Context, userID uuid.UUID) (*tracker.Profile, error) {
	query := `
		SELECT user_id, full_name, date_of_birth::text, height_cm, water_goal, weight_goal_kg, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`
	var (
		p   tracker.Profile
		dob *string
	)
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.FullName,
		&dob,
		&p.HeightCm,
		&p.WaterGoal,
		&p.WeightGoalKg,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tracker.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	if dob != nil {
		d := tracker.Date(*dob)
		p.DateOfBirth = &d
	}
	return &p, nil
}

// Upsert creates or updates a profile.
func (r *ProfileRepository) Upsert(ctx context.Context, p *tracker.Profile) error {
	query := `
		INSERT INTO profiles (user_id, full_name, date_of_birth, height_cm, water_goal, weight_goal_kg, created_at, updated_at)
		VALUES ($1, $2, $3::text::date, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			date_of_birth = EXCLUDED.date_of_birth,
			height_cm = EXCLUDED.height_cm,
			water_goal = EXCLUDED.water_goal,
			weight_goal_kg = EXCLUDED.weight_goal_kg,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`
	var dob *string
	if p.DateOfBirth != nil {
		s := string(*p.DateOfBirth)
		dob = &s
	}
	err := r.pool.QueryRow(ctx, query,
		p.UserID,
		p.FullName,
		dob,
		p.HeightCm,
		p.WaterGoal,
		p.WeightGoalKg,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}
	return nil
}
