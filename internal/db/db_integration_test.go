//go:build integration

package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/justestif/wellness-tracker/internal/auth"
	"github.com/justestif/wellness-tracker/internal/tracker"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("wellness"),
		postgrescontainer.WithUsername("wellness"),
		postgrescontainer.WithPassword("wellness"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	database, err := New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(database.Close)

	applied, err := database.Migrate(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, applied)

	again, err := database.Migrate(ctx)
	require.NoError(t, err)
	require.Empty(t, again, "migrations run once")

	return database
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}

func createUser(t *testing.T, store *AuthStore, email string) *auth.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := &auth.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}

func TestIntegration(t *testing.T) {
	database := newTestDB(t)

	t.Run("auth store", func(t *testing.T) {
		ctx := context.Background()
		store := database.AuthStore()
		u := createUser(t, store, "Sam@Example.com")

		err := store.CreateUser(ctx, &auth.User{ID: uuid.New(), Email: "sam@example.com", PasswordHash: "x"})
		assert.ErrorIs(t, err, auth.ErrUserExists)

		got, err := store.GetUserByEmail(ctx, "SAM@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.False(t, got.Confirmed())

		now := time.Now().UTC()
		got.ConfirmedAt = &now
		require.NoError(t, store.UpdateUser(ctx, got))

		sess := &auth.StoredSession{ID: "s1", UserID: u.ID, RefreshHash: "r1", ExpiresAt: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now}
		require.NoError(t, store.CreateSession(ctx, sess))
		byRefresh, err := store.GetSessionByRefresh(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "s1", byRefresh.ID)

		sess.RefreshHash = "r2"
		require.NoError(t, store.UpdateSession(ctx, sess))
		_, err = store.GetSessionByRefresh(ctx, "r1")
		assert.ErrorIs(t, err, auth.ErrSessionMissing)

		tok := &auth.OneTimeToken{Hash: "h1", UserID: u.ID, Purpose: auth.PurposeRecovery, ExpiresAt: now.Add(time.Hour), CreatedAt: now}
		require.NoError(t, store.CreateToken(ctx, tok))
		gotTok, err := store.GetToken(ctx, "h1")
		require.NoError(t, err)
		assert.Equal(t, auth.PurposeRecovery, gotTok.Purpose)
		require.NoError(t, store.DeleteToken(ctx, "h1"))
		assert.ErrorIs(t, store.DeleteToken(ctx, "h1"), auth.ErrInvalidToken)

		require.NoError(t, store.DeleteUser(ctx, u.ID))
		_, err = store.GetSession(ctx, "s1")
		assert.ErrorIs(t, err, auth.ErrSessionMissing, "sessions cascade with the user")
	})

	t.Run("tracker store", func(t *testing.T) {
		ctx := context.Background()
		u := createUser(t, database.AuthStore(), "pat@example.com")
		svc := tracker.NewService(database.TrackerStore())

		profile := tracker.NewProfile(u.ID, "Pat")
		dob := tracker.Date("1990-04-02")
		profile.DateOfBirth = &dob
		profile.WaterGoal = 6
		require.NoError(t, svc.SaveProfile(ctx, profile))

		gotProfile, err := svc.Profile(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, gotProfile.DateOfBirth)
		assert.Equal(t, dob, *gotProfile.DateOfBirth)
		assert.Equal(t, 6, gotProfile.WaterGoal)

		for _, kind := range tracker.Kinds {
			t.Run(string(kind), func(t *testing.T) {
				e := sampleEntry(kind, u.ID, "2024-06-14")
				created, err := svc.Save(ctx, e)
				require.NoError(t, err)
				assert.True(t, created)

				e2 := sampleEntry(kind, u.ID, "2024-06-14")
				created, err = svc.Save(ctx, e2)
				require.NoError(t, err)
				assert.False(t, created)
				assert.Equal(t, e.Base().ID, e2.Base().ID)

				list, err := svc.List(ctx, kind, u.ID, "2024-06-01", "2024-06-30")
				require.NoError(t, err)
				require.Len(t, list, 1)
				assert.Equal(t, tracker.Date("2024-06-14"), list[0].Base().Date)
				assert.Equal(t, e2.Values(), list[0].Values())
			})
		}

		water, err := svc.Get(ctx, tracker.KindWater, u.ID, "2024-06-14")
		require.NoError(t, err)
		assert.Equal(t, 6, water.(*tracker.WaterEntry).Goal, "goal comes from the profile")

		_, err = svc.Get(ctx, tracker.KindMood, u.ID, "2024-06-13")
		assert.ErrorIs(t, err, tracker.ErrNotFound)

		require.NoError(t, database.AuthStore().DeleteUser(ctx, u.ID))
		list, err := svc.List(ctx, tracker.KindMood, u.ID, "2024-06-01", "2024-06-30")
		require.NoError(t, err)
		assert.Empty(t, list, "entries cascade with the user")
	})
}

func sampleEntry(kind tracker.Kind, userID uuid.UUID, date tracker.Date) tracker.Entry {
	meta := tracker.Meta{UserID: userID, Date: date}
	switch kind {
	case tracker.KindMood:
		return &tracker.MoodEntry{Meta: meta, Mood: 4, Energy: 3, Note: "ok"}
	case tracker.KindWater:
		return &tracker.WaterEntry{Meta: meta, Cups: 5}
	case tracker.KindSleep:
		return &tracker.SleepEntry{Meta: meta, Bedtime: "22:30", WakeTime: "07:00", Quality: 4}
	case tracker.KindWeight:
		return &tracker.WeightEntry{Meta: meta, WeightKg: 70.5}
	case tracker.KindMeals:
		return &tracker.MealEntry{Meta: meta, Breakfast: "oats", Calories: 1800}
	case tracker.KindJournal:
		return &tracker.JournalEntry{Meta: meta, Content: "good day"}
	case tracker.KindExercise:
		return &tracker.ExerciseEntry{Meta: meta, Activity: "run", DurationMinutes: 30, Intensity: "high"}
	default:
		return &tracker.StretchEntry{Meta: meta, Routine: "hips", DurationMinutes: 10}
	}
}
