package training

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/kapu/opening-trainer/internal/domain"
)

var ErrDuplicateCompletion = errors.New("drill completion already recorded")

type Repository interface {
	InsertCompletion(ctx context.Context, c *domain.DrillCompletion) (int64, error)
	RecentCompletions(ctx context.Context, traineeHash string, limit int) ([]*domain.DrillCompletion, error)
	SucceededVariations(ctx context.Context, traineeHash, openingID string) ([]string, error)
	GetProfile(ctx context.Context, traineeHash string) (*domain.TrainerProfile, error)
	UpsertProfile(ctx context.Context, profile *domain.TrainerProfile) error
	TopProfiles(ctx context.Context, limit int) ([]*domain.TrainerProfile, error)
}

// OpenPostgres dials the database with the pool settings the trainer needs.
func OpenPostgres(databaseURL string) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) InsertCompletion(ctx context.Context, c *domain.DrillCompletion) (int64, error) {
	if c == nil {
		return 0, fmt.Errorf("nil drill completion payload")
	}

	const query = `
		INSERT INTO drill_completions (
			attempt_uuid,
			trainee_hash,
			opening_id,
			variation_name,
			difficulty,
			color,
			errors,
			hints_used,
			moves_played,
			xp_awarded,
			success,
			started_at,
			completed_at,
			duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (attempt_uuid) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err := r.db.QueryRowContext(
		ctx,
		query,
		c.AttemptUUID,
		c.TraineeHash,
		c.OpeningID,
		c.VariationName,
		c.Difficulty,
		c.Color,
		c.Errors,
		c.HintsUsed,
		c.MovesPlayed,
		c.XPAwarded,
		c.Success,
		c.StartedAt,
		c.CompletedAt,
		c.Duration.Milliseconds(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return 0, ErrDuplicateCompletion
	}
	if err != nil {
		return 0, fmt.Errorf("insert drill completion: %w", err)
	}
	return id.Int64, nil
}

func (r *repository) RecentCompletions(ctx context.Context, traineeHash string, limit int) ([]*domain.DrillCompletion, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT
			id,
			attempt_uuid,
			trainee_hash,
			opening_id,
			variation_name,
			difficulty,
			color,
			errors,
			hints_used,
			moves_played,
			xp_awarded,
			success,
			started_at,
			completed_at,
			duration_ms
		FROM drill_completions
		WHERE trainee_hash = $1
		ORDER BY completed_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, traineeHash, limit)
	if err != nil {
		return nil, fmt.Errorf("select drill completions: %w", err)
	}
	defer rows.Close()

	items := make([]*domain.DrillCompletion, 0, limit)
	for rows.Next() {
		var (
			c          domain.DrillCompletion
			durationMS sql.NullInt64
		)
		if err := rows.Scan(
			&c.ID,
			&c.AttemptUUID,
			&c.TraineeHash,
			&c.OpeningID,
			&c.VariationName,
			&c.Difficulty,
			&c.Color,
			&c.Errors,
			&c.HintsUsed,
			&c.MovesPlayed,
			&c.XPAwarded,
			&c.Success,
			&c.StartedAt,
			&c.CompletedAt,
			&durationMS,
		); err != nil {
			return nil, fmt.Errorf("scan drill completion: %w", err)
		}
		if durationMS.Valid {
			c.Duration = time.Duration(durationMS.Int64) * time.Millisecond
		}
		items = append(items, &c)
	}
	return items, rows.Err()
}

func (r *repository) SucceededVariations(ctx context.Context, traineeHash, openingID string) ([]string, error) {
	const query = `
		SELECT DISTINCT variation_name
		FROM drill_completions
		WHERE trainee_hash = $1 AND opening_id = $2 AND success
		ORDER BY variation_name`

	rows, err := r.db.QueryContext(ctx, query, traineeHash, openingID)
	if err != nil {
		return nil, fmt.Errorf("select succeeded variations: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan variation name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *repository) GetProfile(ctx context.Context, traineeHash string) (*domain.TrainerProfile, error) {
	const query = `
		SELECT
			trainee_hash,
			total_xp,
			level,
			drills_completed,
			perfect_drills,
			streak,
			best_streak,
			last_drilled_at,
			updated_at,
			created_at
		FROM trainer_profiles
		WHERE trainee_hash = $1
		LIMIT 1`

	var profile domain.TrainerProfile
	err := r.db.QueryRowContext(ctx, query, traineeHash).Scan(
		&profile.TraineeHash,
		&profile.TotalXP,
		&profile.Level,
		&profile.DrillsCompleted,
		&profile.PerfectDrills,
		&profile.Streak,
		&profile.BestStreak,
		&profile.LastDrilledAt,
		&profile.UpdatedAt,
		&profile.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select trainer profile: %w", err)
	}
	return &profile, nil
}

func (r *repository) UpsertProfile(ctx context.Context, profile *domain.TrainerProfile) error {
	if profile == nil {
		return fmt.Errorf("nil trainer profile payload")
	}
	const query = `
		INSERT INTO trainer_profiles (
			trainee_hash,
			total_xp,
			level,
			drills_completed,
			perfect_drills,
			streak,
			best_streak,
			last_drilled_at,
			updated_at,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (trainee_hash)
		DO UPDATE SET
			total_xp = EXCLUDED.total_xp,
			level = EXCLUDED.level,
			drills_completed = EXCLUDED.drills_completed,
			perfect_drills = EXCLUDED.perfect_drills,
			streak = EXCLUDED.streak,
			best_streak = EXCLUDED.best_streak,
			last_drilled_at = EXCLUDED.last_drilled_at,
			updated_at = NOW()`

	_, err := r.db.ExecContext(
		ctx,
		query,
		profile.TraineeHash,
		profile.TotalXP,
		profile.Level,
		profile.DrillsCompleted,
		profile.PerfectDrills,
		profile.Streak,
		profile.BestStreak,
		profile.LastDrilledAt,
	)
	if err != nil {
		return fmt.Errorf("upsert trainer profile: %w", err)
	}
	return nil
}

func (r *repository) TopProfiles(ctx context.Context, limit int) ([]*domain.TrainerProfile, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT
			trainee_hash,
			total_xp,
			level,
			drills_completed,
			perfect_drills,
			streak,
			best_streak,
			last_drilled_at,
			updated_at,
			created_at
		FROM trainer_profiles
		ORDER BY total_xp DESC, drills_completed DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select top profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]*domain.TrainerProfile, 0, limit)
	for rows.Next() {
		var p domain.TrainerProfile
		if err := rows.Scan(
			&p.TraineeHash,
			&p.TotalXP,
			&p.Level,
			&p.DrillsCompleted,
			&p.PerfectDrills,
			&p.Streak,
			&p.BestStreak,
			&p.LastDrilledAt,
			&p.UpdatedAt,
			&p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan trainer profile: %w", err)
		}
		profiles = append(profiles, &p)
	}
	return profiles, rows.Err()
}
