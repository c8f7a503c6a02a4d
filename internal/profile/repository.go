package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Get(ctx context.Context, userID int64) (*Row, error)
	UpsertBasic(ctx context.Context, userID int64, basic Basic) error
	// UpdateExtra reports false when the user has no basic profile yet.
	UpdateExtra(ctx context.Context, userID int64, extra Extra) (bool, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Get(ctx context.Context, userID int64) (*Row, error) {
	query := `
		SELECT name, age, gender, COALESCE(job, ''), COALESCE(region, ''), mbti, smoking
		FROM profiles
		WHERE user_id = $1`

	row := &Row{UserID: userID}
	var mbti *string
	var smoking *bool
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&row.Basic.Name, &row.Basic.Age, &row.Basic.Gender,
		&row.Basic.Job, &row.Basic.Region, &mbti, &smoking)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying profile: %w", err)
	}

	if smoking != nil {
		row.Extra = &Extra{Smoking: *smoking}
		if mbti != nil {
			row.Extra.MBTI = *mbti
		}
	}
	return row, nil
}

func (r *postgresRepository) UpsertBasic(ctx context.Context, userID int64, basic Basic) error {
	query := `
		INSERT INTO profiles (user_id, name, age, gender, job, region)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
		ON CONFLICT (user_id) DO UPDATE
		SET name = EXCLUDED.name, age = EXCLUDED.age, gender = EXCLUDED.gender,
		    job = EXCLUDED.job, region = EXCLUDED.region, updated_at = NOW()`

	_, err := r.pool.Exec(ctx, query, userID, basic.Name, basic.Age, basic.Gender, basic.Job, basic.Region)
	if err != nil {
		return fmt.Errorf("upserting basic profile: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpdateExtra(ctx context.Context, userID int64, extra Extra) (bool, error) {
	query := `
		UPDATE profiles
		SET mbti = NULLIF($2, ''), smoking = $3, updated_at = NOW()
		WHERE user_id = $1`

	tag, err := r.pool.Exec(ctx, query, userID, extra.MBTI, extra.Smoking)
	if err != nil {
		return false, fmt.Errorf("updating extra profile: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
