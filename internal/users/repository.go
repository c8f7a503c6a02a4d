package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Upsert(ctx context.Context, user *User) error
	GetByGoogleID(ctx context.Context, googleID string) (*User, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

const userColumns = `id, google_id, email, name, COALESCE(picture, ''), created_at`

// Upsert inserts the user or refreshes the profile fields of an existing
// google id, filling in ID and CreatedAt.
func (r *postgresRepository) Upsert(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (google_id, email, name, picture)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (google_id) DO UPDATE
		SET email = EXCLUDED.email, name = EXCLUDED.name, picture = EXCLUDED.picture
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query, user.GoogleID, user.Email, user.Name, user.Picture).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByGoogleID(ctx context.Context, googleID string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE google_id = $1`
	return r.scanOne(ctx, query, googleID)
}

func (r *postgresRepository) scanOne(ctx context.Context, query string, arg any) (*User, error) {
	user := &User{}
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.GoogleID, &user.Email, &user.Name, &user.Picture, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return user, nil
}
