package checklist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUnknownItem is returned when a toggle names an item outside the catalogue.
var ErrUnknownItem = errors.New("unknown checklist item")

const foreignKeyViolation = "23503"

type Repository interface {
	Items(ctx context.Context) ([]Item, error)
	// Checked returns the stored toggles of one user and day keyed by item id.
	Checked(ctx context.Context, userID int64, date string) (map[int]bool, error)
	Set(ctx context.Context, userID int64, date string, itemID int, checked bool) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Items(ctx context.Context) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, text FROM checklist_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing checklist items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Text); err != nil {
			return nil, fmt.Errorf("scanning checklist item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *postgresRepository) Checked(ctx context.Context, userID int64, date string) (map[int]bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT item_id, checked
		FROM user_checklist
		WHERE user_id = $1 AND for_date = $2::date`, userID, date)
	if err != nil {
		return nil, fmt.Errorf("querying checklist: %w", err)
	}
	defer rows.Close()

	checked := make(map[int]bool)
	for rows.Next() {
		var itemID int
		var on bool
		if err := rows.Scan(&itemID, &on); err != nil {
			return nil, fmt.Errorf("scanning checklist row: %w", err)
		}
		checked[itemID] = on
	}
	return checked, rows.Err()
}

func (r *postgresRepository) Set(ctx context.Context, userID int64, date string, itemID int, checked bool) error {
	query := `
		INSERT INTO user_checklist (user_id, for_date, item_id, checked)
		VALUES ($1, $2::date, $3, $4)
		ON CONFLICT (user_id, for_date, item_id) DO UPDATE
		SET checked = EXCLUDED.checked, updated_at = NOW()`

	_, err := r.pool.Exec(ctx, query, userID, date, itemID, checked)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return ErrUnknownItem
		}
		return fmt.Errorf("saving checklist toggle: %w", err)
	}
	return nil
}
