package partners

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	// Create stores the partner and its answers in one transaction, filling
	// in ID and CreatedAt.
	Create(ctx context.Context, p *Partner) error
	Latest(ctx context.Context, userID int64) (*Partner, error)
	List(ctx context.Context, userID int64, limit, offset int) ([]*Partner, error)
	Count(ctx context.Context, userID int64) (int64, error)
	// ScheduleLatest returns nil when the user has no partner.
	ScheduleLatest(ctx context.Context, userID int64, s Schedule) (*Partner, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

const partnerColumns = `id, user_id,
	COALESCE(to_char(meeting_date, 'YYYY-MM-DD'), ''),
	COALESCE(meeting_time, ''), COALESCE(meeting_place, ''), created_at`

func scanPartner(row pgx.Row) (*Partner, error) {
	p := &Partner{}
	err := row.Scan(&p.ID, &p.UserID, &p.MeetingDate, &p.MeetingTime, &p.MeetingPlace, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresRepository) Create(ctx context.Context, p *Partner) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO partners (user_id, meeting_date)
			VALUES ($1, NULLIF($2, '')::date)
			RETURNING id, created_at`,
			p.UserID, p.MeetingDate).Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting partner: %w", err)
		}

		rows := make([][]any, 0, len(p.Answers))
		for _, a := range p.Answers {
			rows = append(rows, []any{p.ID, a.QuestionID, a.OptionID})
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"partner_answers"},
			[]string{"partner_id", "question_id", "option_id"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("inserting partner answers: %w", err)
		}
		return nil
	})
}

func (r *postgresRepository) Latest(ctx context.Context, userID int64) (*Partner, error) {
	query := `SELECT ` + partnerColumns + `
		FROM partners
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT 1`

	p, err := scanPartner(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying latest partner: %w", err)
	}
	if err := r.attachAnswers(ctx, []*Partner{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresRepository) List(ctx context.Context, userID int64, limit, offset int) ([]*Partner, error) {
	query := `SELECT ` + partnerColumns + `
		FROM partners
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing partners: %w", err)
	}
	defer rows.Close()

	var partners []*Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning partner: %w", err)
		}
		partners = append(partners, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating partners: %w", err)
	}

	if err := r.attachAnswers(ctx, partners); err != nil {
		return nil, err
	}
	return partners, nil
}

func (r *postgresRepository) Count(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM partners WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting partners: %w", err)
	}
	return count, nil
}

func (r *postgresRepository) ScheduleLatest(ctx context.Context, userID int64, s Schedule) (*Partner, error) {
	query := `
		UPDATE partners
		SET meeting_date = $2::date, meeting_time = NULLIF($3, ''), meeting_place = NULLIF($4, '')
		WHERE id = (SELECT id FROM partners WHERE user_id = $1 ORDER BY id DESC LIMIT 1)
		RETURNING ` + partnerColumns

	p, err := scanPartner(r.pool.QueryRow(ctx, query, userID, s.MeetingDate, s.MeetingTime, s.MeetingPlace))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scheduling latest partner: %w", err)
	}
	if err := r.attachAnswers(ctx, []*Partner{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresRepository) attachAnswers(ctx context.Context, partners []*Partner) error {
	if len(partners) == 0 {
		return nil
	}
	byID := make(map[int64]*Partner, len(partners))
	ids := make([]int64, 0, len(partners))
	for _, p := range partners {
		p.Answers = []Answer{}
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT partner_id, question_id, option_id
		FROM partner_answers
		WHERE partner_id = ANY($1)
		ORDER BY partner_id, question_id, id`, ids)
	if err != nil {
		return fmt.Errorf("loading partner answers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var partnerID int64
		var a Answer
		if err := rows.Scan(&partnerID, &a.QuestionID, &a.OptionID); err != nil {
			return fmt.Errorf("scanning partner answer: %w", err)
		}
		if p, ok := byID[partnerID]; ok {
			p.Answers = append(p.Answers, a)
		}
	}
	return rows.Err()
}
