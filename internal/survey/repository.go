package survey

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	List(ctx context.Context, userID int64, category Category) ([]Answer, error)
	// Replace swaps every answer of the category for answers in one transaction.
	Replace(ctx context.Context, userID int64, category Category, answers []Answer) error
	// ReplaceQuestion swaps the answers of a single question.
	ReplaceQuestion(ctx context.Context, userID int64, category Category, answer Answer) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) List(ctx context.Context, userID int64, category Category) ([]Answer, error) {
	query := `
		SELECT question_id, COALESCE(option_id, ''), COALESCE(text, '')
		FROM survey_answers
		WHERE user_id = $1 AND category = $2
		ORDER BY question_id, id`

	rows, err := r.pool.Query(ctx, query, userID, string(category))
	if err != nil {
		return nil, fmt.Errorf("listing survey answers: %w", err)
	}
	defer rows.Close()

	var answers []Answer
	for rows.Next() {
		var a Answer
		if err := rows.Scan(&a.QuestionID, &a.OptionID, &a.Text); err != nil {
			return nil, fmt.Errorf("scanning survey answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func (r *postgresRepository) Replace(ctx context.Context, userID int64, category Category, answers []Answer) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM survey_answers WHERE user_id = $1 AND category = $2`, userID, string(category))
		if err != nil {
			return fmt.Errorf("clearing survey answers: %w", err)
		}
		return insertAnswers(ctx, tx, userID, category, answers)
	})
}

func (r *postgresRepository) ReplaceQuestion(ctx context.Context, userID int64, category Category, answer Answer) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`DELETE FROM survey_answers WHERE user_id = $1 AND category = $2 AND question_id = $3`,
			userID, string(category), answer.QuestionID)
		if err != nil {
			return fmt.Errorf("clearing survey question: %w", err)
		}
		return insertAnswers(ctx, tx, userID, category, []Answer{answer})
	})
}

func insertAnswers(ctx context.Context, tx pgx.Tx, userID int64, category Category, answers []Answer) error {
	if len(answers) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(answers))
	for _, a := range answers {
		rows = append(rows, []any{userID, string(category), a.QuestionID, nullIfEmpty(a.OptionID), nullIfEmpty(a.Text)})
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"survey_answers"},
		[]string{"user_id", "category", "question_id", "option_id", "text"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("inserting survey answers: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
