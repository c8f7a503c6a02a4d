package survey

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrQuestionOutOfRange = errors.New("question does not belong to this category")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, userID int64, category Category) ([]QuestionAnswers, error) {
	rows, err := s.repo.List(ctx, userID, category)
	if err != nil {
		return nil, err
	}
	return group(rows), nil
}

// SaveChoices replaces the category's answers. Each option_id and every entry
// of option_ids becomes its own row; the count of rows is reported back.
func (s *Service) SaveChoices(ctx context.Context, userID int64, category Category, req *SaveChoicesRequest) (*SaveResult, error) {
	var rows []Answer
	for _, a := range req.Answers {
		if !category.Owns(a.QuestionID) {
			return nil, fmt.Errorf("%w: %d", ErrQuestionOutOfRange, a.QuestionID)
		}
		if a.OptionID != "" {
			rows = append(rows, Answer{QuestionID: a.QuestionID, OptionID: a.OptionID})
		}
		for _, id := range a.OptionIDs {
			rows = append(rows, Answer{QuestionID: a.QuestionID, OptionID: id})
		}
	}

	if err := s.repo.Replace(ctx, userID, category, rows); err != nil {
		return nil, err
	}
	return &SaveResult{Status: "success", SavedCount: len(rows)}, nil
}

func (s *Service) SaveEssay(ctx context.Context, userID int64, req *EssayRequest) (*SaveResult, error) {
	answer := Answer{QuestionID: req.QuestionID, Text: strings.TrimSpace(req.Text)}
	if err := s.repo.ReplaceQuestion(ctx, userID, Essay, answer); err != nil {
		return nil, err
	}
	return &SaveResult{Status: "success", SavedCount: 1}, nil
}

// group expects rows ordered by question id.
func group(rows []Answer) []QuestionAnswers {
	out := make([]QuestionAnswers, 0)
	for _, r := range rows {
		if len(out) == 0 || out[len(out)-1].QuestionID != r.QuestionID {
			out = append(out, QuestionAnswers{QuestionID: r.QuestionID})
		}
		q := &out[len(out)-1]
		if r.Text != "" {
			q.Text = r.Text
		}
		if r.OptionID != "" {
			q.AnswerIDs = append(q.AnswerIDs, r.OptionID)
		}
	}
	for i := range out {
		if len(out[i].AnswerIDs) == 1 {
			out[i].AnswerID = out[i].AnswerIDs[0]
			out[i].AnswerIDs = nil
		}
	}
	return out
}
