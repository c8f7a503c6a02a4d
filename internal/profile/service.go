package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/rendi-app/rendi/internal/users"
)

var ErrBasicRequired = errors.New("basic profile must be completed first")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, user *users.User) (*View, error) {
	row, err := s.repo.Get(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	view := &View{User: user}
	if row != nil {
		view.Basic = &row.Basic
		view.Extra = row.Extra
	}
	return view, nil
}

func (s *Service) SaveBasic(ctx context.Context, userID int64, req *BasicRequest) (*Basic, error) {
	basic := Basic{
		Name:   strings.TrimSpace(req.Name),
		Age:    req.Age,
		Gender: req.Gender,
		Job:    strings.TrimSpace(req.Job),
		Region: strings.TrimSpace(req.Region),
	}
	if err := s.repo.UpsertBasic(ctx, userID, basic); err != nil {
		return nil, err
	}
	return &basic, nil
}

// SaveExtra fails with ErrBasicRequired until SaveBasic has succeeded once.
func (s *Service) SaveExtra(ctx context.Context, userID int64, req *ExtraRequest) (*Extra, error) {
	extra := Extra{
		MBTI:    strings.ToUpper(req.MBTI),
		Smoking: *req.Smoking,
	}
	ok, err := s.repo.UpdateExtra(ctx, userID, extra)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBasicRequired
	}
	return &extra, nil
}
