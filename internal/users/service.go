package users

import (
	"context"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register records a user coming back from the identity provider. Calling it
// again for the same google id updates the stored profile fields.
func (s *Service) Register(ctx context.Context, googleID, email, name, picture string) (*User, error) {
	user := &User{
		GoogleID: googleID,
		Email:    email,
		Name:     name,
		Picture:  picture,
	}
	if err := s.repo.Upsert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) GetByGoogleID(ctx context.Context, googleID string) (*User, error) {
	return s.repo.GetByGoogleID(ctx, googleID)
}
