package checklist

import (
	"context"
	"time"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) Items(ctx context.Context) ([]Item, error) {
	return s.repo.Items(ctx)
}

// ForDate lists every catalogue item with the user's flag for date, which
// defaults to today. Items never toggled are unchecked.
func (s *Service) ForDate(ctx context.Context, userID int64, date string) (*Daily, error) {
	if date == "" {
		date = s.today()
	}

	items, err := s.repo.Items(ctx)
	if err != nil {
		return nil, err
	}
	checked, err := s.repo.Checked(ctx, userID, date)
	if err != nil {
		return nil, err
	}

	daily := &Daily{Date: date, Items: make([]ItemStatus, 0, len(items))}
	for _, it := range items {
		daily.Items = append(daily.Items, ItemStatus{ItemID: it.ID, Checked: checked[it.ID]})
	}
	return daily, nil
}

func (s *Service) Toggle(ctx context.Context, userID int64, req *ToggleRequest) error {
	date := req.Date
	if date == "" {
		date = s.today()
	}
	return s.repo.Set(ctx, userID, date, req.ItemID, *req.Checked)
}

func (s *Service) today() string {
	return s.now().Format(dateLayout)
}
