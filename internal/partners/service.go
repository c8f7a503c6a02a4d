package partners

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidAnswer = errors.New("invalid partner answer")
	ErrNoPartner     = errors.New("no partner registered")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) Create(ctx context.Context, userID int64, req *CreateRequest) (*Partner, error) {
	p := &Partner{
		UserID:      userID,
		MeetingDate: req.MeetingDate,
		Answers:     make([]Answer, 0, len(req.Answers)),
	}
	seen := make(map[int]bool, len(req.Answers))
	for _, a := range req.Answers {
		if !validOption(a.QuestionID, a.OptionID) {
			return nil, fmt.Errorf("%w: question %d option %q", ErrInvalidAnswer, a.QuestionID, a.OptionID)
		}
		if seen[a.QuestionID] {
			return nil, fmt.Errorf("%w: question %d answered twice", ErrInvalidAnswer, a.QuestionID)
		}
		seen[a.QuestionID] = true
		p.Answers = append(p.Answers, Answer{QuestionID: a.QuestionID, OptionID: a.OptionID})
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Latest(ctx context.Context, userID int64) (*Partner, error) {
	p, err := s.repo.Latest(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNoPartner
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, userID int64, params ListParams) ([]*Partner, int64, error) {
	partners, err := s.repo.List(ctx, userID, params.PageSize, params.Offset())
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if partners == nil {
		partners = []*Partner{}
	}
	return partners, total, nil
}

func (s *Service) Schedule(ctx context.Context, userID int64, req *ScheduleRequest) (*Partner, error) {
	p, err := s.repo.ScheduleLatest(ctx, userID, Schedule{
		MeetingDate:  req.MeetingDate,
		MeetingTime:  req.MeetingTime,
		MeetingPlace: strings.TrimSpace(req.MeetingPlace),
	})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNoPartner
	}
	return p, nil
}

// Dashboard summarizes the latest partner. Without one every list is empty.
func (s *Service) Dashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	p, err := s.repo.Latest(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return &Dashboard{Tasks: []Task{}, Actions: []Action{}}, nil
	}
	return &Dashboard{
		Partner:   p,
		Countdown: Countdown(p.MeetingDate, s.now()),
		Tasks:     dashboardTasks,
		Actions:   dashboardActions,
	}, nil
}

// Countdown renders the distance from today to meetingDate as D-n, D-Day or
// D+n. Today is taken in now's location. An empty or malformed date yields "".
func Countdown(meetingDate string, now time.Time) string {
	if meetingDate == "" {
		return ""
	}
	meeting, err := time.ParseInLocation(dateLayout, meetingDate, time.UTC)
	if err != nil {
		return ""
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	days := int(meeting.Sub(today).Hours() / 24)
	switch {
	case days > 0:
		return fmt.Sprintf("D-%d", days)
	case days == 0:
		return "D-Day"
	default:
		return fmt.Sprintf("D+%d", -days)
	}
}
