package partners

import "time"

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

type Answer struct {
	QuestionID int    `json:"question_id"`
	OptionID   string `json:"option_id"`
}

// Partner is someone the user has a date with. Dates are YYYY-MM-DD and
// times HH:MM, both empty when unknown.
type Partner struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"-"`
	MeetingDate  string    `json:"meeting_date,omitempty"`
	MeetingTime  string    `json:"meeting_time,omitempty"`
	MeetingPlace string    `json:"meeting_place,omitempty"`
	Answers      []Answer  `json:"answers"`
	CreatedAt    time.Time `json:"created_at"`
}

type Schedule struct {
	MeetingDate  string
	MeetingTime  string
	MeetingPlace string
}

type AnswerRequest struct {
	QuestionID int    `json:"question_id" validate:"required,gt=0"`
	OptionID   string `json:"option_id" validate:"required"`
}

type CreateRequest struct {
	MeetingDate string          `json:"meeting_date" validate:"omitempty,datetime=2006-01-02"`
	Answers     []AnswerRequest `json:"answers" validate:"required,min=1,dive"`
}

type ScheduleRequest struct {
	MeetingDate  string `json:"meeting_date" validate:"required,datetime=2006-01-02"`
	MeetingTime  string `json:"meeting_time" validate:"omitempty,datetime=15:04"`
	MeetingPlace string `json:"meeting_place" validate:"max=200"`
}

type Task struct {
	ID    string `json:"id"`
	When  string `json:"when"`
	Title string `json:"title"`
}

type Action struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Dashboard struct {
	Partner   *Partner `json:"partner"`
	Countdown string   `json:"countdown"`
	Tasks     []Task   `json:"tasks"`
	Actions   []Action `json:"actions"`
}

var (
	dashboardTasks = []Task{
		{ID: "d-1", When: "D-1", Title: "하루 전"},
		{ID: "d-day", When: "D-Day", Title: "소개팅 당일"},
		{ID: "d+1", When: "D+1", Title: "다음 날"},
	}
	dashboardActions = []Action{
		{ID: "coaching", Title: "소개팅 실시간 코칭"},
		{ID: "retrospect", Title: "소개팅 회고"},
	}
)

type ListParams struct {
	Page     int
	PageSize int
}

func DefaultListParams() ListParams {
	return ListParams{Page: 1, PageSize: 20}
}

func (p ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}
