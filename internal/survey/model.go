package survey

import "fmt"

type Category string

const (
	Lifestyle  Category = "lifestyle"
	Identify   Category = "identify"
	Preference Category = "preference"
	Beliefs    Category = "beliefs"
	Essay      Category = "essay"
)

// questionRange is the inclusive span of question ids a choice category owns.
type questionRange struct{ first, last int }

var choiceCategories = map[Category]questionRange{
	Lifestyle:  {1, 7},
	Identify:   {8, 20},
	Preference: {21, 27},
	Beliefs:    {28, 33},
}

// ParseCategory accepts any category name, including essay.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if c == Essay {
		return c, nil
	}
	if _, ok := choiceCategories[c]; !ok {
		return "", fmt.Errorf("unknown survey category %q", s)
	}
	return c, nil
}

// Owns reports whether questionID belongs to a choice category.
func (c Category) Owns(questionID int) bool {
	r, ok := choiceCategories[c]
	return ok && questionID >= r.first && questionID <= r.last
}

// Answer is one stored row: a selected option or an essay text.
type Answer struct {
	QuestionID int
	OptionID   string
	Text       string
}

// QuestionAnswers groups the stored rows of one question. A single option is
// reported as AnswerID, several as AnswerIDs.
type QuestionAnswers struct {
	QuestionID int      `json:"question_id"`
	AnswerID   string   `json:"answer_id,omitempty"`
	AnswerIDs  []string `json:"answer_ids,omitempty"`
	Text       string   `json:"text,omitempty"`
}

type ChoiceAnswer struct {
	QuestionID int      `json:"question_id" validate:"required,gt=0"`
	OptionID   string   `json:"option_id" validate:"omitempty,max=32"`
	OptionIDs  []string `json:"option_ids" validate:"omitempty,max=20,dive,required,max=32"`
}

type SaveChoicesRequest struct {
	Answers []ChoiceAnswer `json:"answers" validate:"required,dive"`
}

type EssayRequest struct {
	QuestionID int    `json:"question_id" validate:"required,gt=0"`
	Text       string `json:"text" validate:"required,max=4000"`
}

type SaveResult struct {
	Status     string `json:"status"`
	SavedCount int    `json:"saved_count"`
}
