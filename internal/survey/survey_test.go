package survey

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendi-app/rendi/internal/auth"
	"github.com/rendi-app/rendi/internal/users"
)

type memRepo struct {
	mu   sync.Mutex
	rows map[Category][]Answer
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[Category][]Answer)}
}

func (m *memRepo) List(_ context.Context, _ int64, category Category) ([]Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]Answer(nil), m.rows[category]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (m *memRepo) Replace(_ context.Context, _ int64, category Category, answers []Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[category] = append([]Answer(nil), answers...)
	return nil
}

func (m *memRepo) ReplaceQuestion(_ context.Context, _ int64, category Category, answer Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[category][:0]
	for _, a := range m.rows[category] {
		if a.QuestionID != answer.QuestionID {
			kept = append(kept, a)
		}
	}
	m.rows[category] = append(kept, answer)
	return nil
}

func TestCategory_Owns(t *testing.T) {
	assert.True(t, Lifestyle.Owns(1))
	assert.True(t, Lifestyle.Owns(7))
	assert.False(t, Lifestyle.Owns(8))
	assert.True(t, Identify.Owns(20))
	assert.True(t, Preference.Owns(21))
	assert.True(t, Beliefs.Owns(33))
	assert.False(t, Beliefs.Owns(34))
	assert.False(t, Essay.Owns(1))
}

func TestParseCategory(t *testing.T) {
	for _, name := range []string{"lifestyle", "identify", "preference", "beliefs", "essay"} {
		c, err := ParseCategory(name)
		require.NoError(t, err)
		assert.Equal(t, name, string(c))
	}
	_, err := ParseCategory("hobbies")
	assert.Error(t, err)
}

func TestGroup_SingleAndMultipleOptions(t *testing.T) {
	got := group([]Answer{
		{QuestionID: 1, OptionID: "2"},
		{QuestionID: 3, OptionID: "1"},
		{QuestionID: 3, OptionID: "4"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, QuestionAnswers{QuestionID: 1, AnswerID: "2"}, got[0])
	assert.Equal(t, QuestionAnswers{QuestionID: 3, AnswerIDs: []string{"1", "4"}}, got[1])
}

func TestService_SaveChoicesCountsEveryOption(t *testing.T) {
	svc := NewService(newMemRepo())

	res, err := svc.SaveChoices(context.Background(), 1, Lifestyle, &SaveChoicesRequest{Answers: []ChoiceAnswer{
		{QuestionID: 1, OptionID: "3"},
		{QuestionID: 2, OptionIDs: []string{"1", "2", "5"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, &SaveResult{Status: "success", SavedCount: 4}, res)
}

func TestService_SaveChoicesReplacesPreviousAnswers(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.SaveChoices(ctx, 1, Beliefs, &SaveChoicesRequest{Answers: []ChoiceAnswer{
		{QuestionID: 28, OptionID: "1"},
		{QuestionID: 29, OptionID: "2"},
	}})
	require.NoError(t, err)
	_, err = svc.SaveChoices(ctx, 1, Beliefs, &SaveChoicesRequest{Answers: []ChoiceAnswer{
		{QuestionID: 30, OptionID: "5"},
	}})
	require.NoError(t, err)

	got, err := svc.Get(ctx, 1, Beliefs)
	require.NoError(t, err)
	assert.Equal(t, []QuestionAnswers{{QuestionID: 30, AnswerID: "5"}}, got)
}

func TestService_SaveChoicesRejectsForeignQuestion(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	_, err := svc.SaveChoices(context.Background(), 1, Preference, &SaveChoicesRequest{Answers: []ChoiceAnswer{
		{QuestionID: 21, OptionID: "1"},
		{QuestionID: 5, OptionID: "1"},
	}})
	assert.ErrorIs(t, err, ErrQuestionOutOfRange)
	assert.Empty(t, repo.rows[Preference])
}

func serve(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewHandler(NewService(newMemRepo()))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUser(req.Context(), &users.User{ID: 3})))
		})
	})
	r.Post("/survey/essay", h.SaveEssay)
	r.Get("/survey/{category}", h.Get)
	r.Post("/survey/{category}", h.SaveChoices)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_SaveChoices(t *testing.T) {
	rec := serve(t, http.MethodPost, "/survey/identify", `{"answers":[{"question_id":8,"option_id":"1"},{"question_id":9,"option_ids":["2","3"]}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data SaveResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, SaveResult{Status: "success", SavedCount: 3}, body.Data)
}

func TestHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"unknown category", http.MethodGet, "/survey/hobbies", "", http.StatusNotFound},
		{"out of range", http.MethodPost, "/survey/lifestyle", `{"answers":[{"question_id":12,"option_id":"1"}]}`, http.StatusBadRequest},
		{"missing answers", http.MethodPost, "/survey/lifestyle", `{}`, http.StatusBadRequest},
		{"malformed", http.MethodPost, "/survey/lifestyle", `{"answers":`, http.StatusBadRequest},
		{"empty essay", http.MethodPost, "/survey/essay", `{"question_id":34,"text":""}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandler_SaveEssay(t *testing.T) {
	rec := serve(t, http.MethodPost, "/survey/essay", `{"question_id":34,"text":"  저는 산책을 좋아해요  "}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"data":{"status":"success","saved_count":1}}`, rec.Body.String())
}
