package profile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendi-app/rendi/internal/auth"
	"github.com/rendi-app/rendi/internal/users"
)

type memRepo struct {
	mu   sync.Mutex
	rows map[int64]*Row
	err  error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[int64]*Row)}
}

func (m *memRepo) Get(_ context.Context, userID int64) (*Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	row, ok := m.rows[userID]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (m *memRepo) UpsertBasic(_ context.Context, userID int64, basic Basic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	row, ok := m.rows[userID]
	if !ok {
		row = &Row{UserID: userID}
		m.rows[userID] = row
	}
	row.Basic = basic
	return nil
}

func (m *memRepo) UpdateExtra(_ context.Context, userID int64, extra Extra) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	row, ok := m.rows[userID]
	if !ok {
		return false, nil
	}
	row.Extra = &extra
	return true, nil
}

var testUser = &users.User{ID: 7, GoogleID: "google-7", Email: "me@example.com", Name: "Jiwoo"}

func do(t *testing.T, fn http.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/users/me/profile", strings.NewReader(body))
	req = req.WithContext(auth.WithUser(req.Context(), testUser))
	rec := httptest.NewRecorder()
	fn(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Data
}

func TestHandler_GetWithoutProfile(t *testing.T) {
	h := NewHandler(NewService(newMemRepo()))

	rec := do(t, h.Get, http.MethodGet, "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	assert.Contains(t, data, "user")
	assert.NotContains(t, data, "basic")
	assert.NotContains(t, data, "extra")
}

func TestHandler_SaveBasicThenExtra(t *testing.T) {
	repo := newMemRepo()
	h := NewHandler(NewService(repo))

	rec := do(t, h.SaveBasic, http.MethodPost, `{"name":" 홍길동 ","age":28,"gender":"male","job":"Developer"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h.SaveExtra, http.MethodPost, `{"mbti":"intj","smoking":false}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "INTJ", decodeData(t, rec)["mbti"])

	rec = do(t, h.Get, http.MethodGet, "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	basic := data["basic"].(map[string]any)
	assert.Equal(t, "홍길동", basic["name"])
	assert.Equal(t, float64(28), basic["age"])
	extra := data["extra"].(map[string]any)
	assert.Equal(t, false, extra["smoking"])
}

func TestHandler_ExtraRequiresBasic(t *testing.T) {
	h := NewHandler(NewService(newMemRepo()))

	rec := do(t, h.SaveExtra, http.MethodPost, `{"mbti":"ENFP","smoking":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "basic profile must be completed first")
}

func TestHandler_Validation(t *testing.T) {
	h := NewHandler(NewService(newMemRepo()))

	tests := []struct {
		name string
		fn   http.HandlerFunc
		body string
	}{
		{"malformed json", h.SaveBasic, `{`},
		{"missing name", h.SaveBasic, `{"age":28,"gender":"male"}`},
		{"under age", h.SaveBasic, `{"name":"a","age":15,"gender":"male"}`},
		{"unknown gender", h.SaveBasic, `{"name":"a","age":30,"gender":"x"}`},
		{"smoking required", h.SaveExtra, `{"mbti":"INTJ"}`},
		{"bad mbti", h.SaveExtra, `{"mbti":"INTJX","smoking":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, tt.fn, http.MethodPost, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandler_StoreFailure(t *testing.T) {
	repo := newMemRepo()
	repo.err = errors.New("connection refused")
	h := NewHandler(NewService(repo))

	rec := do(t, h.Get, http.MethodGet, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestHandler_RequiresUser(t *testing.T) {
	h := NewHandler(NewService(newMemRepo()))

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/users/me/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
