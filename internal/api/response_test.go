package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSONPaginated(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONPaginated(rec, http.StatusOK, nil, 0, 1, 20)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"data":[],"total_count":0,"page":1,"page_size":20}`, rec.Body.String())
}

func TestJSONEnvelopes(t *testing.T) {
	tests := []struct {
		name  string
		write func(w http.ResponseWriter)
		want  string
	}{
		{"data", func(w http.ResponseWriter) { JSON(w, http.StatusCreated, map[string]int{"id": 1}) }, `{"data":{"id":1}}`},
		{"message", func(w http.ResponseWriter) { JSONMessage(w, http.StatusOK, "logged out") }, `{"message":"logged out"}`},
		{"error", func(w http.ResponseWriter) { JSONErrorMessage(w, http.StatusServiceUnavailable, "busy") }, `{"error":"busy"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}
