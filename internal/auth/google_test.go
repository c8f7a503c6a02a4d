package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "rendi.apps.googleusercontent.com"

func tokenInfoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("id_token") {
		case "good":
			w.Write([]byte(`{"iss":"https://accounts.google.com","aud":"` + testClientID + `","sub":"1001",
				"email":"kim@rendi.app","email_verified":"true","name":"Kim","picture":"https://img/kim.png"}`))
		case "other-app":
			w.Write([]byte(`{"iss":"accounts.google.com","aud":"someone-else","sub":"1001","email_verified":"true"}`))
		case "unverified-email":
			w.Write([]byte(`{"iss":"accounts.google.com","aud":"` + testClientID + `","sub":"1001","email_verified":"false"}`))
		case "down":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_token"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleVerifier_Verify(t *testing.T) {
	srv := tokenInfoServer(t)
	v := NewGoogleVerifier(testClientID, srv.URL, time.Second)
	ctx := context.Background()

	id, err := v.Verify(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, &ProviderIdentity{Subject: "1001", Email: "kim@rendi.app", Name: "Kim", Picture: "https://img/kim.png"}, id)

	for _, token := range []string{"other-app", "unverified-email", "garbage"} {
		_, err := v.Verify(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidIDToken, token)
	}

	_, err = v.Verify(ctx, "down")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidIDToken)
}
