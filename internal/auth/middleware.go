package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rendi-app/rendi/internal/api"
	"github.com/rendi-app/rendi/internal/users"
)

type contextKey string

const userKey contextKey = "current_user"

func Middleware(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := svc.ResolveRequest(r)
			switch {
			case errors.Is(err, ErrMissingToken):
				api.HandleError(w, api.ErrUnauthorized)
				return
			case errors.Is(err, ErrUnknownUser):
				api.HandleError(w, api.ErrUserNotFound)
				return
			case errors.As(err, new(*lookupError)):
				slog.Error("resolving request user", "error", err)
				api.HandleError(w, api.ErrInternalServer)
				return
			case err != nil:
				api.HandleError(w, api.ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func WithUser(ctx context.Context, user *users.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// CurrentUser returns the authenticated user, or nil outside Middleware.
func CurrentUser(ctx context.Context) *users.User {
	user, _ := ctx.Value(userKey).(*users.User)
	return user
}
