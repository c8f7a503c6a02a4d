package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/rendi-app/rendi/internal/users"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

var (
	ErrMissingToken = errors.New("no access token")
	ErrTokenRevoked = errors.New("refresh token revoked")
	ErrUnknownUser  = errors.New("token subject is not a registered user")
)

// UserStore finds users by the subject carried in access tokens and records
// users on sign-in.
type UserStore interface {
	GetByGoogleID(ctx context.Context, googleID string) (*users.User, error)
	Register(ctx context.Context, googleID, email, name, picture string) (*users.User, error)
}

type Service struct {
	jwt         *JWTManager
	redisClient *redis.Client
	users       UserStore
	verifier    IdentityVerifier
}

func NewService(jwt *JWTManager, redisClient *redis.Client, users UserStore, verifier IdentityVerifier) *Service {
	return &Service{
		jwt:         jwt,
		redisClient: redisClient,
		users:       users,
		verifier:    verifier,
	}
}

// lookupError marks failures of the user store rather than of the token.
type lookupError struct{ err error }

func (e *lookupError) Error() string { return "loading user: " + e.err.Error() }
func (e *lookupError) Unwrap() error { return e.err }

func refreshKey(subject, tokenID string) string {
	return fmt.Sprintf("refresh:%s:%s", subject, tokenID)
}

// Login verifies a provider ID token, records the user on first sign-in and
// mints a token pair. The boolean reports whether the user is new.
func (s *Service) Login(ctx context.Context, idToken string) (*users.User, *TokenPair, bool, error) {
	identity, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, nil, false, err
	}

	existing, err := s.users.GetByGoogleID(ctx, identity.Subject)
	if err != nil {
		return nil, nil, false, &lookupError{err: err}
	}

	user, err := s.users.Register(ctx, identity.Subject, identity.Email, identity.Name, identity.Picture)
	if err != nil {
		return nil, nil, false, fmt.Errorf("registering user: %w", err)
	}

	pair, err := s.IssueTokens(ctx, user.GoogleID)
	if err != nil {
		return nil, nil, false, err
	}
	return user, pair, existing == nil, nil
}

// IssueTokens mints a token pair for a user the identity provider vouched for
// and records the refresh token id.
func (s *Service) IssueTokens(ctx context.Context, subject string) (*TokenPair, error) {
	pair, tokenID, err := s.jwt.GenerateTokenPair(subject)
	if err != nil {
		return nil, err
	}

	if err := s.redisClient.Set(ctx, refreshKey(subject, tokenID), "1", s.jwt.RefreshExpiry()).Err(); err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}
	return pair, nil
}

// RefreshTokens rotates a refresh token. Each refresh token can be used once.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	deleted, err := s.redisClient.Del(ctx, refreshKey(claims.Subject, claims.TokenID)).Result()
	if err != nil {
		return nil, fmt.Errorf("revoking refresh token: %w", err)
	}
	if deleted == 0 {
		return nil, ErrTokenRevoked
	}

	return s.IssueTokens(ctx, claims.Subject)
}

// Logout revokes every refresh token of the subject.
func (s *Service) Logout(ctx context.Context, subject string) error {
	iter := s.redisClient.Scan(ctx, 0, refreshKey(subject, "*"), 100).Iterator()
	for iter.Next(ctx) {
		if err := s.redisClient.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("revoking refresh token: %w", err)
		}
	}
	return iter.Err()
}

// Authenticate validates an access token and loads its user.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*users.User, error) {
	claims, err := s.jwt.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByGoogleID(ctx, claims.Subject)
	if err != nil {
		return nil, &lookupError{err: err}
	}
	if user == nil {
		return nil, ErrUnknownUser
	}
	return user, nil
}

// ResolveRequest authenticates r using the access token cookie, falling back
// to a bearer Authorization header.
func (s *Service) ResolveRequest(r *http.Request) (*users.User, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return nil, ErrMissingToken
	}
	return s.Authenticate(r.Context(), token)
}

func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		return c.Value
	}

	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func (s *Service) JWT() *JWTManager {
	return s.jwt
}
