package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var ErrInvalidIDToken = errors.New("identity token rejected")

// ProviderIdentity is what the identity provider vouches for after sign-in.
type ProviderIdentity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// IdentityVerifier checks a provider-issued ID token.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*ProviderIdentity, error)
}

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// GoogleVerifier validates Google ID tokens with Google's tokeninfo endpoint.
type GoogleVerifier struct {
	clientID string
	endpoint string
	client   *http.Client
}

func NewGoogleVerifier(clientID, endpoint string, timeout time.Duration) *GoogleVerifier {
	return &GoogleVerifier{
		clientID: clientID,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type tokenInfo struct {
	Issuer        string `json:"iss"`
	Audience      string `json:"aud"`
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*ProviderIdentity, error) {
	u, err := url.Parse(v.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing tokeninfo url: %w", err)
	}
	q := u.Query()
	q.Set("id_token", idToken)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building tokeninfo request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling tokeninfo: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return nil, ErrInvalidIDToken
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("tokeninfo returned status %d", resp.StatusCode)
	}

	var info tokenInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding tokeninfo: %w", err)
	}

	if info.Audience != v.clientID || !googleIssuers[info.Issuer] || info.Subject == "" {
		return nil, ErrInvalidIDToken
	}
	if info.EmailVerified != "true" {
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidIDToken)
	}

	return &ProviderIdentity{
		Subject: info.Subject,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}
