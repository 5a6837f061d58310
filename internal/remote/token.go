package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/unidrive/unidrive/internal/logging"
)

// expirySlack is subtracted from token lifetimes so a token is refreshed
// before the remote side rejects it mid-traversal.
const expirySlack = 5 * time.Minute

// TokenSource supplies bearer tokens for drive API requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a TokenSource that always yields tok.
func StaticTokenSource(tok string) TokenSource {
	return staticToken(tok)
}

type staticToken string

func (s staticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// ClientCredentials acquires tokens via the OAuth2 client-credentials grant
// and caches them until shortly before expiry.
type ClientCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string

	HTTPClient *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// Token returns a cached token or acquires a fresh one.
func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expires) {
		return c.token, nil
	}

	if c.TokenURL == "" || c.ClientID == "" {
		return "", fmt.Errorf("token source not configured")
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.ClientID},
		"client_secret": {c.ClientSecret},
		"scope":         {c.scope()},
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token response: no access token")
	}

	c.token = body.AccessToken
	c.expires = tokenExpiry(body.AccessToken, body.ExpiresIn)
	logging.Debug("access token acquired", zap.Time("expires", c.expires))
	return c.token, nil
}

func (c *ClientCredentials) scope() string {
	if c.Scope != "" {
		return c.Scope
	}
	return "https://graph.microsoft.com/.default"
}

// tokenExpiry prefers the exp claim embedded in the token over the
// advertised expires_in; both get the refresh slack applied.
func tokenExpiry(token string, expiresIn int64) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time.Add(-expirySlack)
		}
	}
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return time.Now().Add(time.Duration(expiresIn)*time.Second - expirySlack)
}
