// Package clerk verifies user sessions against the Clerk backend API.
package clerk

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fuellabs/go-faucet/faucet/auth"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "clerk")

// DefaultBaseURL is the production Clerk backend API.
const DefaultBaseURL = "https://api.clerk.com"

// Client calls the Clerk backend API with a secret key. It is safe for
// concurrent use.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

var _ auth.Handler = (*Client)(nil)

// New returns a Clerk client authenticating with the given secret key.
func New(secret string) *Client {
	return NewWithBaseURL(secret, DefaultBaseURL)
}

// NewWithBaseURL returns a Clerk client against a non-default API host.
func NewWithBaseURL(secret, baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		http:    &http.Client{},
	}
}

// GetUserSession resolves a Clerk session id to the owning user id. Only
// sessions Clerk reports as active are accepted.
func (c *Client) GetUserSession(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/sessions/"+token, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "fetch session")
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.WithError(err).Debug("Could not close response body")
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("session lookup returned status %d", resp.StatusCode)
	}
	var out struct {
		UserID string `json:"user_id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode session")
	}
	if out.Status != "active" {
		return "", errors.Errorf("session is %s", out.Status)
	}
	if out.UserID == "" {
		return "", errors.New("session has no user")
	}
	return out.UserID, nil
}
