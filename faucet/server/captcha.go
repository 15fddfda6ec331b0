package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// recaptchaVerifyURL is Google's siteverify endpoint.
const recaptchaVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// captchaVerifier checks a client supplied captcha response token.
type captchaVerifier interface {
	Verify(ctx context.Context, response string) error
}

type recaptcha struct {
	secret    string
	verifyURL string
	http      *http.Client
}

func newRecaptcha(secret string) *recaptcha {
	return &recaptcha{
		secret:    secret,
		verifyURL: recaptchaVerifyURL,
		http:      &http.Client{},
	}
}

// Verify calls the siteverify endpoint with the shared secret.
func (c *recaptcha) Verify(ctx context.Context, response string) error {
	if response == "" {
		return errors.New("missing captcha response")
	}
	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", response)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "verify captcha")
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.WithError(err).Debug("Could not close response body")
		}
	}()
	var out struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return errors.Wrap(err, "decode captcha verification")
	}
	if !out.Success {
		return errors.Errorf("captcha rejected: %s", strings.Join(out.ErrorCodes, ", "))
	}
	return nil
}
