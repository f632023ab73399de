package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/danaasamuel2023/senyo-sub001/session"
	"github.com/danaasamuel2023/senyo-sub001/users"
	"github.com/google/uuid"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for an auth bundle and saves it. Failures
// leave the stored session untouched; a rejected login is an *HTTPError
// carrying the server's message.
func (c *Client) Login(ctx context.Context, email, password string, rememberMe bool) (*users.Profile, error) {
	payload, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := requestContext(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.url(LoginPath), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, responseError(resp)
	}

	var bundle session.AuthBundle
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBodyBytes)).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if !bundle.HasToken() {
		return nil, fmt.Errorf("login response carried no token")
	}

	c.session.SaveAuthData(bundle, rememberMe)
	c.logger.Info().Str("email", email).Bool("rememberMe", rememberMe).Msg("signed in")
	return c.session.GetCurrentUser(), nil
}
