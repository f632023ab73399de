package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/danaasamuel2023/senyo-sub001/internal/metrics"
	"github.com/danaasamuel2023/senyo-sub001/session"
	"github.com/google/uuid"
)

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshAuthToken exchanges the stored refresh token for a new bundle. On
// any failure it returns false and leaves the stored session untouched.
//
// A shared refresh is not tied to any one caller's context: a caller that
// gives up gets false, and the others still see the flight's result.
func (c *Client) RefreshAuthToken(ctx context.Context) bool {
	if !c.dedupRefresh {
		return c.refresh(ctx)
	}
	flight := c.refreshes.DoChan(refreshFlightGroup, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx)), nil
	})
	select {
	case res := <-flight:
		return res.Val.(bool)
	case <-ctx.Done():
		return false
	}
}

func (c *Client) refresh(ctx context.Context) bool {
	refreshToken := c.session.RefreshToken()
	if refreshToken == "" {
		metrics.ObserveRefresh(metrics.ResultSkipped)
		return false
	}

	bundle, err := c.requestRefresh(ctx, refreshToken)
	if err != nil {
		metrics.ObserveRefresh(metrics.ResultFailure)
		c.logger.Warn().Err(err).Msg("token refresh failed")
		return false
	}

	c.session.SaveAuthData(*bundle, c.session.RememberMe())
	metrics.ObserveRefresh(metrics.ResultSuccess)
	c.logger.Debug().Msg("token refreshed")
	return true
}

func (c *Client) requestRefresh(ctx context.Context, refreshToken string) (*session.AuthBundle, error) {
	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.url(RefreshPath), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, responseError(resp)
	}

	var bundle session.AuthBundle
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBodyBytes)).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}
	if !bundle.HasToken() {
		return nil, fmt.Errorf("refresh response carried no token")
	}
	// A server that does not rotate refresh tokens omits the field; the
	// stored one stays valid.
	if bundle.RefreshToken != nil && *bundle.RefreshToken == "" {
		bundle.RefreshToken = nil
	}
	return &bundle, nil
}

// NotifyLogout tells the backend accessToken is no longer in use. It does
// not go through Fetch, so it never refreshes or logs out.
func (c *Client) NotifyLogout(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(LogoutPath), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}

var _ session.LogoutNotifier = (*Client)(nil)
