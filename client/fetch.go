package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/danaasamuel2023/senyo-sub001/internal/metrics"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

type requestOptions struct {
	timeout time.Duration
	header  http.Header
}

type RequestOption func(*requestOptions)

// WithTimeout aborts the request after d. Expiry surfaces as ErrTimeout.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.timeout = d
	}
}

func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		o.header.Add(key, value)
	}
}

// Fetch sends an authenticated request to path and returns the 2xx
// response; the caller closes its body.
//
// An expired token is refreshed before sending. A 401 gets one refresh and
// one retry. When either refresh fails the session is logged out and
// ErrAuthenticationRequired returned. Other non-2xx responses come back as
// *HTTPError.
func (c *Client) Fetch(ctx context.Context, method, path string, body io.Reader, options ...RequestOption) (resp *http.Response, err error) {
	opts := requestOptions{timeout: c.requestTimeout, header: make(http.Header)}
	for _, opt := range options {
		opt(&opts)
	}

	var payload []byte
	if body != nil {
		if payload, err = io.ReadAll(body); err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
	}

	defer func() {
		metrics.ObserveRequest(outcomeOf(err))
	}()

	if c.session.IsTokenExpired() && !c.RefreshAuthToken(ctx) {
		// A caller that gave up has not proven the session dead.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, c.forceLogout(ctx, metrics.ReasonPreflight)
	}

	resp, cancel, err := c.send(ctx, method, path, payload, opts)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		discard(resp, cancel)
		if !c.RefreshAuthToken(ctx) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, c.forceLogout(ctx, metrics.ReasonUnauthorized)
		}
		if resp, cancel, err = c.send(ctx, method, path, payload, opts); err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			discard(resp, cancel)
			return nil, c.forceLogout(ctx, metrics.ReasonUnauthorized)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer resp.Body.Close()
		return nil, responseError(resp)
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, opts requestOptions) (*http.Response, context.CancelFunc, error) {
	reqCtx, cancel := requestContext(ctx, opts.timeout)

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, c.url(path), body)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range opts.header {
		req.Header[key] = values
	}
	if payload != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
	if token := c.session.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, nil, transportError(ctx, err)
	}
	return resp, cancel, nil
}

// requestContext derives the context for one round trip. A non-positive
// timeout means no deadline beyond ctx's own.
func requestContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func (c *Client) forceLogout(ctx context.Context, reason string) error {
	metrics.ObserveForcedLogout(reason)
	c.logger.Info().Str("reason", reason).Msg("session could not be refreshed, logging out")
	c.session.Logout(ctx, c.signInPath)
	return ErrAuthenticationRequired
}

// transportError maps a failed round trip onto the client taxonomy. A
// cancelled caller context is returned as is.
func transportError(ctx context.Context, err error) error {
	if ctx.Err() == context.Canceled {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w: %w", ErrTimeout, ErrNetwork, err)
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

func responseError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	message := ""
	if gjson.ValidBytes(data) {
		message = gjson.GetBytes(data, "message").String()
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &HTTPError{Status: resp.StatusCode, Message: message}
}

func outcomeOf(err error) string {
	var httpErr *HTTPError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrAuthenticationRequired):
		return metrics.OutcomeAuthRequired
	case errors.Is(err, ErrRateLimited):
		return metrics.OutcomeRateLimited
	case errors.As(err, &httpErr):
		return metrics.OutcomeHTTPError
	case errors.Is(err, ErrTimeout):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeNetworkError
	}
}

func discard(resp *http.Response, cancel context.CancelFunc) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
	_ = resp.Body.Close()
	cancel()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
