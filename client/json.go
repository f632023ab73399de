package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

func (c *Client) GetJSON(ctx context.Context, path string, out any, options ...RequestOption) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out, options...)
}

func (c *Client) PostJSON(ctx context.Context, path string, in, out any, options ...RequestOption) error {
	return c.doJSON(ctx, http.MethodPost, path, in, out, options...)
}

func (c *Client) PutJSON(ctx context.Context, path string, in, out any, options ...RequestOption) error {
	return c.doJSON(ctx, http.MethodPut, path, in, out, options...)
}

func (c *Client) DeleteJSON(ctx context.Context, path string, out any, options ...RequestOption) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, out, options...)
}

// doJSON encodes in as the request body when non-nil and decodes the
// response into out when non-nil. An empty response body leaves out as is.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, options ...RequestOption) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	resp, err := c.Fetch(ctx, method, path, body, options...)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
