package client

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

type sessionTokenSource struct {
	ctx    context.Context
	client *Client
}

// TokenSource exposes the session as an oauth2.TokenSource, refreshing it
// when expired. It never logs the session out.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &sessionTokenSource{ctx: ctx, client: c})
}

// HTTPClient returns an *http.Client that authenticates with the session
// token, for code that wants plain net/http.
func (c *Client) HTTPClient(ctx context.Context) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return oauth2.NewClient(ctx, c.TokenSource(ctx))
}

func (ts *sessionTokenSource) Token() (*oauth2.Token, error) {
	manager := ts.client.session
	if manager.IsTokenExpired() && !ts.client.RefreshAuthToken(ts.ctx) {
		return nil, ErrAuthenticationRequired
	}
	access := manager.AccessToken()
	if access == "" {
		return nil, ErrAuthenticationRequired
	}

	token := &oauth2.Token{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: manager.RefreshToken(),
	}
	if expiry, ok := manager.TokenExpiry(); ok {
		token.Expiry = expiry
	}
	return token, nil
}
