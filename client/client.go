package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/foomo/formpersist/pkg/persist"
	"github.com/foomo/formpersist/responses"
	"github.com/pkg/errors"
)

// Client talks to a formpersist server
type Client struct {
	t transport
}

// NewHTTPClient creates a client for the server below the given base url,
// e.g. https://forms.example.com/formpersist
func NewHTTPClient(server string, opts ...HTTPTransportOption) (*Client, error) {
	if !isValidURL(server) {
		return nil, errors.Errorf("invalid server url: %q", server)
	}
	return &Client{
		t: NewHTTPTransport(strings.TrimSuffix(server, "/"), opts...),
	}, nil
}

// GetState mounts the named form on the server and returns its state
func (c *Client) GetState(ctx context.Context, name string) (persist.State, error) {
	state := persist.State{}
	if err := c.t.call(ctx, http.MethodGet, formPath(name, ""), nil, &state); err != nil {
		return nil, err
	}
	return state, nil
}

// SetState replaces the whole state of the named form
func (c *Client) SetState(ctx context.Context, name string, state persist.State) (*responses.Change, error) {
	response := &responses.Change{}
	if err := c.t.call(ctx, http.MethodPost, formPath(name, "state"), state, response); err != nil {
		return nil, err
	}
	return response, nil
}

// SetValues replaces the values of the named form
func (c *Client) SetValues(ctx context.Context, name string, values map[string]any) (*responses.Change, error) {
	response := &responses.Change{}
	if err := c.t.call(ctx, http.MethodPost, formPath(name, "values"), values, response); err != nil {
		return nil, err
	}
	return response, nil
}

// Flush commits a pending write of the named form
func (c *Client) Flush(ctx context.Context, name string) error {
	return c.t.call(ctx, http.MethodPost, formPath(name, "flush"), nil, &responses.Flush{})
}

func (c *Client) ShutDown() {
	c.t.shutdown()
}

func formPath(name, action string) string {
	p := "/" + url.PathEscape(name)
	if action != "" {
		p += "/" + action
	}
	return p
}

func isValidURL(str string) bool {
	u, err := url.Parse(str)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
