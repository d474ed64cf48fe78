package pishock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	LinkOperateURL = "https://ps.pishock.com/PiShock/LinkOperate"
	APIOperateURL  = "https://do.pishock.com/api/apioperate/"
)

// Client posts command bodies to the PiShock endpoints.
type Client struct {
	httpClient     *http.Client
	linkOperateURL string
	apiOperateURL  string
	corsProxy      string
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithEndpoints overrides the two endpoint URLs. Empty values keep the defaults.
func WithEndpoints(linkOperate, apiOperate string) ClientOption {
	return func(c *Client) {
		if linkOperate != "" {
			c.linkOperateURL = linkOperate
		}
		if apiOperate != "" {
			c.apiOperateURL = apiOperate
		}
	}
}

// WithCORSProxy sets the prefix put in front of the share-code endpoint. "" disables it.
func WithCORSProxy(prefix string) ClientOption {
	return func(c *Client) { c.corsProxy = prefix }
}

// NewClient returns a client. timeout 0 leaves requests without a client-side deadline.
func NewClient(timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		httpClient:     &http.Client{Timeout: timeout},
		linkOperateURL: LinkOperateURL,
		apiOperateURL:  APIOperateURL,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Endpoint returns the URL a request with the given auth variant is posted to.
func (c *Client) Endpoint(auth AuthMethod) string {
	if _, ok := auth.(IDKey); ok {
		return c.linkOperateURL
	}
	return c.corsProxy + c.apiOperateURL
}

// Post sends body as JSON and returns the status code. The response body is
// drained and discarded; a non-2xx status is not an error.
func (c *Client) Post(ctx context.Context, url string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
