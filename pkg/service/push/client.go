package push

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seabird-lab/beacon/pkg/domain/types"
	"github.com/seabird-lab/beacon/pkg/utils/safe"
)

const deliverTimeout = 10 * time.Second

// Client posts notifications to the provider's webhook endpoint.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

var _ Service = &Client{}

type Option func(*Client)

// WithToken sets the bearer token attached to delivery requests.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, goerr.New("push endpoint is required")
	}

	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: deliverTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Deliver posts one notification. The returned error wraps types.ErrRemote;
// fan-out callers log and drop it.
func (c *Client) Deliver(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal push notification", goerr.V("event_id", n.EventID))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return goerr.Wrap(err, "failed to build push request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(types.ErrRemote, "push delivery failed",
			goerr.V("event_id", n.EventID), goerr.V("cause", err.Error()))
	}
	defer safe.Close(ctx, resp.Body)
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return goerr.Wrap(types.ErrRemote, "push provider rejected delivery",
			goerr.V("event_id", n.EventID), goerr.V("status", resp.StatusCode))
	}

	return nil
}
