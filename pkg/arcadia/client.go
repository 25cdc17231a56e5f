package arcadia

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Adda-Baaj/arcadia/pkg/httpclient"
)

// Client fetches generated images from the arcadia API.
type Client struct {
	baseURL        string
	headers        map[string]string
	http           httpclient.Client
	owned          *httpclient.RestyClient
	catalog        *Catalog
	timeout        time.Duration
	reconcileDelay time.Duration
	log            Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a client authenticated with token and schedules the initial
// endpoint catalog refresh in the background.
func New(token string, opts ...Option) *Client {
	o := newOptions(opts)

	c := &Client{
		baseURL: strings.TrimRight(o.baseURL, "/"),
		headers: map[string]string{
			"User-Agent":    o.userAgent,
			"Authorization": token,
		},
		http:           o.http,
		timeout:        o.timeout,
		reconcileDelay: o.reconcileDelay,
		log:            o.log,
	}
	if c.http == nil {
		c.owned = httpclient.NewRestyClient(0)
		c.http = c.owned
	}
	o.baseURL = c.baseURL
	c.catalog = newCatalog(c.http, o)
	c.ctx, c.cancel = context.WithCancel(context.Background())

	go c.catalog.Refresh(c.ctx, false)
	return c
}

// Catalog exposes the endpoint catalog backing validation.
func (c *Client) Catalog() *Catalog { return c.catalog }

// Endpoints returns the currently known endpoint names.
func (c *Client) Endpoints() []string { return c.catalog.Endpoints() }

// Close stops background catalog refreshes and releases the transport when
// the client created it.
func (c *Client) Close() error {
	c.cancel()
	if c.owned != nil {
		return c.owned.Close()
	}
	return nil
}

// FetchImage requests a generated image. Unknown endpoints trigger a single
// background catalog resync before the request is rejected with
// ErrInvalidEndpoint. Failed fetches are never retried.
func (c *Client) FetchImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	endpoint := strings.ToLower(strings.TrimSpace(req.Endpoint))
	if endpoint == "" {
		return nil, fmt.Errorf("%w: empty endpoint", ErrInvalidEndpoint)
	}

	if !c.catalog.Contains(endpoint) {
		ok, err := c.reconcile(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, req.Endpoint)
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.http.Get(reqCtx, c.baseURL+"/"+url.PathEscape(endpoint), c.headers, req.query())
	if err != nil {
		return nil, fmt.Errorf("fetch %s image: %w", endpoint, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusForbidden:
		return nil, ErrForbidden
	case code != http.StatusOK:
		return nil, &NotFoundError{Endpoint: endpoint, StatusCode: code}
	}

	return &ImageResult{
		Data:      resp.Body(),
		Extension: extensionFromContentType(resp.ContentType()),
	}, nil
}

// reconcile kicks off a non-forced catalog refresh without waiting on it, then
// gives it up to the reconcile delay to land before re-checking endpoint.
func (c *Client) reconcile(ctx context.Context, endpoint string) (bool, error) {
	updated := c.catalog.Updated()
	go c.catalog.Refresh(c.ctx, false)

	c.log.DebugObj("unknown endpoint; resyncing catalog", "endpoint", endpoint)

	timer := time.NewTimer(c.reconcileDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-updated:
	case <-timer.C:
	}
	return c.catalog.Contains(endpoint), nil
}
