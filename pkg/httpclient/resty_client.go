package httpclient

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

// RestyClient adapts resty.Client to the httpclient.Client interface.
type RestyClient struct {
	client *resty.Client
	closed atomic.Bool
}

// NewRestyClient creates a new RestyClient with the specified timeout.
// A zero timeout leaves deadlines entirely to the request context.
func NewRestyClient(timeout time.Duration) *RestyClient {
	return &RestyClient{client: newRestyBaseClient(timeout)}
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(timeout)
}

// newRestyBaseClient creates a new resty.Client with the specified timeout.
func newRestyBaseClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return c
}

// Get performs an HTTP GET request with the specified context, URL, headers and query parameters.
func (r *RestyClient) Get(ctx context.Context, url string, headers, query map[string]string) (Response, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}

	req := r.client.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	resp, err := req.Get(url)
	if err != nil {
		if r.closed.Load() {
			return nil, ErrClosed
		}
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// Close marks the client closed and drops idle connections. Later calls to
// Get fail with ErrClosed.
func (r *RestyClient) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	r.client.GetClient().CloseIdleConnections()
	return nil
}

// Closed reports whether Close has been called.
func (r *RestyClient) Closed() bool { return r.closed.Load() }

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte        { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int     { return r.resp.StatusCode() }
func (r *restyResponseAdapter) ContentType() string { return r.resp.Header().Get("Content-Type") }
