package httpclient

import (
	"context"
	"errors"
)

// ErrClosed is returned for requests issued on, or interrupted by, a closed client.
var ErrClosed = errors.New("httpclient: client closed")

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
	ContentType() string
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
// Timeouts are carried by ctx.
type Client interface {
	Get(ctx context.Context, url string, headers, query map[string]string) (Response, error)
}
