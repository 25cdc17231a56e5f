package arcadia

import (
	"context"
	"time"

	"github.com/Adda-Baaj/arcadia/pkg/httpclient"
)

const (
	// DefaultBaseURL is the public arcadia-api endpoint root.
	DefaultBaseURL = "https://arcadia-api.xyz/api/v1"
	// DefaultUserAgent identifies this client to the service.
	DefaultUserAgent = "arcadia-go (github.com/Adda-Baaj/arcadia)"

	DefaultTimeout        = 300 * time.Second
	DefaultCatalogTimeout = 30 * time.Second
	DefaultBackoffStep    = 5 * time.Second
	DefaultBackoffMax     = 60 * time.Second
	DefaultReconcileDelay = time.Second
)

type options struct {
	baseURL        string
	userAgent      string
	http           httpclient.Client
	log            Logger
	timeout        time.Duration
	catalogTimeout time.Duration
	backoffStep    time.Duration
	backoffMax     time.Duration
	reconcileDelay time.Duration
	sleep          sleepFunc
}

// Option configures a Client.
type Option func(*options)

// WithBaseURL overrides the service root.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithHTTPClient injects a shared transport. The client does not close
// transports it did not create.
func WithHTTPClient(c httpclient.Client) Option {
	return func(o *options) { o.http = c }
}

// WithLogger sets the logger used for catalog refresh reporting.
func WithLogger(log Logger) Option {
	return func(o *options) { o.log = log }
}

// WithTimeout sets the default per-request timeout for image fetches.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithCatalogTimeout sets the timeout of each catalog request.
func WithCatalogTimeout(d time.Duration) Option {
	return func(o *options) { o.catalogTimeout = d }
}

// WithBackoff sets the linear backoff step and its cap for catalog retries.
func WithBackoff(step, ceiling time.Duration) Option {
	return func(o *options) {
		o.backoffStep = step
		o.backoffMax = ceiling
	}
}

// WithReconcileDelay bounds how long a fetch waits for a catalog resync
// after an unknown endpoint is requested.
func WithReconcileDelay(d time.Duration) Option {
	return func(o *options) { o.reconcileDelay = d }
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func newOptions(opts []Option) options {
	o := options{
		baseURL:        DefaultBaseURL,
		userAgent:      DefaultUserAgent,
		timeout:        DefaultTimeout,
		catalogTimeout: DefaultCatalogTimeout,
		backoffStep:    DefaultBackoffStep,
		backoffMax:     DefaultBackoffMax,
		reconcileDelay: DefaultReconcileDelay,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}
	if o.catalogTimeout <= 0 {
		o.catalogTimeout = DefaultCatalogTimeout
	}
	if o.backoffStep <= 0 {
		o.backoffStep = DefaultBackoffStep
	}
	if o.backoffMax < o.backoffStep {
		o.backoffMax = o.backoffStep
	}
	if o.reconcileDelay < 0 {
		o.reconcileDelay = 0
	}
	if o.sleep == nil {
		o.sleep = sleepContext
	}
	o.log = ensureLogger(o.log)
	return o
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
