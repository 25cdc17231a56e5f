package arcadia

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/Adda-Baaj/arcadia/pkg/httpclient"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	errNoEndpoints       = errors.New("catalog response has no endpoints")
	errMalformedCatalog  = errors.New("catalog response is malformed")
	errCatalogStatusCode = errors.New("catalog returned unexpected status")
)

type endpointSet map[string]struct{}

// Catalog caches the endpoint names published at the service root.
//
// The set is replaced wholesale on every successful refresh and read without
// locking. An empty set means the catalog is not known yet, in which case
// every name is accepted.
type Catalog struct {
	http        httpclient.Client
	url         string
	headers     map[string]string
	timeout     time.Duration
	backoffStep time.Duration
	backoffMax  time.Duration
	sleep       sleepFunc
	log         Logger

	endpoints atomic.Pointer[endpointSet]
	retries   atomic.Int64
	running   atomic.Bool

	mu      sync.Mutex
	updated chan struct{}
}

func newCatalog(client httpclient.Client, o options) *Catalog {
	return &Catalog{
		http:        client,
		url:         o.baseURL,
		headers:     map[string]string{"User-Agent": o.userAgent},
		timeout:     o.catalogTimeout,
		backoffStep: o.backoffStep,
		backoffMax:  o.backoffMax,
		sleep:       o.sleep,
		log:         o.log,
		updated:     make(chan struct{}),
	}
}

// Contains reports whether name is a known endpoint. It is always true while
// the catalog is empty.
func (c *Catalog) Contains(name string) bool {
	set := c.endpoints.Load()
	if set == nil || len(*set) == 0 {
		return true
	}
	_, ok := (*set)[strings.ToLower(name)]
	return ok
}

// Endpoints returns a sorted snapshot of the known endpoint names.
func (c *Catalog) Endpoints() []string {
	set := c.endpoints.Load()
	if set == nil {
		return nil
	}
	out := make([]string, 0, len(*set))
	for name := range *set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Retries returns the number of consecutive failed refresh attempts.
func (c *Catalog) Retries() int64 { return c.retries.Load() }

// Loaded reports whether at least one refresh has succeeded.
func (c *Catalog) Loaded() bool { return c.endpoints.Load() != nil }

// Updated returns a channel closed on the next successful refresh.
func (c *Catalog) Updated() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updated
}

// Wait blocks until a refresh has succeeded or ctx is done.
func (c *Catalog) Wait(ctx context.Context) error {
	for {
		updated := c.Updated()
		if c.Loaded() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-updated:
		}
	}
}

// Refresh reloads the catalog, retrying connection failures with a linear
// backoff until it succeeds, the transport is closed or ctx is cancelled.
//
// A non-forced call is a no-op while another refresh is pending, so a burst
// of cache misses issues a single catalog request.
func (c *Catalog) Refresh(ctx context.Context, force bool) {
	if !force && c.retries.Load() > 0 {
		c.log.DebugObj("endpoint catalog refresh already pending", "catalog_retries", c.retries.Load())
		return
	}
	owner := c.running.CompareAndSwap(false, true)
	if !owner && !force {
		return
	}
	release := func() {
		if owner {
			c.running.Store(false)
			owner = false
		}
	}
	defer release()

	backedOff := false
	for {
		names, err := c.fetch(ctx)
		if err == nil {
			release()
			c.replace(names)
			c.log.InfoObj("endpoint catalog refreshed", "catalog_meta", map[string]any{
				"url":       c.url,
				"endpoints": len(names),
			})
			return
		}
		if !c.retryable(ctx, err) {
			// An unusable payload ends our own backoff loop; clear the counter
			// it raised so later misses can still trigger a resync.
			if backedOff && unusablePayload(err) {
				c.retries.Store(0)
			}
			return
		}

		backedOff = true
		attempt := c.retries.Add(1)
		delay := c.backoff(attempt)
		c.log.WarnObj("endpoint catalog refresh failed; retrying", "catalog_retry", map[string]any{
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
			"error":    err.Error(),
		})
		if err := c.sleep(ctx, delay); err != nil {
			return
		}
	}
}

// retryable classifies a refresh failure, logging the ones that end the loop.
func (c *Catalog) retryable(ctx context.Context, err error) bool {
	switch {
	case errors.Is(err, httpclient.ErrClosed):
		c.log.DebugObj("endpoint catalog refresh abandoned", "reason", "transport closed")
		return false
	case ctx.Err() != nil:
		c.log.DebugObj("endpoint catalog refresh abandoned", "reason", ctx.Err().Error())
		return false
	case unusablePayload(err):
		c.log.WarnObj("endpoint catalog response ignored", "catalog_error", map[string]any{
			"url":   c.url,
			"error": err.Error(),
		})
		return false
	default:
		return true
	}
}

func unusablePayload(err error) bool {
	return errors.Is(err, errNoEndpoints) || errors.Is(err, errMalformedCatalog)
}

func (c *Catalog) backoff(attempt int64) time.Duration {
	return min(time.Duration(attempt)*c.backoffStep, c.backoffMax)
}

// fetch performs a single catalog request.
func (c *Catalog) fetch(ctx context.Context) ([]string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.Get(reqCtx, c.url, c.headers, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch endpoint catalog: %w", err)
	}
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return nil, fmt.Errorf("%w %d", errCatalogStatusCode, code)
	}
	return parseEndpoints(resp.Body())
}

// replace swaps in a new endpoint set and wakes anyone waiting on Updated.
func (c *Catalog) replace(names []string) {
	set := make(endpointSet, len(names))
	for _, name := range names {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			set[name] = struct{}{}
		}
	}
	c.endpoints.Store(&set)
	c.retries.Store(0)

	c.mu.Lock()
	close(c.updated)
	c.updated = make(chan struct{})
	c.mu.Unlock()
}

// parseEndpoints decodes {"endpoints": [...]} or {"endpoints": {"cat": [...]}}.
func parseEndpoints(body []byte) ([]string, error) {
	var doc struct {
		Endpoints any `json:"endpoints"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedCatalog, err)
	}

	switch v := doc.Endpoints.(type) {
	case nil:
		return nil, errNoEndpoints
	case bool:
		if !v {
			return nil, errNoEndpoints
		}
	case float64:
		if v == 0 {
			return nil, errNoEndpoints
		}
	case string:
		if v == "" {
			return nil, errNoEndpoints
		}
	case []any:
		if len(v) == 0 {
			return nil, errNoEndpoints
		}
		return stringList(v)
	case map[string]any:
		if len(v) == 0 {
			return nil, errNoEndpoints
		}
		var names []string
		for category, raw := range v {
			list, ok := raw.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: category %q is not a list", errMalformedCatalog, category)
			}
			group, err := stringList(list)
			if err != nil {
				return nil, err
			}
			names = append(names, group...)
		}
		return names, nil
	}
	return nil, fmt.Errorf("%w: unexpected endpoints value %T", errMalformedCatalog, doc.Endpoints)
}

func stringList(list []any) ([]string, error) {
	out := make([]string, 0, len(list))
	for _, item := range list {
		name, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: endpoint name %v is not a string", errMalformedCatalog, item)
		}
		out = append(out, name)
	}
	return out, nil
}
