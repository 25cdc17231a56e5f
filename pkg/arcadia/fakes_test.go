package arcadia

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Adda-Baaj/arcadia/pkg/httpclient"
)

type fakeResponse struct {
	body        []byte
	statusCode  int
	contentType string
}

func (f fakeResponse) Body() []byte        { return f.body }
func (f fakeResponse) StatusCode() int     { return f.statusCode }
func (f fakeResponse) ContentType() string { return f.contentType }

type fakeStep struct {
	resp fakeResponse
	err  error
}

type fakeCall struct {
	url     string
	headers map[string]string
	query   map[string]string
}

// fakeHTTPClient replays scripted steps per URL; the last step repeats.
type fakeHTTPClient struct {
	mu    sync.Mutex
	steps map[string][]fakeStep
	calls []fakeCall
}

func newFakeHTTPClient() *fakeHTTPClient {
	return &fakeHTTPClient{steps: make(map[string][]fakeStep)}
}

func (f *fakeHTTPClient) on(url string, steps ...fakeStep) *fakeHTTPClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps[url] = append(f.steps[url], steps...)
	return f
}

func (f *fakeHTTPClient) Get(_ context.Context, url string, headers, query map[string]string) (httpclient.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{url: url, headers: headers, query: query})

	steps := f.steps[url]
	if len(steps) == 0 {
		return nil, errors.New("no route for " + url)
	}
	step := steps[0]
	if len(steps) > 1 {
		f.steps[url] = steps[1:]
	}
	if step.err != nil {
		return nil, step.err
	}
	return step.resp, nil
}

func (f *fakeHTTPClient) callsTo(url string) []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeCall
	for _, c := range f.calls {
		if c.url == url {
			out = append(out, c)
		}
	}
	return out
}

func jsonStep(body string) fakeStep {
	return fakeStep{resp: fakeResponse{body: []byte(body), statusCode: 200, contentType: "application/json"}}
}

// recordingSleeper captures backoff delays and the retry counter seen at each.
type recordingSleeper struct {
	catalog *Catalog
	delays  []time.Duration
	retries []int64
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	if r.catalog != nil {
		r.retries = append(r.retries, r.catalog.Retries())
	}
	return nil
}

func withSleeper(fn sleepFunc) Option {
	return func(o *options) { o.sleep = fn }
}

const testBaseURL = "https://arcadia.test/api/v1"

func newTestCatalog(client httpclient.Client, opts ...Option) *Catalog {
	o := newOptions(append([]Option{WithBaseURL(testBaseURL)}, opts...))
	return newCatalog(client, o)
}
