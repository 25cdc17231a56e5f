package arcadia

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// imageServer serves a catalog at / and PNG images at /<endpoint>.
type imageServer struct {
	*httptest.Server
	catalogHits atomic.Int64
	lastQuery   atomic.Value
	lastAuth    atomic.Value
}

func newImageServer(t *testing.T, catalog string, status int) *imageServer {
	t.Helper()
	s := &imageServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			s.catalogHits.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(catalog))
			return
		}
		s.lastQuery.Store(r.URL.RawQuery)
		s.lastAuth.Store(r.Header.Get("Authorization"))
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG" + strings.TrimPrefix(r.URL.Path, "/")))
	}))
	t.Cleanup(s.Close)
	return s
}

func newLoadedClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	client := New("secret", append([]Option{WithBaseURL(baseURL)}, opts...)...)
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Catalog().Wait(ctx); err != nil {
		t.Fatalf("initial catalog refresh: %v", err)
	}
	return client
}

func TestFetchImageIsCaseInsensitive(t *testing.T) {
	srv := newImageServer(t, `{"endpoints": ["triggered"]}`, http.StatusOK)
	client := newLoadedClient(t, srv.URL)

	res, err := client.FetchImage(context.Background(), NewImageRequest("Triggered", WithURL("http://a/avatar.png")))
	if err != nil {
		t.Fatalf("FetchImage: %v", err)
	}
	if res.Extension != "png" {
		t.Fatalf("Extension = %q, want png", res.Extension)
	}
	if string(res.Data) != "\x89PNGtriggered" {
		t.Fatalf("Data = %q", res.Data)
	}
	if got := srv.lastAuth.Load(); got != "secret" {
		t.Fatalf("Authorization = %v", got)
	}
	if got := srv.lastQuery.Load(); got != "url=http%3A%2F%2Fa%2Favatar.png" {
		t.Fatalf("query = %v", got)
	}
}

func TestFetchImageUnknownEndpointTriggersSingleResync(t *testing.T) {
	srv := newImageServer(t, `{"endpoints": ["triggered"]}`, http.StatusOK)
	client := newLoadedClient(t, srv.URL, WithReconcileDelay(2*time.Second))
	if got := srv.catalogHits.Load(); got != 1 {
		t.Fatalf("expected 1 initial catalog hit, got %d", got)
	}

	_, err := client.FetchImage(context.Background(), NewImageRequest("nope"))
	if !errors.Is(err, ErrInvalidEndpoint) {
		t.Fatalf("expected ErrInvalidEndpoint, got %v", err)
	}
	if !errors.Is(err, ErrArcadia) {
		t.Fatalf("expected error to match ErrArcadia, got %v", err)
	}
	if got := srv.catalogHits.Load(); got != 2 {
		t.Fatalf("expected exactly one resync, got %d catalog hits", got-1)
	}
}

func TestFetchImageConcurrentMissesShareOneResync(t *testing.T) {
	var hits atomic.Int64
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		if hits.Add(1) > 1 {
			<-release
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"endpoints": ["triggered"]}`))
	}))
	t.Cleanup(srv.Close)
	var releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	client := newLoadedClient(t, srv.URL, WithReconcileDelay(200*time.Millisecond))

	const misses = 20
	errs := make(chan error, misses)
	var wg sync.WaitGroup
	for i := 0; i < misses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.FetchImage(context.Background(), NewImageRequest("nope"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, ErrInvalidEndpoint) {
			t.Fatalf("expected ErrInvalidEndpoint, got %v", err)
		}
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected 1 initial + 1 resync catalog hit, got %d", got)
	}

	updated := client.Catalog().Updated()
	unblock()
	select {
	case <-updated:
	case <-time.After(5 * time.Second):
		t.Fatalf("pending resync did not complete")
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("catalog hits after resync = %d, want 2", got)
	}
}

func TestFetchImageAcceptsEndpointAddedByResync(t *testing.T) {
	client := newFakeHTTPClient().
		on(testBaseURL, jsonStep(`{"endpoints": ["old"]}`), jsonStep(`{"endpoints": ["old", "fresh"]}`)).
		on(testBaseURL+"/fresh", fakeStep{resp: fakeResponse{statusCode: 200, contentType: "image/gif", body: []byte("gif")}})
	c := newLoadedClient(t, testBaseURL, WithHTTPClient(client), WithReconcileDelay(2*time.Second))

	res, err := c.FetchImage(context.Background(), NewImageRequest("FRESH"))
	if err != nil {
		t.Fatalf("FetchImage: %v", err)
	}
	if res.Extension != "gif" {
		t.Fatalf("Extension = %q", res.Extension)
	}
}

func TestFetchImageStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{status: http.StatusForbidden, want: ErrForbidden},
		{status: http.StatusInternalServerError, want: ErrNotFound},
		{status: http.StatusNotFound, want: ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := newImageServer(t, `{"endpoints": ["triggered"]}`, tc.status)
			client := newLoadedClient(t, srv.URL)

			_, err := client.FetchImage(context.Background(), NewImageRequest("triggered"))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, ErrArcadia) {
				t.Fatalf("expected ErrArcadia family, got %v", err)
			}
			var nf *NotFoundError
			if tc.want == ErrNotFound {
				if !errors.As(err, &nf) || nf.StatusCode != tc.status {
					t.Fatalf("expected NotFoundError with status %d, got %#v", tc.status, err)
				}
			} else if errors.As(err, &nf) {
				t.Fatalf("403 must not be a NotFoundError")
			}
		})
	}
}

func TestFetchImagePrimaryURLWinsOverParam(t *testing.T) {
	client := newFakeHTTPClient().
		on(testBaseURL, jsonStep(`{"endpoints": ["triggered"]}`)).
		on(testBaseURL+"/triggered", fakeStep{resp: fakeResponse{statusCode: 200, contentType: "image/png"}})
	c := newLoadedClient(t, testBaseURL, WithHTTPClient(client))

	req := ImageRequest{
		Endpoint: "triggered",
		URL:      "http://a",
		Params:   map[string]string{"url": "http://b", "text": "hi"},
	}
	if _, err := c.FetchImage(context.Background(), req); err != nil {
		t.Fatalf("FetchImage: %v", err)
	}

	calls := client.callsTo(testBaseURL + "/triggered")
	if len(calls) != 1 {
		t.Fatalf("expected 1 image call, got %d", len(calls))
	}
	q := calls[0].query
	if q["url"] != "http://a" || q["text"] != "hi" {
		t.Fatalf("unexpected query %v", q)
	}
	if calls[0].headers["Authorization"] != "secret" || calls[0].headers["User-Agent"] != DefaultUserAgent {
		t.Fatalf("unexpected headers %v", calls[0].headers)
	}
	if req.Params["url"] != "http://b" {
		t.Fatalf("request params must not be mutated, got %v", req.Params)
	}
}

func TestFetchImageTransportErrorIsNotRetried(t *testing.T) {
	client := newFakeHTTPClient().
		on(testBaseURL, jsonStep(`{"endpoints": ["triggered"]}`)).
		on(testBaseURL+"/triggered", fakeStep{err: errors.New("connection reset")})
	c := newLoadedClient(t, testBaseURL, WithHTTPClient(client))

	_, err := c.FetchImage(context.Background(), NewImageRequest("triggered"))
	if err == nil || errors.Is(err, ErrArcadia) {
		t.Fatalf("expected plain transport error, got %v", err)
	}
	if got := len(client.callsTo(testBaseURL + "/triggered")); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestFetchImageRejectsEmptyEndpoint(t *testing.T) {
	c := New("secret", WithHTTPClient(newFakeHTTPClient()))
	defer c.Close()
	if _, err := c.FetchImage(context.Background(), NewImageRequest("  ")); !errors.Is(err, ErrInvalidEndpoint) {
		t.Fatalf("expected ErrInvalidEndpoint, got %v", err)
	}
}

func TestFetchAsNamedFile(t *testing.T) {
	srv := newImageServer(t, `{"endpoints": ["triggered"]}`, http.StatusOK)
	client := newLoadedClient(t, srv.URL)

	file, err := FetchAs(context.Background(), client, NewImageRequest("triggered"), AsNamedFile)
	if err != nil {
		t.Fatalf("FetchAs: %v", err)
	}
	if file.Name != "image.png" {
		t.Fatalf("Name = %q", file.Name)
	}
}

func TestRequestOptionsBuildParams(t *testing.T) {
	req := NewImageRequest("ship",
		WithURL("http://a"),
		WithSecondURL("http://b"),
		WithText("hello"),
		WithVariant(0),
		WithParam("", "ignored"),
	)
	q := req.query()
	if q[ParamURL] != "http://a" || q[ParamSecondURL] != "http://b" || q[ParamText] != "hello" {
		t.Fatalf("unexpected query %v", q)
	}
	if _, ok := q[ParamVariant]; ok {
		t.Fatalf("variant 0 must not be sent")
	}
	if got := NewImageRequest("ship", WithVariant(2)).query()[ParamVariant]; got != "2" {
		t.Fatalf("variant = %q", got)
	}
}

func TestExtensionFromContentType(t *testing.T) {
	cases := map[string]string{
		"image/png":                "png",
		"image/svg+xml":            "svg+xml",
		"image/jpeg; charset=utf8": "jpeg",
		"":                         "",
	}
	for in, want := range cases {
		if got := extensionFromContentType(in); got != want {
			t.Fatalf("extensionFromContentType(%q) = %q, want %q", in, got, want)
		}
	}
}
