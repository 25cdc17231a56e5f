package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRestyClientSendsHeadersAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("text"); got != "hi there" {
			t.Errorf("text = %q", got)
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("png"))
	}))
	defer srv.Close()

	client := NewRestyClient(0)
	resp, err := client.Get(context.Background(), srv.URL+"/triggered",
		map[string]string{"Authorization": "token"},
		map[string]string{"text": "hi there"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode())
	}
	if resp.ContentType() != "image/png" {
		t.Fatalf("content type = %q", resp.ContentType())
	}
	if string(resp.Body()) != "png" {
		t.Fatalf("body = %q", resp.Body())
	}
}

func TestRestyClientHonoursContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewRestyClient(0).Get(ctx, srv.URL, nil, nil)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if ctx.Err() == nil {
		t.Fatalf("expected context to be expired, got err %v", err)
	}
}

func TestRestyClientClosed(t *testing.T) {
	client := NewRestyClient(time.Second)
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !client.Closed() {
		t.Fatalf("expected client to report closed")
	}
	if _, err := client.Get(context.Background(), "http://127.0.0.1:1", nil, nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
