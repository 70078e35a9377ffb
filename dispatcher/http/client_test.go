package http_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/conduitrun/conduit/backoff"
	"github.com/conduitrun/conduit/dispatcher"
	conduithttp "github.com/conduitrun/conduit/dispatcher/http"
)

func TestClient_DispatchPostsPayload(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotBody = buf
		gotHeader = r.Header.Get("X-Tenant")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := conduithttp.New(srv.URL, conduithttp.WithHeader("X-Tenant", "acme"))
	if err := c.Dispatch(context.Background(), []byte(`{"event":{"type":"foo"}}`)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if string(gotBody) != `{"event":{"type":"foo"}}` {
		t.Fatalf("body = %q", gotBody)
	}
	if gotHeader != "acme" {
		t.Fatalf("header = %q, want acme", gotHeader)
	}
}

func TestClient_DispatchFailsOnNon2xx(t *testing.T) {
	t.Parallel()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := conduithttp.New(srv.URL, conduithttp.WithRetry(backoff.NewConstant(0), 2))
	if err := c.Dispatch(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3 (initial attempt plus 2 retries)", calls)
	}
}

func TestClient_DispatchDoesNotRetry4xx(t *testing.T) {
	t.Parallel()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	c := conduithttp.New(srv.URL, conduithttp.WithRetry(backoff.NewConstant(0), 2))
	if err := c.Dispatch(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected an error for a 400 response")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (a 4xx is a permanent rejection, not retried)", calls)
	}
}

func TestClient_DispatchRejectsDelay(t *testing.T) {
	t.Parallel()

	c := conduithttp.New("http://example.invalid")
	err := c.Dispatch(context.Background(), []byte("x"), dispatcher.WithDelay(50))
	if err == nil {
		t.Fatal("expected delayed dispatch to be rejected")
	}
}
