package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperifyio/trialharvest/internal/cache"
)

func TestGet_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	c := &Client{UserAgent: "trialharvest-test", MaxAttempts: 2, PerRequestTimeout: 2 * time.Second}
	body, ct, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct == "" || string(body) == "" {
		t.Fatalf("expected content type and body")
	}
}

func TestGet_RetryOn5xx(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(502)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 2, PerRequestTimeout: 2 * time.Second}
	if _, _, err := c.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestGet_FailureIsTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 1, PerRequestTimeout: 2 * time.Second}
	_, _, err := c.Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error")
	}
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *fetch.Error, got %T", err)
	}
	if fe.URL != srv.URL {
		t.Fatalf("error URL = %q", fe.URL)
	}
}

func TestGet_RejectsNonHTMLContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 1, PerRequestTimeout: 2 * time.Second}
	if _, _, err := c.Get(context.Background(), srv.URL); err == nil {
		t.Fatal("expected content-type rejection")
	}
}

func TestGet_Conditional304_ServesCachedBody(t *testing.T) {
	etag := `"abc123"`
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "text/html")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		_, _ = w.Write([]byte("first body"))
	}))
	defer srv.Close()

	c := &Client{
		MaxAttempts:       1,
		PerRequestTimeout: 2 * time.Second,
		Cache:             &cache.HTTPCache{Dir: t.TempDir()},
	}
	first, _, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, _, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("cached body mismatch: %q vs %q", first, second)
	}
	if calls != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls)
	}
}

func TestGet_Conditional304_MissingCachedBodyRefetches(t *testing.T) {
	etag := `"abc123"`
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "text/html")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		_, _ = w.Write([]byte("fresh body"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := &Client{
		MaxAttempts:       1,
		PerRequestTimeout: 2 * time.Second,
		Cache:             &cache.HTTPCache{Dir: dir},
	}
	if _, _, err := c.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	// Lose the cached body but keep the validators, so the next request
	// still goes out conditionally and comes back 304.
	bodies, err := filepath.Glob(filepath.Join(dir, "*.body"))
	if err != nil || len(bodies) == 0 {
		t.Fatalf("expected cached body files, got %v (%v)", bodies, err)
	}
	for _, p := range bodies {
		if err := os.Remove(p); err != nil {
			t.Fatalf("remove cached body: %v", err)
		}
	}

	body, _, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if string(body) != "fresh body" {
		t.Fatalf("body = %q, want refetched content", body)
	}
	if calls != 3 {
		t.Fatalf("expected 3 upstream calls (initial, 304, refetch), got %d", calls)
	}
}
