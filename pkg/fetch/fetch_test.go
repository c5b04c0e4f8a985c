package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchReadsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("index content")) //nolint:errcheck
	}))
	defer srv.Close()

	body, err := NewHTTPFetcher().Fetch(context.Background(), srv.URL+"/index.json")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil || string(data) != "index content" {
		t.Errorf("body = %q, %v", data, err)
	}
}

func TestFetchRejectsNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := NewHTTPFetcher().Fetch(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestFetchHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	if _, err := NewHTTPFetcher().Fetch(ctx, srv.URL); err == nil {
		t.Error("cancelled fetch should fail")
	}
}
