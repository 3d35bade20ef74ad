package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestClientDoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(srv.URL, 2*time.Second, zap.NewNop())
	resp, err := c.Do(context.Background(), http.MethodGet, "/ping", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Fatalf("body = %q", body)
	}
}

func TestClientDoNonOKNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, 2*time.Second, zap.NewNop(), WithMaxRetries(2))
	resp, err := c.Do(context.Background(), http.MethodGet, "/x", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if calls != 1 {
		t.Fatalf("expected exactly one call for a non-transport-error status, got %d", calls)
	}
}

func TestStreamRequestAbortClosesBody(t *testing.T) {
	blockCh := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		_, _ = w.Write([]byte("chunk1"))
		if flusher != nil {
			flusher.Flush()
		}
		<-blockCh
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, zap.NewNop())
	resp, cancel, err := c.StreamRequest(context.Background(), http.MethodGet, "/stream", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 6)
	_, _ = io.ReadFull(resp.Body, buf)

	cancel()
	close(blockCh)

	_, err = resp.Body.Read(make([]byte, 1))
	if err == nil {
		t.Fatal("expected read after abort to fail")
	}
}

func TestIdleReaderTimesOut(t *testing.T) {
	pr, pw := io.Pipe() // never written to
	r := NewIdleReader(pr, 10*time.Millisecond)
	defer func() { r.Close(); pw.Close() }()
	_, err := r.Read(make([]byte, 10))
	if err != ErrIdleTimeout {
		t.Fatalf("err = %v, want ErrIdleTimeout", err)
	}
}

func TestIdleReaderPassesThrough(t *testing.T) {
	r := NewIdleReader(strings.NewReader("hello"), time.Second)
	defer r.Close()
	buf := make([]byte, 5)
	n, err := r.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatal(err)
	}
	if n != 5 || string(buf) != "hello" {
		t.Fatalf("n=%d buf=%q", n, buf)
	}
}
