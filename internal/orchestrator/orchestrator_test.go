package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/ollamaguard/internal/admission"
	"github.com/ngoclaw/ollamaguard/internal/cache"
	"github.com/ngoclaw/ollamaguard/internal/scanner"
	"github.com/ngoclaw/ollamaguard/internal/scanner/builtin"
	"github.com/ngoclaw/ollamaguard/internal/upstream"
)

func banPipeline(words []string) *scanner.Pipeline {
	in := builtin.NewBanSubstrings(scanner.AppliesInput, words, true)
	out := builtin.NewBanSubstrings(scanner.AppliesOutput, words, true)
	return scanner.New([]scanner.Scanner{in}, []scanner.Scanner{out})
}

func newTestOrchestrator(t *testing.T, backendHandler http.HandlerFunc, pipeline *scanner.Pipeline, opts Options) (*Orchestrator, func()) {
	t.Helper()
	srv := httptest.NewServer(backendHandler)

	up := upstream.New(srv.URL, 2*time.Second, zap.NewNop())
	adm := admission.New(zap.NewNop(), admission.WithDefaultParallel(4), admission.WithDefaultQueueLimit(8))
	lru, err := cache.NewLocalLRU(64)
	if err != nil {
		t.Fatalf("NewLocalLRU: %v", err)
	}
	cacheManager := cache.NewManager(lru, time.Minute, 0)

	o := New(pipeline, cacheManager, adm, up, zap.NewNop(), opts)
	return o, srv.Close
}

func TestRunBlocksOnInputScan(t *testing.T) {
	o, cleanup := newTestOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("backend should never be reached when input is blocked")
	}, banPipeline([]string{"forbidden"}), Options{EnableInputGuard: true, EnableOutputGuard: true, RequestTimeout: time.Second})
	defer cleanup()

	out, err := o.Run(context.Background(), Request{
		Model:        "llama3",
		Dialect:      DialectNative,
		Kind:         KindGenerate,
		ScanText:     "this prompt is forbidden",
		NativeBody:   []byte(`{"model":"llama3","prompt":"this prompt is forbidden"}`),
		UpstreamPath: "/api/generate",
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.Blocked == nil {
		t.Fatal("expected a blocked outcome")
	}
	if out.Blocked.BlockType != "input_blocked" {
		t.Fatalf("BlockType = %q, want input_blocked", out.Blocked.BlockType)
	}
}

func TestRunAllowsCleanNonStreamRequest(t *testing.T) {
	o, cleanup := newTestOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llama3","response":"a clean answer","done":true}`))
	}, banPipeline([]string{"forbidden"}), Options{EnableInputGuard: true, EnableOutputGuard: true, RequestTimeout: time.Second})
	defer cleanup()

	out, err := o.Run(context.Background(), Request{
		Model:        "llama3",
		Dialect:      DialectNative,
		Kind:         KindGenerate,
		ScanText:     "say hello",
		NativeBody:   []byte(`{"model":"llama3","prompt":"say hello"}`),
		UpstreamPath: "/api/generate",
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.Blocked != nil {
		t.Fatalf("unexpected block: %+v", out.Blocked)
	}
	if string(out.NonStream) == "" {
		t.Fatal("expected a non-stream response body")
	}
}

func TestRunBlocksOnOutputScan(t *testing.T) {
	o, cleanup := newTestOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llama3","response":"this is forbidden","done":true}`))
	}, banPipeline([]string{"forbidden"}), Options{EnableInputGuard: true, EnableOutputGuard: true, RequestTimeout: time.Second})
	defer cleanup()

	out, err := o.Run(context.Background(), Request{
		Model:        "llama3",
		Dialect:      DialectNative,
		Kind:         KindGenerate,
		ScanText:     "say something",
		NativeBody:   []byte(`{"model":"llama3","prompt":"say something"}`),
		UpstreamPath: "/api/generate",
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.Blocked == nil || out.Blocked.BlockType != "output_blocked" {
		t.Fatalf("expected output_blocked outcome, got %+v", out.Blocked)
	}
}

func TestRunStreamingHandsOffUpstreamBody(t *testing.T) {
	o, cleanup := newTestOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte(`{"model":"llama3","response":"hi","done":true}` + "\n"))
	}, banPipeline([]string{"forbidden"}), Options{EnableInputGuard: true, EnableOutputGuard: true, RequestTimeout: time.Second})
	defer cleanup()

	out, err := o.Run(context.Background(), Request{
		Model:        "llama3",
		Dialect:      DialectNative,
		Kind:         KindGenerate,
		Stream:       true,
		ScanText:     "say hi",
		NativeBody:   []byte(`{"model":"llama3","prompt":"say hi","stream":true}`),
		UpstreamPath: "/api/generate",
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.StreamUpstream == nil {
		t.Fatal("expected a streaming handoff")
	}
	out.StreamUpstream.Body.Close()
}

func TestSetPipelineSwapsLiveScanner(t *testing.T) {
	o, cleanup := newTestOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"llama3","response":"ok","done":true}`))
	}, banPipeline([]string{"forbidden"}), Options{EnableInputGuard: true, RequestTimeout: time.Second})
	defer cleanup()

	if o.Pipeline().InputNames()[0] == "" {
		t.Fatal("expected a named input scanner")
	}

	o.SetPipeline(banPipeline([]string{"newword"}))

	out, err := o.Run(context.Background(), Request{
		Model:        "llama3",
		Dialect:      DialectNative,
		Kind:         KindGenerate,
		ScanText:     "this prompt is forbidden",
		NativeBody:   []byte(`{"model":"llama3","prompt":"this prompt is forbidden"}`),
		UpstreamPath: "/api/generate",
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.Blocked != nil {
		t.Fatal("old banned word should no longer block after SetPipeline swapped the scanner list")
	}
}
