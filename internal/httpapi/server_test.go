package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ngoclaw/ollamaguard/internal/admission"
	"github.com/ngoclaw/ollamaguard/internal/cache"
	"github.com/ngoclaw/ollamaguard/internal/config"
	"github.com/ngoclaw/ollamaguard/internal/orchestrator"
	"github.com/ngoclaw/ollamaguard/internal/scanner"
	"github.com/ngoclaw/ollamaguard/internal/scanner/builtin"
	"github.com/ngoclaw/ollamaguard/internal/upstream"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func banPipeline(words []string) *scanner.Pipeline {
	in := builtin.NewBanSubstrings(scanner.AppliesInput, words, true)
	out := builtin.NewBanSubstrings(scanner.AppliesOutput, words, true)
	return scanner.New([]scanner.Scanner{in}, []scanner.Scanner{out})
}

// newTestRouter wires a real orchestrator against an httptest backend and
// returns a gin engine driven directly, bypassing net/http.Server.
func newTestRouter(t *testing.T, backend http.HandlerFunc) (*gin.Engine, func()) {
	t.Helper()
	srv := httptest.NewServer(backend)

	up := upstream.New(srv.URL, 2*time.Second, zap.NewNop())
	adm := admission.New(zap.NewNop(), admission.WithDefaultParallel(4), admission.WithDefaultQueueLimit(8))
	lru, err := cache.NewLocalLRU(64)
	if err != nil {
		t.Fatalf("NewLocalLRU: %v", err)
	}
	cacheManager := cache.NewManager(lru, time.Minute, 0)
	pipeline := banPipeline([]string{"forbidden"})

	orch := orchestrator.New(pipeline, cacheManager, adm, up, zap.NewNop(), orchestrator.Options{
		EnableInputGuard:  true,
		EnableOutputGuard: true,
		RequestTimeout:    2 * time.Second,
		WindowThreshold:   160,
	})

	cfg := &config.Config{EnableInputGuard: true, EnableOutputGuard: true, WindowThreshold: 160}

	h := &handlers{deps: Deps{Orchestrator: orch, Admission: adm, Upstream: up, Config: cfg, Logger: zap.NewNop()}}
	router := gin.New()
	registerRoutes(router, h)

	return router, srv.Close
}

func TestNativeGenerateBlockedReturns451(t *testing.T) {
	router, cleanup := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("backend should not be reached when the prompt is blocked")
	})
	defer cleanup()

	body, _ := json.Marshal(map[string]any{"model": "llama3", "prompt": "this is forbidden", "stream": false})
	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnavailableForLegalReasons {
		t.Fatalf("status = %d, want 451", rec.Code)
	}
	if rec.Header().Get("X-Block-Type") != "input_blocked" {
		t.Fatalf("X-Block-Type = %q", rec.Header().Get("X-Block-Type"))
	}
}

func TestNativeGenerateCleanRequestPassesThrough(t *testing.T) {
	router, cleanup := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llama3","response":"a clean answer","done":true}`))
	})
	defer cleanup()

	body, _ := json.Marshal(map[string]any{"model": "llama3", "prompt": "say hello", "stream": false})
	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["response"] != "a clean answer" {
		t.Fatalf("response = %v", resp["response"])
	}
}

func TestOpenAIChatCompletionsMissingMessagesRejected(t *testing.T) {
	router, cleanup := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("backend should not be reached for a malformed request")
	})
	defer cleanup()

	body, _ := json.Marshal(map[string]any{"model": "llama3", "messages": []any{}})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body=%s", rec.Code, rec.Body.String())
	}
}

func TestOpenAIChatCompletionsCleanRequestTranslatesResponse(t *testing.T) {
	router, cleanup := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"hi there"},"done":true}`))
	})
	defer cleanup()

	body, _ := json.Marshal(map[string]any{
		"model":    "llama3",
		"messages": []map[string]string{{"role": "user", "content": "hello"}},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["object"] != "chat.completion" {
		t.Fatalf("object = %v, want chat.completion", resp["object"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, cleanup := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {})
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
