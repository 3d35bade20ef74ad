// Package orchestrator implements C6: the per-dialect request pipeline
// that ties the scanner pipeline, result cache, admission controller and
// upstream client together; the streaming guard is run by internal/httpapi
// on the handoff Run returns. One Orchestrator instance is shared by
// every dialect's HTTP handler in internal/httpapi; the dialect-specific
// differences (prompt extraction, response shape, streaming frame kind)
// are parameters, not separate types, per spec.md §4.5's "all
// orchestrators share the same pseudocode".
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/ollamaguard/internal/admission"
	"github.com/ngoclaw/ollamaguard/internal/cache"
	"github.com/ngoclaw/ollamaguard/internal/scanner"
	"github.com/ngoclaw/ollamaguard/internal/upstream"
	"github.com/ngoclaw/ollamaguard/pkg/apperrors"
)

// Dialect tags which wire protocol a request arrived in.
type Dialect int

const (
	DialectNative Dialect = iota
	DialectOpenAI
)

// Kind tags which native endpoint shape a request maps to; OpenAI-dialect
// requests are translated to one of these before being forwarded.
type Kind int

const (
	KindGenerate Kind = iota
	KindChat
)

// Options toggles the policy-level behaviour spec.md §4.5/§6 describe.
type Options struct {
	EnableInputGuard  bool
	EnableOutputGuard bool
	InlineGuardErrors bool
	RequestTimeout    time.Duration
	WindowThreshold   int
}

// Orchestrator wires the scanner pipeline, cache, admission controller,
// and upstream client for every dialect's handler.
type Orchestrator struct {
	pipeline  atomic.Pointer[scanner.Pipeline]
	Cache     *cache.Manager
	Admission *admission.Controller
	Upstream  *upstream.Client
	Logger    *zap.Logger
	Opts      Options
}

// New builds an Orchestrator from its collaborators.
func New(pipeline *scanner.Pipeline, c *cache.Manager, adm *admission.Controller, up *upstream.Client, logger *zap.Logger, opts Options) *Orchestrator {
	o := &Orchestrator{Cache: c, Admission: adm, Upstream: up, Logger: logger, Opts: opts}
	o.pipeline.Store(pipeline)
	return o
}

// Pipeline returns the currently active scanner pipeline. It's a snapshot:
// SetPipeline may swap in a new one concurrently, but any request already
// in flight keeps using the pipeline it started with.
func (o *Orchestrator) Pipeline() *scanner.Pipeline {
	return o.pipeline.Load()
}

// SetPipeline hot-swaps the scanner pipeline, used by the config file
// watcher's live-reconfiguration path (spec.md §4.2 / SPEC_FULL.md §6).
func (o *Orchestrator) SetPipeline(p *scanner.Pipeline) {
	o.pipeline.Store(p)
}

// Request is the dialect-agnostic envelope the HTTP layer builds before
// calling into the orchestrator (spec.md §3's "Request envelope").
type Request struct {
	Model        string
	Dialect      Dialect
	Kind         Kind
	Stream       bool
	ScanText     string // the text the input pipeline evaluates, per dialect policy (SPEC_FULL.md §4.5)
	NativeBody   []byte // the JSON body to forward upstream, already in native shape
	UpstreamPath string // "/api/generate" or "/api/chat"
}

// Outcome carries everything the HTTP layer needs to render a response: a
// non-streaming body, a streaming handoff, or a structured block/error.
type Outcome struct {
	// One of the following three is populated.
	Blocked        *BlockedResult
	NonStream      []byte // raw native JSON body returned by the backend
	StreamUpstream *StreamHandoff

	Language string
}

// BlockedResult carries everything needed to render either an inline-guard
// success response or an HTTP 451, in the caller's dialect.
type BlockedResult struct {
	BlockType string // "input_blocked" or "output_blocked"
	Verdict   scanner.Verdict
	Failed    []string
	Language  string
}

// StreamHandoff carries the live upstream body and abort handle so the
// HTTP layer can run it through internal/streamguard.
type StreamHandoff struct {
	Body  io.ReadCloser
	Abort context.CancelFunc
}

// Run executes spec.md §4.5's pseudocode for one non-streaming-admission
// decision: cache lookup, input scan, admission, and upstream forward. It
// does not itself translate dialects or run the streaming guard — callers
// in internal/httpapi do that with the Kind/Dialect recorded on req and
// the upstream body/abort handle in Outcome.StreamUpstream.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Outcome, error) {
	lang := DetectLanguage(req.ScanText)

	if o.Opts.EnableInputGuard && req.ScanText != "" {
		verdict, err := o.scanCached(ctx, "input", req.ScanText, o.Pipeline().ScanInput)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, "input scan failed", err)
		}
		if !verdict.Allowed {
			return &Outcome{
				Language: lang,
				Blocked: &BlockedResult{
					BlockType: "input_blocked",
					Verdict:   verdict,
					Failed:    verdict.FailedScanners(o.Pipeline().InputNames()),
					Language:  lang,
				},
			}, nil
		}
	}

	admitted, err := o.Admission.Execute(ctx, req.Model, requestIDFrom(ctx), o.Opts.RequestTimeout, func(opCtx context.Context) (any, error) {
		return o.forward(opCtx, req)
	})
	if err != nil {
		switch err {
		case admission.ErrQueueFull:
			return nil, apperrors.Wrap(apperrors.CodeQueueFull, "model queue is full", err)
		case admission.ErrTimeout:
			return nil, apperrors.Wrap(apperrors.CodeTimeout, "timed out waiting for a model slot", err)
		default:
			return nil, err
		}
	}

	switch v := admitted.(type) {
	case *StreamHandoff:
		return &Outcome{Language: lang, StreamUpstream: v}, nil
	case []byte:
		return o.finishNonStream(ctx, req, v, lang)
	default:
		return nil, apperrors.NewInternalError("unexpected admission result type")
	}
}

// forward issues the upstream call. Streaming requests return a
// *StreamHandoff immediately (scanning happens in the caller's streaming
// guard); non-streaming requests return the raw response body.
func (o *Orchestrator) forward(ctx context.Context, req Request) (any, error) {
	if req.Stream {
		resp, abort, err := o.Upstream.StreamRequest(ctx, http.MethodPost, req.UpstreamPath, strings.NewReader(string(req.NativeBody)), map[string]string{"Content-Type": "application/json"})
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeUpstreamError, "failed to reach upstream", err)
		}
		if resp.StatusCode >= 400 {
			defer resp.Body.Close()
			abort()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return nil, apperrors.Wrap(apperrors.CodeUpstreamError, fmt.Sprintf("upstream returned status %d: %s", resp.StatusCode, body), nil)
		}
		return &StreamHandoff{Body: resp.Body, Abort: abort}, nil
	}

	resp, err := o.Upstream.Do(ctx, http.MethodPost, req.UpstreamPath, strings.NewReader(string(req.NativeBody)), map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUpstreamError, "failed to reach upstream", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUpstreamError, "failed to read upstream response", err)
	}
	if resp.StatusCode >= 400 {
		return nil, apperrors.Wrap(apperrors.CodeUpstreamError, fmt.Sprintf("upstream returned status %d: %s", resp.StatusCode, body), nil)
	}
	return body, nil
}

// finishNonStream runs the output scan over a non-streaming backend
// response and renders the outcome.
func (o *Orchestrator) finishNonStream(ctx context.Context, req Request, body []byte, lang string) (*Outcome, error) {
	text, err := extractNativeText(req.Kind, body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidUpstream, "could not parse upstream response", err)
	}

	if o.Opts.EnableOutputGuard && text != "" {
		verdict, err := o.scanCached(ctx, "output", text, func(ctx context.Context, t string) scanner.Verdict {
			return o.Pipeline().ScanOutput(ctx, "", t)
		})
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, "output scan failed", err)
		}
		if !verdict.Allowed {
			return &Outcome{
				Language: lang,
				Blocked: &BlockedResult{
					BlockType: "output_blocked",
					Verdict:   verdict,
					Failed:    verdict.FailedScanners(o.Pipeline().OutputNames()),
					Language:  lang,
				},
			}, nil
		}
	}

	return &Outcome{Language: lang, NonStream: body}, nil
}

// scanCached runs scan through the result cache: a verdict is looked up by
// content hash and, on miss, computed and stored. Cache failures are never
// fatal — scanCached falls through to a direct scan on any cache error.
func (o *Orchestrator) scanCached(ctx context.Context, scanKind, text string, scan func(context.Context, string) scanner.Verdict) (scanner.Verdict, error) {
	if o.Cache == nil {
		return scan(ctx, text), nil
	}

	key := cache.Key(scanKind, text)
	raw, err := o.Cache.GetOrCompute(ctx, key, func(computeCtx context.Context) ([]byte, error) {
		verdict := scan(computeCtx, text)
		return json.Marshal(verdict)
	})
	if err != nil {
		// Cache machinery failure (not a scan error): fall back to an
		// uncached scan rather than fail the request, per spec.md §7 class 1.
		o.Logger.Debug("orchestrator: cache miss-path failed, scanning directly", zap.Error(err))
		return scan(ctx, text), nil
	}

	var verdict scanner.Verdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		o.Logger.Debug("orchestrator: cached verdict corrupt, rescanning", zap.Error(err))
		return scan(ctx, text), nil
	}
	return verdict, nil
}

type requestIDKey struct{}

// WithRequestID attaches a request id to ctx for admission-controller logging.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// extractNativeText pulls the generated text out of a non-streaming native
// response body, per Kind.
func extractNativeText(kind Kind, body []byte) (string, error) {
	switch kind {
	case KindGenerate:
		var r struct {
			Response string `json:"response"`
		}
		if err := json.Unmarshal(body, &r); err != nil {
			return "", err
		}
		return r.Response, nil
	case KindChat:
		var r struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}
		if err := json.Unmarshal(body, &r); err != nil {
			return "", err
		}
		return r.Message.Content, nil
	default:
		return "", fmt.Errorf("orchestrator: unknown kind %d", kind)
	}
}

// InlineMessage renders the markdown explanation shown in inline-guard
// mode, opening with the localized summary line for the caller's detected
// language. Per spec.md §9's open question, the reference implementation's
// blank-line padding before this block is treated as an undefined
// presentation detail and is omitted here.
func (b *BlockedResult) InlineMessage() string {
	key := msgInputBlocked
	if b.BlockType == "output_blocked" {
		key = msgOutputBlocked
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\n**Content policy violation**: blocked by `%s`.\n", localize(b.Language, key), strings.Join(b.Failed, "`, `"))
	return sb.String()
}

// LocalizedMessage exposes this package's per-language copy to
// internal/httpapi, so a queue-full/timeout/upstream-error body is worded
// in the caller's detected language rather than always in English.
func LocalizedMessage(lang string, code apperrors.ErrorCode) string {
	switch code {
	case apperrors.CodeQueueFull:
		return localize(lang, msgServerBusy)
	case apperrors.CodeTimeout:
		return localize(lang, msgRequestTimeout)
	case apperrors.CodeUpstreamError, apperrors.CodeInvalidUpstream:
		return localize(lang, msgUpstreamError)
	case apperrors.CodeInputBlocked:
		return localize(lang, msgInputBlocked)
	case apperrors.CodeOutputBlocked:
		return localize(lang, msgOutputBlocked)
	default:
		return ""
	}
}
