// Package streamguard implements the full-duplex streaming guard (C7):
// it consumes upstream frames, feeds incremental output into the output
// scanner pipeline in buffered windows, and decides when to stop the
// upstream early and emit a dialect-correct blocked frame.
package streamguard

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ngoclaw/ollamaguard/internal/scanner"
	"github.com/ngoclaw/ollamaguard/internal/upstream"
)

// State is the guard's lifecycle: Streaming -> (either) Blocked | Drained.
type State int

const (
	Streaming State = iota
	Blocked
	Drained
)

const defaultIdleTimeout = 60 * time.Second

// Guard runs the windowed output-scan loop over one streaming response. It
// borrows the scanner pipeline for the duration of a single response and
// holds the upstream-abort handle so it can stop generation early.
type Guard struct {
	kind            Kind
	pipeline        *scanner.Pipeline
	outputGuardOn   bool
	windowThreshold int
	idleTimeout     time.Duration

	abort     context.CancelFunc
	closeOnce sync.Once
	reader    *upstream.IdleReader

	state       State
	accumulated strings.Builder
}

// New builds a Guard for one response. abort is the upstream-abort handle
// from the client that issued the request (internal/upstream.StreamRequest).
func New(kind Kind, pipeline *scanner.Pipeline, outputGuardOn bool, windowThreshold int, abort context.CancelFunc) *Guard {
	if windowThreshold <= 0 {
		windowThreshold = 160
	}
	return &Guard{
		kind:            kind,
		pipeline:        pipeline,
		outputGuardOn:   outputGuardOn,
		windowThreshold: windowThreshold,
		idleTimeout:     defaultIdleTimeout,
		abort:           abort,
	}
}

// State returns the guard's current lifecycle state.
func (g *Guard) State() State { return g.state }

func (g *Guard) closeUpstream() {
	g.closeOnce.Do(func() {
		if g.reader != nil {
			g.reader.Close()
		}
		if g.abort != nil {
			g.abort()
		}
	})
}

// Run drives the loop in spec.md §4.6: read upstream frames, forward them
// verbatim, and intervene with a blocked terminal frame if the output
// pipeline trips. It guarantees the upstream is closed exactly once on
// every exit path.
func (g *Guard) Run(ctx context.Context, upstreamBody io.Reader, w io.Writer, model string) error {
	defer g.closeUpstream()

	isSSE := g.kind == OpenAIChat || g.kind == OpenAICompletion

	if g.kind == OpenAIChat {
		if err := emitRoleDelta(w, g.kind, model); err != nil {
			return err
		}
	}

	g.reader = upstream.NewIdleReader(upstreamBody, g.idleTimeout)
	sc := bufio.NewScanner(g.reader)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for sc.Scan() {
		select {
		case <-ctx.Done():
			g.state = Drained
			_ = emitServerError(w, g.kind, model)
			g.closeUpstream()
			return ctx.Err()
		default:
		}

		line := sc.Text()

		var rawJSON string
		if isSSE {
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				if g.outputGuardOn && g.accumulated.Len() > 0 {
					verdict := g.pipeline.ScanOutput(ctx, "", g.accumulated.String())
					if !verdict.Allowed {
						return g.blockAndClose(w, model, verdict)
					}
				}
				return g.finishNormal(w, model, isSSE, false)
			}
			rawJSON = data
		} else {
			if strings.TrimSpace(line) == "" {
				continue
			}
			rawJSON = line
		}

		text, done, ok := extractText(g.kind, []byte(rawJSON))
		if !ok {
			if err := g.writeRaw(w, line, isSSE); err != nil {
				return err
			}
			continue
		}

		g.accumulated.WriteString(text)

		if g.outputGuardOn && (g.accumulated.Len() >= g.windowThreshold || (done && g.accumulated.Len() > 0)) {
			verdict := g.pipeline.ScanOutput(ctx, "", g.accumulated.String())
			if !verdict.Allowed {
				return g.blockAndClose(w, model, verdict)
			}
			g.accumulated.Reset()
		}

		if err := g.writeRaw(w, line, isSSE); err != nil {
			return err
		}

		if done {
			return g.finishNormal(w, model, isSSE, true)
		}
	}

	if err := sc.Err(); err != nil {
		g.state = Drained
		_ = emitServerError(w, g.kind, model)
		g.closeUpstream()
		return err
	}

	// Upstream closed without an explicit done/[DONE] frame.
	if g.outputGuardOn && g.accumulated.Len() > 0 {
		verdict := g.pipeline.ScanOutput(ctx, "", g.accumulated.String())
		if !verdict.Allowed {
			return g.blockAndClose(w, model, verdict)
		}
	}
	return g.finishNormal(w, model, isSSE, false)
}

func (g *Guard) blockAndClose(w io.Writer, model string, verdict scanner.Verdict) error {
	g.state = Blocked
	failed := verdict.FailedScanners(g.pipeline.OutputNames())
	err := emitBlocked(w, g.kind, model, failed)
	g.closeUpstream()
	return err
}

// finishNormal writes the dialect's normal completion marker when the
// stream drained without being blocked. alreadyForwardedDone indicates the
// per-frame loop already forwarded a native done:true / OpenAI
// finish_reason frame verbatim, so only the SSE [DONE] sentinel (for
// OpenAI dialects) still needs writing.
func (g *Guard) finishNormal(w io.Writer, model string, isSSE, alreadyForwardedDone bool) error {
	g.state = Drained
	if isSSE {
		if err := writeSSEDone(w); err != nil {
			g.closeUpstream()
			return err
		}
	} else if !alreadyForwardedDone {
		if err := writeNDJSON(w, map[string]any{"model": model, "done": true}); err != nil {
			g.closeUpstream()
			return err
		}
	}
	g.closeUpstream()
	return nil
}

func (g *Guard) writeRaw(w io.Writer, line string, isSSE bool) error {
	if isSSE {
		_, err := fmt.Fprintf(w, "%s\n\n", line)
		return err
	}
	_, err := fmt.Fprintf(w, "%s\n", line)
	return err
}
