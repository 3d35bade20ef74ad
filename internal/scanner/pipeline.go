package scanner

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pipeline is an ordered, immutable sequence of scanners applied to one
// string. It exclusively owns its scanners; they are not shared across
// pipelines.
type Pipeline struct {
	input  []Scanner
	output []Scanner

	failFast          bool
	blockOnGuardError bool

	// Bounds how many scanner invocations run concurrently across all
	// pipeline callers, so CPU-bound scanner inference never blocks the
	// request-serving scheduler.
	workers *semaphore.Weighted

	// Per-scanner locks: every scanner gets at most one in-flight call at
	// a time, so one that is not concurrency-safe is covered too.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithFailFast enables or disables fail-fast mode. The engine defaults to on.
func WithFailFast(enabled bool) Option {
	return func(p *Pipeline) { p.failFast = enabled }
}

// WithBlockOnGuardError controls whether a scanner error is treated as
// passed=false (true, fail-closed) or passed=true (false, fail-open).
func WithBlockOnGuardError(block bool) Option {
	return func(p *Pipeline) { p.blockOnGuardError = block }
}

// WithWorkerLimit bounds concurrent scanner invocations dispatched through
// this pipeline. Zero or negative disables the bound.
func WithWorkerLimit(n int64) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = semaphore.NewWeighted(n)
		}
	}
}

// New builds a Pipeline from already-filtered, already-ordered scanner
// lists. Disabled scanners must already be excluded by the caller (the
// config layer resolves enable/disable before construction).
func New(input, output []Scanner, opts ...Option) *Pipeline {
	p := &Pipeline{
		input:             input,
		output:            output,
		failFast:          true,
		blockOnGuardError: false,
		locks:             make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ScanInput runs the input scanner list over text.
func (p *Pipeline) ScanInput(ctx context.Context, text string) Verdict {
	return p.run(ctx, p.input, text)
}

// ScanOutput runs the output scanner list over text. prompt is accepted per
// the contract so output scanners could in principle condition on it; the
// built-in scanners in this repo ignore it.
func (p *Pipeline) ScanOutput(ctx context.Context, prompt, text string) Verdict {
	return p.run(ctx, p.output, text)
}

func (p *Pipeline) run(ctx context.Context, scanners []Scanner, text string) Verdict {
	verdict := Verdict{
		Allowed:   true,
		Sanitised: text,
		Details:   make(map[string]ScanDetail, len(scanners)),
	}

	current := text
	for _, s := range scanners {
		desc := s.Descriptor()

		sanitised, passed, score, err := p.invoke(ctx, s, current)
		changed := sanitised != current
		if sanitised != "" {
			current = sanitised
		}

		if err != nil {
			if p.blockOnGuardError {
				passed = false
			} else {
				passed = true
			}
			verdict.Details[desc.Name] = ScanDetail{Passed: passed, RiskScore: score, SanitisedChange: changed, Error: err.Error()}
		} else {
			verdict.Details[desc.Name] = ScanDetail{Passed: passed, RiskScore: score, SanitisedChange: changed}
		}

		if !passed && desc.Blocking {
			verdict.Allowed = false
			if p.failFast {
				break
			}
		}
	}

	verdict.Sanitised = current
	return verdict
}

// invoke dispatches one scanner call through the worker-pool semaphore (if
// configured) and the scanner's own serialization lock.
func (p *Pipeline) invoke(ctx context.Context, s Scanner, text string) (string, bool, float64, error) {
	if p.workers != nil {
		if err := p.workers.Acquire(ctx, 1); err != nil {
			return text, false, 0, err
		}
		defer p.workers.Release(1)
	}

	lock := p.lockFor(s.Descriptor().Name)
	lock.Lock()
	defer lock.Unlock()

	return s.Scan(ctx, text)
}

func (p *Pipeline) lockFor(name string) *sync.Mutex {
	p.locksMu.Lock()
	defer p.locksMu.Unlock()
	l, ok := p.locks[name]
	if !ok {
		l = &sync.Mutex{}
		p.locks[name] = l
	}
	return l
}

// InputNames returns the configured input scanner names in pipeline order.
func (p *Pipeline) InputNames() []string {
	names := make([]string, len(p.input))
	for i, s := range p.input {
		names[i] = s.Descriptor().Name
	}
	return names
}

// OutputNames returns the configured output scanner names in pipeline order.
func (p *Pipeline) OutputNames() []string {
	names := make([]string, len(p.output))
	for i, s := range p.output {
		names[i] = s.Descriptor().Name
	}
	return names
}
