package scanner

import (
	"context"
	"errors"
	"testing"
)

type stubScanner struct {
	desc Descriptor
	fn   func(string) (string, bool, float64, error)
}

func (s stubScanner) Descriptor() Descriptor { return s.desc }
func (s stubScanner) Scan(_ context.Context, text string) (string, bool, float64, error) {
	return s.fn(text)
}

func passScanner(name string) stubScanner {
	return stubScanner{
		desc: Descriptor{Name: name, Applies: AppliesEither},
		fn:   func(t string) (string, bool, float64, error) { return t, true, 0, nil },
	}
}

func failScanner(name string) stubScanner {
	return stubScanner{
		desc: Descriptor{Name: name, Applies: AppliesEither, Blocking: true},
		fn:   func(t string) (string, bool, float64, error) { return t, false, 1, nil },
	}
}

func nonBlockingFailScanner(name string) stubScanner {
	return stubScanner{
		desc: Descriptor{Name: name, Applies: AppliesEither, Blocking: false},
		fn:   func(t string) (string, bool, float64, error) { return t, false, 1, nil },
	}
}

func TestPipelineFailFastStopsAtFirstFailure(t *testing.T) {
	p := New([]Scanner{failScanner("a"), passScanner("b")}, nil, WithFailFast(true))
	v := p.ScanInput(context.Background(), "hello")
	if v.Allowed {
		t.Fatal("expected blocked")
	}
	if _, ok := v.Details["b"]; ok {
		t.Fatal("fail-fast should not have evaluated scanner b")
	}
}

func TestPipelineFullSweepEvaluatesAll(t *testing.T) {
	p := New([]Scanner{failScanner("a"), passScanner("b")}, nil, WithFailFast(false))
	v := p.ScanInput(context.Background(), "hello")
	if v.Allowed {
		t.Fatal("expected blocked")
	}
	if len(v.Details) != 2 {
		t.Fatalf("expected both scanners evaluated, got %d", len(v.Details))
	}
}

func TestPipelineRewriteChains(t *testing.T) {
	rewriter := stubScanner{
		desc: Descriptor{Name: "rewrite", Applies: AppliesInput},
		fn:   func(t string) (string, bool, float64, error) { return "REDACTED", true, 0, nil },
	}
	seen := ""
	downstream := stubScanner{
		desc: Descriptor{Name: "downstream", Applies: AppliesInput},
		fn: func(t string) (string, bool, float64, error) {
			seen = t
			return t, true, 0, nil
		},
	}
	p := New([]Scanner{rewriter, downstream}, nil)
	v := p.ScanInput(context.Background(), "my secret")
	if seen != "REDACTED" {
		t.Fatalf("downstream scanner saw %q, want REDACTED", seen)
	}
	if v.Sanitised != "REDACTED" {
		t.Fatalf("verdict sanitised = %q", v.Sanitised)
	}
}

func TestPipelineBlockOnGuardErrorClosed(t *testing.T) {
	erroring := stubScanner{
		desc: Descriptor{Name: "erroring", Applies: AppliesInput, Blocking: true},
		fn:   func(t string) (string, bool, float64, error) { return t, true, 0, errors.New("boom") },
	}
	p := New([]Scanner{erroring}, nil, WithBlockOnGuardError(true))
	v := p.ScanInput(context.Background(), "x")
	if v.Allowed {
		t.Fatal("expected fail-closed to block on scanner error")
	}
}

func TestPipelineBlockOnGuardErrorOpen(t *testing.T) {
	erroring := stubScanner{
		desc: Descriptor{Name: "erroring", Applies: AppliesInput, Blocking: true},
		fn:   func(t string) (string, bool, float64, error) { return t, true, 0, errors.New("boom") },
	}
	p := New([]Scanner{erroring}, nil, WithBlockOnGuardError(false))
	v := p.ScanInput(context.Background(), "x")
	if !v.Allowed {
		t.Fatal("expected fail-open to allow on scanner error")
	}
}

func TestPipelineNonBlockingFailureDoesNotDeny(t *testing.T) {
	p := New([]Scanner{nonBlockingFailScanner("advisory"), passScanner("b")}, nil, WithFailFast(true))
	v := p.ScanInput(context.Background(), "hello")
	if !v.Allowed {
		t.Fatal("expected a non-blocking scanner failure to leave the verdict allowed")
	}
	if d, ok := v.Details["advisory"]; !ok || d.Passed {
		t.Fatalf("expected advisory scanner's failure still recorded in details, got %+v", d)
	}
	if _, ok := v.Details["b"]; !ok {
		t.Fatal("fail-fast should only stop on a blocking failure; scanner b should still run")
	}
}

func TestVerdictFailedScanners(t *testing.T) {
	v := Verdict{Details: map[string]ScanDetail{
		"a": {Passed: true},
		"b": {Passed: false},
	}}
	got := v.FailedScanners([]string{"a", "b"})
	if len(got) != 1 || got[0] != "b" {
		t.Fatalf("FailedScanners = %v", got)
	}
}
