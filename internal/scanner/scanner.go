// Package scanner defines the Scanner contract and the pipeline that runs
// ordered scanners over a piece of text (C1, C2).
package scanner

import "context"

// Applies describes which side of a request a scanner may run against.
type Applies int

const (
	AppliesInput Applies = iota
	AppliesOutput
	AppliesEither
)

// Descriptor is a scanner's immutable identity within a pipeline: a unique
// name, the side it applies to, a risk threshold in [0.0, 1.0], and whether
// a failure blocks the request.
type Descriptor struct {
	Name      string
	Applies   Applies
	Threshold float64
	Blocking  bool
}

// Scanner scores one string on one risk dimension and may rewrite it. A
// rewrite becomes the input handed to the next scanner in the pipeline.
type Scanner interface {
	Descriptor() Descriptor
	Scan(ctx context.Context, text string) (sanitised string, passed bool, riskScore float64, err error)
}

// ScanDetail is one scanner's contribution to a Verdict.
type ScanDetail struct {
	Passed          bool
	RiskScore       float64
	SanitisedChange bool
	Error           string
}

// Verdict is the aggregate result of running a pipeline over one text.
// Scanners omitted by fail-fast are absent from Details, never marked
// passed.
type Verdict struct {
	Allowed   bool
	Sanitised string
	Details   map[string]ScanDetail
}

// FailedScanners returns the names of scanners whose detail reports passed=false,
// in pipeline order.
func (v Verdict) FailedScanners(order []string) []string {
	var failed []string
	for _, name := range order {
		if d, ok := v.Details[name]; ok && !d.Passed {
			failed = append(failed, name)
		}
	}
	return failed
}
