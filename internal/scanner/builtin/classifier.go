package builtin

import "context"

// Classifier scores a piece of text on one risk dimension, in [0.0, 1.0].
// The ML-backed scanners (prompt-injection, toxicity, malicious-urls,
// no-refusal) are built against this interface rather than a concrete model
// so a real classifier can be swapped in without touching pipeline wiring.
type Classifier interface {
	Score(ctx context.Context, text string) (float64, error)
}

// ClassifierFunc adapts a function to a Classifier.
type ClassifierFunc func(ctx context.Context, text string) (float64, error)

func (f ClassifierFunc) Score(ctx context.Context, text string) (float64, error) {
	return f(ctx, text)
}
