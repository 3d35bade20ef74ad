package builtin

import (
	"context"

	"github.com/ngoclaw/ollamaguard/internal/scanner"
)

// classified is the shared shape for the three scanners that delegate
// scoring to a Classifier and simply apply a threshold: prompt-injection,
// toxicity, and no-refusal. malicious-urls reuses it over the extracted
// URLs rather than the whole text.
type classified struct {
	desc       scanner.Descriptor
	classifier Classifier
	urlsOnly   bool
}

func (c *classified) Descriptor() scanner.Descriptor { return c.desc }

func (c *classified) Scan(ctx context.Context, text string) (string, bool, float64, error) {
	if !c.urlsOnly {
		score, err := c.classifier.Score(ctx, text)
		if err != nil {
			return text, false, 0, err
		}
		return text, score < c.desc.Threshold, score, nil
	}

	urls := ExtractURLs(text)
	if len(urls) == 0 {
		return text, true, 0, nil
	}
	var worst float64
	for _, u := range urls {
		score, err := c.classifier.Score(ctx, u)
		if err != nil {
			return text, false, 0, err
		}
		if score > worst {
			worst = score
		}
	}
	return text, worst < c.desc.Threshold, worst, nil
}

// NewPromptInjection builds the input-side prompt-injection scanner.
func NewPromptInjection(classifier Classifier, threshold float64, blocking bool) scanner.Scanner {
	return &classified{
		desc: scanner.Descriptor{
			Name:      "prompt-injection",
			Applies:   scanner.AppliesInput,
			Threshold: threshold,
			Blocking:  blocking,
		},
		classifier: classifier,
	}
}

// NewToxicity builds the toxicity scanner for the given side.
func NewToxicity(classifier Classifier, applies scanner.Applies, threshold float64, blocking bool) scanner.Scanner {
	return &classified{
		desc: scanner.Descriptor{
			Name:      "toxicity",
			Applies:   applies,
			Threshold: threshold,
			Blocking:  blocking,
		},
		classifier: classifier,
	}
}

// NewMaliciousURLs builds the output-side malicious-urls scanner.
func NewMaliciousURLs(classifier Classifier, threshold float64, blocking bool) scanner.Scanner {
	return &classified{
		desc: scanner.Descriptor{
			Name:      "malicious-urls",
			Applies:   scanner.AppliesOutput,
			Threshold: threshold,
			Blocking:  blocking,
		},
		classifier: classifier,
		urlsOnly:   true,
	}
}

// NewNoRefusal builds the output-side no-refusal scanner.
func NewNoRefusal(classifier Classifier, threshold float64, blocking bool) scanner.Scanner {
	return &classified{
		desc: scanner.Descriptor{
			Name:      "no-refusal",
			Applies:   scanner.AppliesOutput,
			Threshold: threshold,
			Blocking:  blocking,
		},
		classifier: classifier,
	}
}
