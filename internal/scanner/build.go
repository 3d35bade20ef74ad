package scanner

import (
	"github.com/ngoclaw/ollamaguard/internal/config"
	"github.com/ngoclaw/ollamaguard/internal/scanner/builtin"
	"github.com/ngoclaw/ollamaguard/internal/vault"
)

// required lists every built-in scanner this repo ships, in the fixed
// pipeline order; config enables, disables and tunes scanners but does not
// reorder them. Enablement
// precedence is env override, then config entry, then this default — the
// environment override is already folded into cfg by internal/config's
// AutomaticEnv pass, so Build only has to weigh config against default.
var required = []struct {
	name          string
	defaultOn     bool
	defaultThresh float64
	applies       Applies
}{
	{"ban-substrings", true, 0, AppliesEither},
	{"prompt-injection", true, 0.75, AppliesInput},
	{"secrets", true, 0, AppliesInput},
	{"anonymise", true, 0, AppliesInput},
	{"code", true, 0, AppliesEither},
	{"toxicity", true, 0.7, AppliesEither},
	{"malicious-urls", true, 0.7, AppliesOutput},
	{"no-refusal", true, 0.6, AppliesOutput},
}

// Build constructs the input and output pipelines from cfg, wiring the
// built-in scanners in fixed order. v backs the anonymise scanner's
// round-trip vault.
func Build(cfg *config.Config, v *vault.Vault) (*Pipeline, error) {
	var input, output []Scanner

	for _, r := range required {
		inCfg, hasIn := cfg.InputScanners[r.name]
		outCfg, hasOut := cfg.OutputScanners[r.name]

		if r.applies == AppliesInput || r.applies == AppliesEither {
			if enabled(hasIn, inCfg, r.defaultOn) {
				input = append(input, instantiate(r.name, AppliesInput, mergeThreshold(inCfg, r.defaultThresh), v, inCfg))
			}
		}
		if r.applies == AppliesOutput || r.applies == AppliesEither {
			if enabled(hasOut, outCfg, r.defaultOn) {
				output = append(output, instantiate(r.name, AppliesOutput, mergeThreshold(outCfg, r.defaultThresh), v, outCfg))
			}
		}
	}

	return New(input, output,
		WithFailFast(true),
		WithBlockOnGuardError(cfg.BlockOnGuardError),
		WithWorkerLimit(int64(max(4, cfg.OllamaMaxQueue/32))),
	), nil
}

func enabled(has bool, cfg config.ScannerConfig, fallback bool) bool {
	if has && cfg.Enabled != nil {
		return *cfg.Enabled
	}
	return fallback
}

func mergeThreshold(cfg config.ScannerConfig, fallback float64) float64 {
	if cfg.Threshold > 0 {
		return cfg.Threshold
	}
	return fallback
}

func isBlocking(cfg config.ScannerConfig, fallback bool) bool {
	if cfg.IsBlocking != nil {
		return *cfg.IsBlocking
	}
	return fallback
}

func instantiate(name string, applies Applies, threshold float64, v *vault.Vault, cfg config.ScannerConfig) Scanner {
	blocking := isBlocking(cfg, true)
	switch name {
	case "ban-substrings":
		return builtin.NewBanSubstrings(applies, cfg.Substrings, blocking)
	case "prompt-injection":
		return builtin.NewPromptInjection(builtin.PromptInjectionClassifier(), threshold, blocking)
	case "secrets":
		return builtin.NewSecrets(blocking)
	case "anonymise":
		return builtin.NewAnonymise(v)
	case "code":
		return builtin.NewCode(applies, blocking)
	case "toxicity":
		return builtin.NewToxicity(builtin.ToxicityClassifier(), applies, threshold, blocking)
	case "malicious-urls":
		return builtin.NewMaliciousURLs(builtin.MaliciousURLClassifier(), threshold, blocking)
	case "no-refusal":
		return builtin.NewNoRefusal(builtin.NoRefusalClassifier(), threshold, blocking)
	default:
		return nil
	}
}
