package builtin

import (
	"context"
	"regexp"

	"github.com/ngoclaw/ollamaguard/internal/scanner"
)

// secretPattern pairs a compiled regex with the placeholder its matches are
// rewritten to.
type secretPattern struct {
	re          *regexp.Regexp
	placeholder string
}

// secretPatterns mirrors the high-confidence structural formats for API
// keys, tokens, and private key material: specific enough that a match is
// rewritten and the gate still fails, per spec.
var secretPatterns = []secretPattern{
	{regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`), "[REDACTED_AWS_KEY]"},
	{regexp.MustCompile(`(?i)\bsk-[a-zA-Z0-9]{20,}\b`), "[REDACTED_API_KEY]"},
	{regexp.MustCompile(`(?i)\bghp_[a-zA-Z0-9]{36}\b`), "[REDACTED_GITHUB_TOKEN]"},
	{regexp.MustCompile(`(?i)(?:api[_\-]?key|token|secret|bearer)[\s"':=]+([a-zA-Z0-9_\-.]{20,})`), "[REDACTED_TOKEN]"},
	{regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH )?PRIVATE KEY-----[\s\S]+?-----END (?:RSA |EC |OPENSSH )?PRIVATE KEY-----`), "[REDACTED_PRIVATE_KEY]"},
}

// Secrets detects API keys, tokens, and private key material and rewrites
// matches to placeholders. A match still fails the gate even though the
// text is sanitised, since the caller may still log or cache it.
type Secrets struct {
	desc scanner.Descriptor
}

// NewSecrets builds the input-side secrets scanner.
func NewSecrets(blocking bool) *Secrets {
	return &Secrets{desc: scanner.Descriptor{
		Name:     "secrets",
		Applies:  scanner.AppliesInput,
		Blocking: blocking,
	}}
}

func (s *Secrets) Descriptor() scanner.Descriptor { return s.desc }

func (s *Secrets) Scan(_ context.Context, text string) (string, bool, float64, error) {
	matched := false
	sanitised := text
	for _, p := range secretPatterns {
		if p.re.MatchString(sanitised) {
			matched = true
			sanitised = p.re.ReplaceAllString(sanitised, p.placeholder)
		}
	}
	if matched {
		return sanitised, false, 1.0, nil
	}
	return text, true, 0, nil
}
