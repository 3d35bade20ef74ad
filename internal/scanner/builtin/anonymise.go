package builtin

import (
	"context"
	"crypto/md5" //nolint:gosec // used for a deterministic opaque token, not security
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/ngoclaw/ollamaguard/internal/scanner"
	"github.com/ngoclaw/ollamaguard/internal/vault"
)

// piiPattern pairs a compiled regex with the PII class it matches.
type piiPattern struct {
	re      *regexp.Regexp
	piiType string
}

// piiPatterns are structural, high-confidence detectors. Ambiguous classes
// (name, address) that need model assistance are intentionally left out of
// the built-in scanner; they are a reasonable place to plug in a Classifier.
var piiPatterns = []piiPattern{
	{regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`), "email"},
	{regexp.MustCompile(`\b(?:\d{3}-?\d{2}-?\d{4})\b`), "ssn"},
	{regexp.MustCompile(`\b(?:\d{4}[\-\s]?){3}\d{4}\b`), "creditcard"},
	{regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`), "phone"},
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), "ipaddress"},
}

// Anonymise detects PII via regex and rewrites matches to opaque
// `[<pii-type>:<8 hex digits>]` placeholders (for example `[email:…]`),
// recording the original value in a per-session
// vault so a caller can reverse the substitution later. A successful
// rewrite still passes the gate, since the text handed downstream no
// longer carries the PII.
type Anonymise struct {
	desc  scanner.Descriptor
	vault *vault.Vault
}

// NewAnonymise builds the input-side anonymise scanner backed by v.
func NewAnonymise(v *vault.Vault) *Anonymise {
	return &Anonymise{
		desc:  scanner.Descriptor{Name: "anonymise", Applies: scanner.AppliesInput, Blocking: false},
		vault: v,
	}
}

func (a *Anonymise) Descriptor() scanner.Descriptor { return a.desc }

// Scan rewrites PII found in text for the given session. The session id is
// read from ctx (see WithSession); the orchestrator does not set one, and a
// scan run without a session id still redacts, it simply cannot be
// reversed later.
func (a *Anonymise) Scan(ctx context.Context, text string) (string, bool, float64, error) {
	session, _ := SessionFromContext(ctx)

	sanitised := text
	for _, p := range piiPatterns {
		sanitised = p.re.ReplaceAllStringFunc(sanitised, func(match string) string {
			token := tokenFor(p.piiType, match)
			if session != "" {
				a.vault.Put(session, token, match)
			}
			return token
		})
	}
	return sanitised, true, 0, nil
}

func tokenFor(piiType, value string) string {
	sum := md5.Sum([]byte(value)) //nolint:gosec
	return fmt.Sprintf("[%s:%s]", piiType, hex.EncodeToString(sum[:4]))
}

type sessionCtxKey struct{}

// WithSession attaches a session id to ctx so the anonymise scanner can
// record round-trippable tokens.
func WithSession(ctx context.Context, session string) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, session)
}

// SessionFromContext retrieves a session id set by WithSession.
func SessionFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(sessionCtxKey{}).(string)
	return s, ok
}
