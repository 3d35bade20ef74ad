package builtin

import (
	"context"
	"regexp"

	"github.com/ngoclaw/ollamaguard/internal/scanner"
)

// codeMarkers are regexes whose match strongly suggests source code rather
// than prose, spanning the common scripting and systems languages.
var codeMarkers = []*regexp.Regexp{
	regexp.MustCompile("```"),
	regexp.MustCompile(`(?m)^\s*(?:def|class|import|from)\s+\w+`),
	regexp.MustCompile(`(?m)^\s*(?:func|package)\s+\w+`),
	regexp.MustCompile(`(?m)^\s*(?:public|private|protected)\s+(?:static\s+)?\w+.*\(.*\)\s*\{`),
	regexp.MustCompile(`(?:function|const|let|var)\s+\w+\s*=\s*(?:function|\()`),
	regexp.MustCompile(`#include\s*<\w+>`),
	regexp.MustCompile(`(?m)^\s*(?:SELECT|INSERT INTO|UPDATE|DELETE FROM)\s+`),
}

// Code detects source code in text. The scanner's `languages` config entry
// is not passed to it; the built-in detector is language-agnostic and flags
// any recognised marker.
type Code struct {
	desc scanner.Descriptor
}

// NewCode builds the code scanner for the given side.
func NewCode(applies scanner.Applies, blocking bool) *Code {
	return &Code{desc: scanner.Descriptor{Name: "code", Applies: applies, Blocking: blocking}}
}

func (c *Code) Descriptor() scanner.Descriptor { return c.desc }

func (c *Code) Scan(_ context.Context, text string) (string, bool, float64, error) {
	hits := 0
	for _, re := range codeMarkers {
		if re.MatchString(text) {
			hits++
		}
	}
	if hits == 0 {
		return text, true, 0, nil
	}
	score := float64(hits) / float64(len(codeMarkers))
	return text, false, score, nil
}
