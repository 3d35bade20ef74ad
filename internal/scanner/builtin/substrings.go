package builtin

import (
	"context"
	"strings"

	"github.com/ngoclaw/ollamaguard/internal/scanner"
)

// BanSubstrings denies text containing any of a configured set of literal
// substrings, matched case-insensitively.
type BanSubstrings struct {
	desc       scanner.Descriptor
	substrings []string
}

// NewBanSubstrings builds the ban-substrings scanner for the given side.
func NewBanSubstrings(applies scanner.Applies, substrings []string, blocking bool) *BanSubstrings {
	lowered := make([]string, len(substrings))
	for i, s := range substrings {
		lowered[i] = strings.ToLower(s)
	}
	return &BanSubstrings{
		desc: scanner.Descriptor{
			Name:      "ban-substrings",
			Applies:   applies,
			Threshold: 0,
			Blocking:  blocking,
		},
		substrings: lowered,
	}
}

func (b *BanSubstrings) Descriptor() scanner.Descriptor { return b.desc }

func (b *BanSubstrings) Scan(_ context.Context, text string) (string, bool, float64, error) {
	lower := strings.ToLower(text)
	for _, s := range b.substrings {
		if s != "" && strings.Contains(lower, s) {
			return text, false, 1.0, nil
		}
	}
	return text, true, 0, nil
}
