package orchestrator

import "regexp"

// SupportedLanguages is the full set spec.md's "Language resolution
// totality" property quantifies over. Unrecognised input maps to "en".
var SupportedLanguages = []string{"en", "zh", "vi", "ja", "ko", "ru", "ar"}

// Each entry is a Unicode block (or block family) distinctive enough to
// identify one of spec.md §4.5's non-English languages without a real
// language-identification library in the pack. Checked in this order;
// first match wins. Vietnamese is identified by its Latin-Extended
// diacritic range (the vowels with horn/breve/circumflex + tone marks)
// since its base alphabet is otherwise plain ASCII.
var scriptBlocks = []struct {
	lang string
	re   *regexp.Regexp
}{
	{"zh", regexp.MustCompile(`[\x{4E00}-\x{9FFF}\x{3400}-\x{4DBF}]`)},
	{"vi", regexp.MustCompile(`[\x{1EA0}-\x{1EF9}\x{1EFF}]`)},
	{"ja", regexp.MustCompile(`[\x{3040}-\x{309F}\x{30A0}-\x{30FF}]`)},
	{"ko", regexp.MustCompile(`[\x{AC00}-\x{D7A3}\x{1100}-\x{11FF}]`)},
	{"ru", regexp.MustCompile(`[\x{0400}-\x{04FF}]`)},
	{"ar", regexp.MustCompile(`[\x{0600}-\x{06FF}]`)},
}

// DetectLanguage runs the Unicode-block regex pass spec.md §4.5 describes:
// Chinese, Vietnamese, Japanese, Korean, Cyrillic, Arabic, in that
// documented order; no match defaults to "en". The pack ships no
// general-purpose language-identification library, so there is no further
// "library-based detection" fallback step beyond the regex pass.
func DetectLanguage(text string) string {
	if text == "" {
		return "en"
	}
	for _, blk := range scriptBlocks {
		if blk.re.MatchString(text) {
			return blk.lang
		}
	}
	return "en"
}
