package orchestrator

import (
	"strings"
	"testing"

	"github.com/ngoclaw/ollamaguard/pkg/apperrors"
)

func TestLocalizeFallsBackToEnglish(t *testing.T) {
	if got := localize("xx", msgServerBusy); got != messageTable["en"][msgServerBusy] {
		t.Fatalf("unrecognised language did not fall back to english, got %q", got)
	}
}

func TestLocalizeReturnsLanguageSpecificCopy(t *testing.T) {
	got := localize("zh", msgInputBlocked)
	if got == messageTable["en"][msgInputBlocked] {
		t.Fatal("expected a distinct Chinese translation, got the English fallback")
	}
}

func TestLocalizedMessageMapsErrorCodes(t *testing.T) {
	if got := LocalizedMessage("en", apperrors.CodeQueueFull); !strings.Contains(got, "busy") {
		t.Fatalf("CodeQueueFull message = %q", got)
	}
	if got := LocalizedMessage("en", apperrors.CodeTimeout); !strings.Contains(got, "timed out") {
		t.Fatalf("CodeTimeout message = %q", got)
	}
	if got := LocalizedMessage("en", apperrors.CodeInternal); got != "" {
		t.Fatalf("unmapped code should return empty string, got %q", got)
	}
}

func TestInlineMessageIsLocalized(t *testing.T) {
	b := &BlockedResult{BlockType: "input_blocked", Language: "zh", Failed: []string{"ban-substrings"}}
	msg := b.InlineMessage()
	if !strings.Contains(msg, messageTable["zh"][msgInputBlocked]) {
		t.Fatalf("InlineMessage did not include localized summary: %q", msg)
	}
	if !strings.Contains(msg, "ban-substrings") {
		t.Fatalf("InlineMessage did not include failed scanner name: %q", msg)
	}
}
