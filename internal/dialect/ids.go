package dialect

import (
	"strings"

	"github.com/google/uuid"
)

func newHexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewChatCompletionID synthesises an OpenAI-shaped chat completion id.
func NewChatCompletionID() string {
	return "chatcmpl-" + newHexID()
}

// NewCompletionID synthesises an OpenAI-shaped completion id.
func NewCompletionID() string {
	return "cmpl-" + newHexID()
}
