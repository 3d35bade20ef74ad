package streamguard

import "encoding/json"

// Kind identifies which of the four streaming shapes a guard is running
// against, since incremental-text extraction and frame emission are both
// dialect-specific.
type Kind int

const (
	NativeGenerate Kind = iota
	NativeChat
	OpenAIChat
	OpenAICompletion
)

// nativeGenerateFrame is one NDJSON object from /api/generate.
type nativeGenerateFrame struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// nativeChatFrame is one NDJSON object from /api/chat.
type nativeChatFrame struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

type openAIChatDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type openAIChatStreamChoice struct {
	Index        int             `json:"index"`
	Delta        openAIChatDelta `json:"delta"`
	FinishReason *string         `json:"finish_reason"`
}

// openAIChatFrame is the JSON payload of one `data: ` SSE event from
// /v1/chat/completions.
type openAIChatFrame struct {
	ID      string                   `json:"id"`
	Object  string                   `json:"object"`
	Created int64                    `json:"created"`
	Model   string                   `json:"model"`
	Choices []openAIChatStreamChoice `json:"choices"`
}

type openAICompletionStreamChoice struct {
	Index        int     `json:"index"`
	Text         string  `json:"text"`
	FinishReason *string `json:"finish_reason"`
}

// openAICompletionFrame is the JSON payload of one `data: ` SSE event from
// /v1/completions.
type openAICompletionFrame struct {
	ID      string                         `json:"id"`
	Object  string                         `json:"object"`
	Created int64                          `json:"created"`
	Model   string                         `json:"model"`
	Choices []openAICompletionStreamChoice `json:"choices"`
}

// extractText pulls the incremental text and done-ness out of one raw
// frame, per spec.md §4.6's dialect table. A frame that doesn't parse is
// reported as not-ok so the caller forwards it unchanged.
func extractText(kind Kind, raw []byte) (text string, done bool, ok bool) {
	switch kind {
	case NativeGenerate:
		var f nativeGenerateFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return "", false, false
		}
		return f.Response, f.Done, true
	case NativeChat:
		var f nativeChatFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return "", false, false
		}
		return f.Message.Content, f.Done, true
	case OpenAIChat:
		var f openAIChatFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return "", false, false
		}
		if len(f.Choices) == 0 {
			return "", false, true
		}
		done := f.Choices[0].FinishReason != nil
		return f.Choices[0].Delta.Content, done, true
	case OpenAICompletion:
		var f openAICompletionFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return "", false, false
		}
		if len(f.Choices) == 0 {
			return "", false, true
		}
		done := f.Choices[0].FinishReason != nil
		return f.Choices[0].Text, done, true
	default:
		return "", false, false
	}
}
