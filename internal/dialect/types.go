// Package dialect translates between the native Ollama-style wire format
// and the OpenAI-compatible wire format (C8). Translation is stateless
// outside of streaming.
package dialect

// Options is the native decoding-options sub-object.
type Options struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"top_p,omitempty"`
	TopK            *int     `json:"top_k,omitempty"`
	RepeatPenalty   *float64 `json:"repeat_penalty,omitempty"`
	NumCtx          *int     `json:"num_ctx,omitempty"`
	Seed            *int     `json:"seed,omitempty"`
	Stop            []string `json:"stop,omitempty"`
	PresencePenalty *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	NumPredict      *int     `json:"num_predict,omitempty"`
}

// NativeMessage is one message in a native /api/chat request.
type NativeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NativeChatRequest is the /api/chat request body.
type NativeChatRequest struct {
	Model    string          `json:"model"`
	Messages []NativeMessage `json:"messages"`
	Stream   *bool           `json:"stream,omitempty"`
	Options  *Options        `json:"options,omitempty"`
}

// NativeGenerateRequest is the /api/generate request body.
type NativeGenerateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  *bool    `json:"stream,omitempty"`
	Options *Options `json:"options,omitempty"`
}

// NativeChatResponse is a non-streaming /api/chat response.
type NativeChatResponse struct {
	Model           string        `json:"model"`
	Message         NativeMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count,omitempty"`
	EvalCount       int           `json:"eval_count,omitempty"`
}

// NativeGenerateResponse is a non-streaming /api/generate response.
type NativeGenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

// OpenAIMessage is one message in an OpenAI chat request/response.
type OpenAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIChatRequest is the /v1/chat/completions request body. top_k,
// repeat_penalty, and num_ctx are not part of the OpenAI schema proper but
// are accepted pass-through knobs (as Ollama's own OpenAI-compat layer
// does) so they still reach the native options block.
type OpenAIChatRequest struct {
	Model            string          `json:"model"`
	Messages         []OpenAIMessage `json:"messages"`
	Stream           bool            `json:"stream,omitempty"`
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	TopK             *int            `json:"top_k,omitempty"`
	RepeatPenalty    *float64        `json:"repeat_penalty,omitempty"`
	NumCtx           *int            `json:"num_ctx,omitempty"`
	MaxTokens        *int            `json:"max_tokens,omitempty"`
	Stop             []string        `json:"stop,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	Seed             *int            `json:"seed,omitempty"`
}

// OpenAICompletionRequest is the /v1/completions request body. See
// OpenAIChatRequest for the top_k/repeat_penalty/num_ctx pass-through note.
type OpenAICompletionRequest struct {
	Model            string   `json:"model"`
	Prompt           any      `json:"prompt"`
	Stream           bool     `json:"stream,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	TopK             *int     `json:"top_k,omitempty"`
	RepeatPenalty    *float64 `json:"repeat_penalty,omitempty"`
	NumCtx           *int     `json:"num_ctx,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	Stop             []string `json:"stop,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	Seed             *int     `json:"seed,omitempty"`
}

// Usage mirrors OpenAI's token accounting block.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenAIChatChoice is one choice in a chat completion response.
type OpenAIChatChoice struct {
	Index        int           `json:"index"`
	Message      OpenAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// OpenAIChatResponse is a non-streaming /v1/chat/completions response.
type OpenAIChatResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []OpenAIChatChoice `json:"choices"`
	Usage   Usage              `json:"usage"`
}

// OpenAICompletionChoice is one choice in a completion response.
type OpenAICompletionChoice struct {
	Index        int    `json:"index"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
}

// OpenAICompletionResponse is a non-streaming /v1/completions response.
type OpenAICompletionResponse struct {
	ID      string                   `json:"id"`
	Object  string                   `json:"object"`
	Created int64                   `json:"created"`
	Model   string                   `json:"model"`
	Choices []OpenAICompletionChoice `json:"choices"`
	Usage   Usage                    `json:"usage"`
}
