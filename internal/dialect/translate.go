package dialect

import "strings"

// ToNativeChat translates an OpenAI chat request into its native
// equivalent. Messages are forwarded verbatim; decoding knobs move under
// options, and max_tokens becomes options.num_predict.
func ToNativeChat(req OpenAIChatRequest) NativeChatRequest {
	messages := make([]NativeMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = NativeMessage{Role: m.Role, Content: m.Content}
	}
	stream := req.Stream
	return NativeChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   &stream,
		Options: mapOptions(optionsSource{
			Temperature:      req.Temperature,
			TopP:             req.TopP,
			TopK:             req.TopK,
			RepeatPenalty:    req.RepeatPenalty,
			NumCtx:           req.NumCtx,
			MaxTokens:        req.MaxTokens,
			Stop:             req.Stop,
			PresencePenalty:  req.PresencePenalty,
			FrequencyPenalty: req.FrequencyPenalty,
			Seed:             req.Seed,
		}),
	}
}

// ToNativeGenerate translates an OpenAI completion request into its native
// equivalent. A prompt array is joined on newlines.
func ToNativeGenerate(req OpenAICompletionRequest) NativeGenerateRequest {
	stream := req.Stream
	return NativeGenerateRequest{
		Model:  req.Model,
		Prompt: joinPrompt(req.Prompt),
		Stream: &stream,
		Options: mapOptions(optionsSource{
			Temperature:      req.Temperature,
			TopP:             req.TopP,
			TopK:             req.TopK,
			RepeatPenalty:    req.RepeatPenalty,
			NumCtx:           req.NumCtx,
			MaxTokens:        req.MaxTokens,
			Stop:             req.Stop,
			PresencePenalty:  req.PresencePenalty,
			FrequencyPenalty: req.FrequencyPenalty,
			Seed:             req.Seed,
		}),
	}
}

// joinPrompt accepts a string or a []any/[]string prompt and returns the
// joined text, per the OpenAI completion API's historical prompt shape.
func joinPrompt(prompt any) string {
	switch p := prompt.(type) {
	case string:
		return p
	case []string:
		return strings.Join(p, "\n")
	case []any:
		parts := make([]string, 0, len(p))
		for _, v := range p {
			if s, ok := v.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

type optionsSource struct {
	Temperature      *float64
	TopP             *float64
	TopK             *int
	RepeatPenalty    *float64
	NumCtx           *int
	MaxTokens        *int
	Stop             []string
	PresencePenalty  *float64
	FrequencyPenalty *float64
	Seed             *int
}

func mapOptions(src optionsSource) *Options {
	if src.Temperature == nil && src.TopP == nil && src.TopK == nil &&
		src.RepeatPenalty == nil && src.NumCtx == nil && src.MaxTokens == nil &&
		len(src.Stop) == 0 && src.PresencePenalty == nil && src.FrequencyPenalty == nil && src.Seed == nil {
		return nil
	}
	return &Options{
		Temperature:      src.Temperature,
		TopP:             src.TopP,
		TopK:             src.TopK,
		RepeatPenalty:    src.RepeatPenalty,
		NumCtx:           src.NumCtx,
		Stop:             src.Stop,
		PresencePenalty:  src.PresencePenalty,
		FrequencyPenalty: src.FrequencyPenalty,
		Seed:             src.Seed,
		NumPredict:       src.MaxTokens,
	}
}

// FromNativeChatResponse translates a non-streaming native chat response
// into its OpenAI equivalent, synthesising an id and usage block.
func FromNativeChatResponse(resp NativeChatResponse, createdUnix int64, finishReason string) OpenAIChatResponse {
	return OpenAIChatResponse{
		ID:      NewChatCompletionID(),
		Object:  "chat.completion",
		Created: createdUnix,
		Model:   resp.Model,
		Choices: []OpenAIChatChoice{{
			Index:        0,
			Message:      OpenAIMessage{Role: resp.Message.Role, Content: resp.Message.Content},
			FinishReason: finishReason,
		}},
		Usage: usageFromCounts(resp.PromptEvalCount, resp.EvalCount),
	}
}

// FromNativeGenerateResponse translates a non-streaming native generate
// response into its OpenAI completion equivalent.
func FromNativeGenerateResponse(resp NativeGenerateResponse, createdUnix int64, finishReason string) OpenAICompletionResponse {
	return OpenAICompletionResponse{
		ID:      NewCompletionID(),
		Object:  "text_completion",
		Created: createdUnix,
		Model:   resp.Model,
		Choices: []OpenAICompletionChoice{{
			Index:        0,
			Text:         resp.Response,
			FinishReason: finishReason,
		}},
		Usage: usageFromCounts(resp.PromptEvalCount, resp.EvalCount),
	}
}

func usageFromCounts(promptCount, evalCount int) Usage {
	return Usage{
		PromptTokens:     promptCount,
		CompletionTokens: evalCount,
		TotalTokens:      promptCount + evalCount,
	}
}
