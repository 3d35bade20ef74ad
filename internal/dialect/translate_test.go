package dialect

import "testing"

func TestToNativeChatMapsOptions(t *testing.T) {
	temp := 0.7
	maxTokens := 128
	req := OpenAIChatRequest{
		Model: "llama3",
		Messages: []OpenAIMessage{
			{Role: "user", Content: "hi"},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	}
	native := ToNativeChat(req)
	if native.Model != "llama3" || len(native.Messages) != 1 {
		t.Fatalf("native = %+v", native)
	}
	if native.Options == nil || native.Options.NumPredict == nil || *native.Options.NumPredict != 128 {
		t.Fatalf("expected max_tokens to map to options.num_predict, got %+v", native.Options)
	}
	if *native.Options.Temperature != 0.7 {
		t.Fatalf("temperature = %v", native.Options.Temperature)
	}
}

func TestToNativeChatMapsTopKRepeatPenaltyNumCtx(t *testing.T) {
	topK := 40
	repeatPenalty := 1.1
	numCtx := 4096
	req := OpenAIChatRequest{
		Model:         "llama3",
		Messages:      []OpenAIMessage{{Role: "user", Content: "hi"}},
		TopK:          &topK,
		RepeatPenalty: &repeatPenalty,
		NumCtx:        &numCtx,
	}
	native := ToNativeChat(req)
	if native.Options == nil {
		t.Fatalf("expected options to be populated")
	}
	if native.Options.TopK == nil || *native.Options.TopK != 40 {
		t.Fatalf("top_k = %v", native.Options.TopK)
	}
	if native.Options.RepeatPenalty == nil || *native.Options.RepeatPenalty != 1.1 {
		t.Fatalf("repeat_penalty = %v", native.Options.RepeatPenalty)
	}
	if native.Options.NumCtx == nil || *native.Options.NumCtx != 4096 {
		t.Fatalf("num_ctx = %v", native.Options.NumCtx)
	}
}

func TestToNativeGenerateJoinsPromptArray(t *testing.T) {
	req := OpenAICompletionRequest{
		Model:  "llama3",
		Prompt: []any{"line one", "line two"},
	}
	native := ToNativeGenerate(req)
	if native.Prompt != "line one\nline two" {
		t.Fatalf("Prompt = %q", native.Prompt)
	}
}

func TestToNativeGenerateStringPrompt(t *testing.T) {
	req := OpenAICompletionRequest{Model: "llama3", Prompt: "hello"}
	native := ToNativeGenerate(req)
	if native.Prompt != "hello" {
		t.Fatalf("Prompt = %q", native.Prompt)
	}
}

func TestFromNativeChatResponseSynthesisesUsage(t *testing.T) {
	resp := NativeChatResponse{
		Model:           "llama3",
		Message:         NativeMessage{Role: "assistant", Content: "hi there"},
		Done:            true,
		PromptEvalCount: 10,
		EvalCount:       5,
	}
	oai := FromNativeChatResponse(resp, 1234, "stop")
	if oai.Usage.TotalTokens != 15 {
		t.Fatalf("TotalTokens = %d", oai.Usage.TotalTokens)
	}
	if oai.Choices[0].Message.Content != "hi there" {
		t.Fatalf("content = %q", oai.Choices[0].Message.Content)
	}
	if oai.Object != "chat.completion" {
		t.Fatalf("object = %q", oai.Object)
	}
}

func TestNewChatCompletionIDHasPrefix(t *testing.T) {
	id := NewChatCompletionID()
	if len(id) < len("chatcmpl-") || id[:9] != "chatcmpl-" {
		t.Fatalf("id = %q", id)
	}
}
