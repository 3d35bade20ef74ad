package dialect

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
)

// nativeStreamChatFrame and nativeStreamGenerateFrame mirror the NDJSON
// shapes Ollama's native streaming endpoints emit, stripped down to the
// fields the translators below need.
type nativeStreamChatFrame struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

type nativeStreamGenerateFrame struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// StreamChatToOpenAI bridges a native /api/chat NDJSON stream into an
// OpenAI chat-completion-chunk SSE stream, one chunk per native frame, so
// the streaming guard can run against the client's own dialect instead of
// the upstream's. The backend only ever speaks the native shape; this is
// where that gets translated for OpenAI-dialect callers, the streaming
// mirror of ToNativeChat/FromNativeChatResponse. The caller must close the
// returned reader.
func StreamChatToOpenAI(ctx context.Context, native io.Reader, id, model string, created int64) io.ReadCloser {
	pr, pw := io.Pipe()
	go translateChatStream(ctx, native, pw, id, model, created)
	return pr
}

func translateChatStream(ctx context.Context, native io.Reader, pw *io.PipeWriter, id, model string, created int64) {
	sc := bufio.NewScanner(native)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for sc.Scan() {
		select {
		case <-ctx.Done():
			_ = pw.CloseWithError(ctx.Err())
			return
		default:
		}

		var f nativeStreamChatFrame
		if err := json.Unmarshal(sc.Bytes(), &f); err != nil {
			continue
		}

		choice := map[string]any{"index": 0, "delta": map[string]string{"content": f.Message.Content}, "finish_reason": nil}
		if f.Done {
			choice = map[string]any{"index": 0, "delta": map[string]any{}, "finish_reason": "stop"}
		}
		chunk := map[string]any{
			"id": id, "object": "chat.completion.chunk", "created": created, "model": model,
			"choices": []map[string]any{choice},
		}
		if !writeSSEFrame(pw, chunk) {
			return
		}
	}
	if err := sc.Err(); err != nil {
		_ = pw.CloseWithError(err)
		return
	}
	_ = pw.Close()
}

// StreamGenerateToOpenAICompletion bridges a native /api/generate NDJSON
// stream into an OpenAI text-completion-chunk SSE stream.
func StreamGenerateToOpenAICompletion(ctx context.Context, native io.Reader, id, model string, created int64) io.ReadCloser {
	pr, pw := io.Pipe()
	go translateGenerateStream(ctx, native, pw, id, model, created)
	return pr
}

func translateGenerateStream(ctx context.Context, native io.Reader, pw *io.PipeWriter, id, model string, created int64) {
	sc := bufio.NewScanner(native)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for sc.Scan() {
		select {
		case <-ctx.Done():
			_ = pw.CloseWithError(ctx.Err())
			return
		default:
		}

		var f nativeStreamGenerateFrame
		if err := json.Unmarshal(sc.Bytes(), &f); err != nil {
			continue
		}

		var finish any
		if f.Done {
			finish = "stop"
		}
		chunk := map[string]any{
			"id": id, "object": "text_completion", "created": created, "model": model,
			"choices": []map[string]any{{"index": 0, "text": f.Response, "finish_reason": finish}},
		}
		if !writeSSEFrame(pw, chunk) {
			return
		}
	}
	if err := sc.Err(); err != nil {
		_ = pw.CloseWithError(err)
		return
	}
	_ = pw.Close()
}

func writeSSEFrame(pw *io.PipeWriter, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return true
	}
	if _, err := pw.Write([]byte("data: ")); err != nil {
		return false
	}
	if _, err := pw.Write(b); err != nil {
		return false
	}
	_, err = pw.Write([]byte("\n\n"))
	return err == nil
}
