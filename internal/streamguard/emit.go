package streamguard

import (
	"encoding/json"
	"fmt"
	"io"
)

type guardInfo struct {
	FailedScanners []string `json:"failed_scanners"`
}

type errorInfo struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// writeNDJSON writes one native NDJSON object followed by a newline.
func writeNDJSON(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n"))
	return err
}

// writeSSE writes one `data: <json>\n\n` event.
func writeSSE(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
		return err
	}
	return nil
}

// writeSSEDone writes the literal `data: [DONE]\n\n` sentinel.
func writeSSEDone(w io.Writer) error {
	_, err := io.WriteString(w, "data: [DONE]\n\n")
	return err
}

// emitBlocked writes the dialect-correct blocked final frame for kind,
// given the scanners that failed the output scan.
func emitBlocked(w io.Writer, kind Kind, model string, failedScanners []string) error {
	switch kind {
	case NativeGenerate:
		return writeNDJSON(w, map[string]any{
			"model":       model,
			"response":    "",
			"done":        true,
			"done_reason": "guard_blocked",
			"error":       errorInfo{Type: "content_policy_violation", Message: "output blocked by content policy"},
			"guard":       guardInfo{FailedScanners: failedScanners},
		})
	case NativeChat:
		return writeNDJSON(w, map[string]any{
			"model":       model,
			"message":     map[string]string{"role": "assistant", "content": ""},
			"done":        true,
			"done_reason": "guard_blocked",
			"error":       errorInfo{Type: "content_policy_violation", Message: "output blocked by content policy"},
			"guard":       guardInfo{FailedScanners: failedScanners},
		})
	case OpenAIChat:
		finish := "content_filter"
		if err := writeSSE(w, map[string]any{
			"id":      "",
			"object":  "chat.completion.chunk",
			"created": 0,
			"model":   model,
			"choices": []map[string]any{{"index": 0, "delta": map[string]any{}, "finish_reason": finish}},
			"error":   errorInfo{Type: "content_policy_violation", Message: "output blocked by content policy"},
		}); err != nil {
			return err
		}
		return writeSSEDone(w)
	case OpenAICompletion:
		finish := "content_filter"
		if err := writeSSE(w, map[string]any{
			"id":      "",
			"object":  "text_completion",
			"created": 0,
			"model":   model,
			"choices": []map[string]any{{"index": 0, "text": "", "finish_reason": finish}},
			"error":   errorInfo{Type: "content_policy_violation", Message: "output blocked by content policy"},
		}); err != nil {
			return err
		}
		return writeSSEDone(w)
	default:
		return nil
	}
}

// emitRoleDelta writes the OpenAI chat role-delta frame that must precede
// any content delta. No-op for the other three kinds.
func emitRoleDelta(w io.Writer, kind Kind, model string) error {
	if kind != OpenAIChat {
		return nil
	}
	return writeSSE(w, map[string]any{
		"id":      "",
		"object":  "chat.completion.chunk",
		"created": 0,
		"model":   model,
		"choices": []map[string]any{{"index": 0, "delta": map[string]string{"role": "assistant"}, "finish_reason": nil}},
	})
}

// emitServerError writes an internal-error terminal frame, used when the
// upstream connection fails mid-stream.
func emitServerError(w io.Writer, kind Kind, model string) error {
	switch kind {
	case NativeGenerate, NativeChat:
		return writeNDJSON(w, map[string]any{
			"model":       model,
			"done":        true,
			"done_reason": "error",
			"error":       errorInfo{Type: "upstream_error", Message: "upstream connection failed"},
		})
	case OpenAIChat, OpenAICompletion:
		if err := writeSSE(w, map[string]any{
			"error": errorInfo{Type: "upstream_error", Message: "upstream connection failed"},
		}); err != nil {
			return err
		}
		return writeSSEDone(w)
	default:
		return nil
	}
}
