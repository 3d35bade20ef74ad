package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ngoclaw/ollamaguard/internal/dialect"
	"github.com/ngoclaw/ollamaguard/internal/orchestrator"
	"github.com/ngoclaw/ollamaguard/internal/streamguard"
	"github.com/ngoclaw/ollamaguard/pkg/apperrors"
)

// nativeGenerate handles POST /api/generate.
func (h *handlers) nativeGenerate(c *gin.Context) {
	raw, err := h.readBody(c)
	if err != nil {
		renderAppError(c, orchestrator.DialectNative, "", "", err)
		return
	}

	var body dialect.NativeGenerateRequest
	if err := json.Unmarshal(raw, &body); err != nil {
		renderAppError(c, orchestrator.DialectNative, "", "", apperrors.Wrap(apperrors.CodeInvalidJSON, "malformed request body", err))
		return
	}
	if body.Model == "" {
		renderAppError(c, orchestrator.DialectNative, "", "", apperrors.New(apperrors.CodeInvalidModel, "model is required"))
		return
	}

	stream := body.Stream == nil || *body.Stream

	req := orchestrator.Request{
		Model:        body.Model,
		Dialect:      orchestrator.DialectNative,
		Kind:         orchestrator.KindGenerate,
		Stream:       stream,
		ScanText:     body.Prompt,
		NativeBody:   raw,
		UpstreamPath: "/api/generate",
	}

	h.runAndRespond(c, orchestrator.DialectNative, req,
		func(c *gin.Context, handoff *orchestrator.StreamHandoff) {
			runGuard(c, h, streamguard.NativeGenerate, handoff.Body, handoff.Abort, body.Model, "application/x-ndjson")
		},
		func(c *gin.Context, respBody []byte) {
			c.Data(http.StatusOK, "application/json", respBody)
		},
	)
}

// nativeChat handles POST /api/chat.
func (h *handlers) nativeChat(c *gin.Context) {
	raw, err := h.readBody(c)
	if err != nil {
		renderAppError(c, orchestrator.DialectNative, "", "", err)
		return
	}

	var body dialect.NativeChatRequest
	if err := json.Unmarshal(raw, &body); err != nil {
		renderAppError(c, orchestrator.DialectNative, "", "", apperrors.Wrap(apperrors.CodeInvalidJSON, "malformed request body", err))
		return
	}
	if body.Model == "" {
		renderAppError(c, orchestrator.DialectNative, "", "", apperrors.New(apperrors.CodeInvalidModel, "model is required"))
		return
	}
	if len(body.Messages) == 0 {
		renderAppError(c, orchestrator.DialectNative, "", "", apperrors.New(apperrors.CodeInvalidMessages, "messages must not be empty"))
		return
	}

	stream := body.Stream == nil || *body.Stream

	req := orchestrator.Request{
		Model:        body.Model,
		Dialect:      orchestrator.DialectNative,
		Kind:         orchestrator.KindChat,
		Stream:       stream,
		ScanText:     concatMessages(body.Messages),
		NativeBody:   raw,
		UpstreamPath: "/api/chat",
	}

	h.runAndRespond(c, orchestrator.DialectNative, req,
		func(c *gin.Context, handoff *orchestrator.StreamHandoff) {
			runGuard(c, h, streamguard.NativeChat, handoff.Body, handoff.Abort, body.Model, "application/x-ndjson")
		},
		func(c *gin.Context, respBody []byte) {
			c.Data(http.StatusOK, "application/json", respBody)
		},
	)
}

// concatMessages joins every message's content with a newline — the full
// prompt/message history the backend actually receives, per SPEC_FULL.md
// §4.5's documented native-dialect input-scan scope.
func concatMessages(messages []dialect.NativeMessage) string {
	parts := make([]string, len(messages))
	for i, m := range messages {
		parts[i] = m.Content
	}
	return strings.Join(parts, "\n")
}
