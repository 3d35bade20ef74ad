package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ngoclaw/ollamaguard/internal/dialect"
	"github.com/ngoclaw/ollamaguard/internal/orchestrator"
	"github.com/ngoclaw/ollamaguard/internal/streamguard"
	"github.com/ngoclaw/ollamaguard/pkg/apperrors"
)

// openAIChatCompletions handles POST /v1/chat/completions.
func (h *handlers) openAIChatCompletions(c *gin.Context) {
	raw, err := h.readBody(c)
	if err != nil {
		renderAppError(c, orchestrator.DialectOpenAI, "", "", err)
		return
	}

	var body dialect.OpenAIChatRequest
	if jerr := json.Unmarshal(raw, &body); jerr != nil {
		renderAppError(c, orchestrator.DialectOpenAI, "", "", apperrors.Wrap(apperrors.CodeInvalidJSON, "malformed request body", jerr))
		return
	}
	if body.Model == "" {
		renderAppError(c, orchestrator.DialectOpenAI, "", "", apperrors.New(apperrors.CodeInvalidModel, "model is required"))
		return
	}
	if len(body.Messages) == 0 {
		renderAppError(c, orchestrator.DialectOpenAI, "", "", apperrors.New(apperrors.CodeInvalidMessages, "messages array must not be empty"))
		return
	}

	native := dialect.ToNativeChat(body)
	nativeBody, merr := json.Marshal(native)
	if merr != nil {
		renderAppError(c, orchestrator.DialectOpenAI, "", "", apperrors.Wrap(apperrors.CodeInternal, "failed to translate request", merr))
		return
	}

	// Per SPEC_FULL.md §4.5, OpenAI dialect scans only the latest user turn.
	lastMsg := body.Messages[len(body.Messages)-1]

	req := orchestrator.Request{
		Model:        body.Model,
		Dialect:      orchestrator.DialectOpenAI,
		Kind:         orchestrator.KindChat,
		Stream:       body.Stream,
		ScanText:     lastMsg.Content,
		NativeBody:   nativeBody,
		UpstreamPath: "/api/chat",
	}

	created := nowUnix()
	id := dialect.NewChatCompletionID()

	h.runAndRespond(c, orchestrator.DialectOpenAI, req,
		func(c *gin.Context, handoff *orchestrator.StreamHandoff) {
			translated := dialect.StreamChatToOpenAI(c.Request.Context(), handoff.Body, id, body.Model, created)
			runGuard(c, h, streamguard.OpenAIChat, translated, handoff.Abort, body.Model, "text/event-stream")
		},
		func(c *gin.Context, respBody []byte) {
			var nativeResp dialect.NativeChatResponse
			if err := json.Unmarshal(respBody, &nativeResp); err != nil {
				renderAppError(c, orchestrator.DialectOpenAI, body.Model, lastMsg.Content, apperrors.Wrap(apperrors.CodeInvalidUpstream, "could not parse upstream response", err))
				return
			}
			c.JSON(http.StatusOK, dialect.FromNativeChatResponse(nativeResp, created, "stop"))
		},
	)
}

// openAICompletions handles POST /v1/completions.
func (h *handlers) openAICompletions(c *gin.Context) {
	raw, err := h.readBody(c)
	if err != nil {
		renderAppError(c, orchestrator.DialectOpenAI, "", "", err)
		return
	}

	var body dialect.OpenAICompletionRequest
	if jerr := json.Unmarshal(raw, &body); jerr != nil {
		renderAppError(c, orchestrator.DialectOpenAI, "", "", apperrors.Wrap(apperrors.CodeInvalidJSON, "malformed request body", jerr))
		return
	}
	if body.Model == "" {
		renderAppError(c, orchestrator.DialectOpenAI, "", "", apperrors.New(apperrors.CodeInvalidModel, "model is required"))
		return
	}

	native := dialect.ToNativeGenerate(body)
	if native.Prompt == "" {
		renderAppError(c, orchestrator.DialectOpenAI, "", "", apperrors.New(apperrors.CodeInvalidPrompt, "prompt is required"))
		return
	}
	nativeBody, merr := json.Marshal(native)
	if merr != nil {
		renderAppError(c, orchestrator.DialectOpenAI, "", "", apperrors.Wrap(apperrors.CodeInternal, "failed to translate request", merr))
		return
	}

	req := orchestrator.Request{
		Model:        body.Model,
		Dialect:      orchestrator.DialectOpenAI,
		Kind:         orchestrator.KindGenerate,
		Stream:       body.Stream,
		ScanText:     native.Prompt,
		NativeBody:   nativeBody,
		UpstreamPath: "/api/generate",
	}

	created := nowUnix()
	id := dialect.NewCompletionID()

	h.runAndRespond(c, orchestrator.DialectOpenAI, req,
		func(c *gin.Context, handoff *orchestrator.StreamHandoff) {
			translated := dialect.StreamGenerateToOpenAICompletion(c.Request.Context(), handoff.Body, id, body.Model, created)
			runGuard(c, h, streamguard.OpenAICompletion, translated, handoff.Abort, body.Model, "text/event-stream")
		},
		func(c *gin.Context, respBody []byte) {
			var nativeResp dialect.NativeGenerateResponse
			if err := json.Unmarshal(respBody, &nativeResp); err != nil {
				renderAppError(c, orchestrator.DialectOpenAI, body.Model, native.Prompt, apperrors.Wrap(apperrors.CodeInvalidUpstream, "could not parse upstream response", err))
				return
			}
			c.JSON(http.StatusOK, dialect.FromNativeGenerateResponse(nativeResp, created, "stop"))
		},
	)
}
