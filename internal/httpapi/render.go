package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ngoclaw/ollamaguard/internal/orchestrator"
	"github.com/ngoclaw/ollamaguard/pkg/apperrors"
)

// statusForCode maps an apperrors.ErrorCode to the HTTP status spec.md
// §4.7's taxonomy table specifies.
func statusForCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.CodeInvalidJSON, apperrors.CodeInvalidPayload, apperrors.CodeInvalidMessages,
		apperrors.CodeInvalidModel, apperrors.CodeInvalidPrompt:
		return http.StatusBadRequest
	case apperrors.CodeInputBlocked, apperrors.CodeOutputBlocked:
		return http.StatusUnavailableForLegalReasons
	case apperrors.CodeQueueFull:
		return http.StatusTooManyRequests
	case apperrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.CodeUpstreamError, apperrors.CodeInvalidUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// renderAppError renders an *apperrors.AppError (or a generic error,
// treated as internal) in model's model field and the caller's dialect.
func renderAppError(c *gin.Context, dialect orchestrator.Dialect, model string, text string, err error) {
	code, ok := apperrors.CodeOf(err)
	if !ok {
		code = apperrors.CodeInternal
	}
	status := statusForCode(code)
	lang := orchestrator.DetectLanguage(text)

	message := err.Error()
	if localized := orchestrator.LocalizedMessage(lang, code); localized != "" {
		message = localized
	}

	if dialect == orchestrator.DialectOpenAI {
		c.JSON(status, gin.H{
			"error": gin.H{
				"message": message,
				"type":    string(code),
			},
		})
		return
	}

	c.JSON(status, gin.H{
		"error":    string(code),
		"message":  message,
		"model":    model,
		"language": lang,
	})
}

// renderBlocked renders an input/output policy-violation outcome, either
// as an inline-guard success response or as HTTP 451 with the headers
// spec.md §4.7 requires, per inlineGuard.
func renderBlocked(c *gin.Context, dialect orchestrator.Dialect, model string, blocked *orchestrator.BlockedResult, inlineGuard bool) {
	c.Header("X-Error-Type", "content_policy_violation")
	c.Header("X-Block-Type", blocked.BlockType)
	c.Header("X-Language", blocked.Language)
	failedJSON, _ := json.Marshal(blocked.Failed)
	c.Header("X-Failed-Scanners", string(failedJSON))

	if inlineGuard {
		renderInlineGuard(c, dialect, model, blocked)
		return
	}

	body := gin.H{
		"error":    string(blockTypeCode(blocked.BlockType)),
		"message":  blocked.InlineMessage(),
		"language": blocked.Language,
		"details": gin.H{
			"block_type":      blocked.BlockType,
			"failed_scanners": blocked.Failed,
		},
	}
	if dialect == orchestrator.DialectOpenAI {
		body = gin.H{
			"error": gin.H{
				"message": blocked.InlineMessage(),
				"type":    "content_policy_violation",
				"details": gin.H{
					"block_type":      blocked.BlockType,
					"failed_scanners": blocked.Failed,
					"language":        blocked.Language,
				},
			},
		}
	}
	c.JSON(http.StatusUnavailableForLegalReasons, body)
}

// renderInlineGuard synthesises a success response whose body carries the
// verdict as the model's "output", per spec.md §4.5's inline-guard mode.
func renderInlineGuard(c *gin.Context, dialect orchestrator.Dialect, model string, blocked *orchestrator.BlockedResult) {
	text := blocked.InlineMessage()
	created := nowUnix()

	switch dialect {
	case orchestrator.DialectOpenAI:
		c.JSON(http.StatusOK, gin.H{
			"id":      "chatcmpl-guard",
			"object":  "chat.completion",
			"created": created,
			"model":   model,
			"choices": []gin.H{{
				"index":         0,
				"message":       gin.H{"role": "assistant", "content": text},
				"finish_reason": "content_filter",
			}},
			"guard": gin.H{"block_type": blocked.BlockType, "failed_scanners": blocked.Failed, "language": blocked.Language},
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"model":    model,
			"response": text,
			"message":  gin.H{"role": "assistant", "content": text},
			"done":     true,
			"guard":    gin.H{"block_type": blocked.BlockType, "failed_scanners": blocked.Failed, "language": blocked.Language},
		})
	}
}

func blockTypeCode(blockType string) apperrors.ErrorCode {
	if blockType == "output_blocked" {
		return apperrors.CodeOutputBlocked
	}
	return apperrors.CodeInputBlocked
}
