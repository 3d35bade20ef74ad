package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ngoclaw/ollamaguard/internal/orchestrator"
	"github.com/ngoclaw/ollamaguard/internal/streamguard"
	"github.com/ngoclaw/ollamaguard/pkg/apperrors"
)

// handlers holds the dependencies every route handler needs. One instance
// is shared across all requests; it carries no per-request state.
type handlers struct {
	deps Deps
}

func (h *handlers) readBody(c *gin.Context) ([]byte, error) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidJSON, "failed to read request body", err)
	}
	return raw, nil
}

// runAndRespond drives the common tail shared by every dialect handler
// once an orchestrator.Request has been built: call the orchestrator, then
// render whichever outcome it returns. writeStream renders a successful
// streaming handoff in the caller's dialect; writeNonStream renders a
// successful non-streaming body.
func (h *handlers) runAndRespond(
	c *gin.Context,
	dialect orchestrator.Dialect,
	req orchestrator.Request,
	writeStream func(c *gin.Context, handoff *orchestrator.StreamHandoff),
	writeNonStream func(c *gin.Context, body []byte),
) {
	ctx := orchestrator.WithRequestID(c.Request.Context(), newRequestID())

	outcome, err := h.deps.Orchestrator.Run(ctx, req)
	if err != nil {
		h.deps.Logger.Debug("orchestrator error", zap.String("model", req.Model), zap.Error(err))
		renderAppError(c, dialect, req.Model, req.ScanText, err)
		return
	}

	switch {
	case outcome.Blocked != nil:
		renderBlocked(c, dialect, req.Model, outcome.Blocked, h.deps.Config.InlineGuardErrors)
	case outcome.StreamUpstream != nil:
		writeStream(c, outcome.StreamUpstream)
	default:
		writeNonStream(c, outcome.NonStream)
	}
}

// runGuard drives a streamguard.Guard over handoff.Body and writes frames
// directly to the response writer, flushing the response headers first so
// the client starts receiving bytes immediately.
func runGuard(c *gin.Context, h *handlers, kind streamguard.Kind, body io.ReadCloser, abort func(), model string, contentType string) {
	defer body.Close()
	c.Writer.Header().Set("Content-Type", contentType)
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	if f, ok := c.Writer.(http.Flusher); ok {
		f.Flush()
	}

	cfg := h.deps.Config
	guard := streamguard.New(kind, h.deps.Orchestrator.Pipeline(), cfg.EnableOutputGuard, cfg.WindowThreshold, abort)
	if err := guard.Run(c.Request.Context(), body, c.Writer, model); err != nil {
		h.deps.Logger.Debug("streaming guard ended with error", zap.String("model", model), zap.Error(err))
	}
}
