package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// passthrough forwards a request's method, body, and relevant headers to
// the backend verbatim and mirrors its response back; spec.md §6 lists
// these routes as unscanned pass-through.
func (h *handlers) passthrough(c *gin.Context) {
	headers := map[string]string{"Content-Type": c.ContentType()}
	if headers["Content-Type"] == "" {
		headers["Content-Type"] = "application/json"
	}

	resp, err := h.deps.Upstream.Do(c.Request.Context(), c.Request.Method, c.Request.URL.Path, c.Request.Body, headers)
	if err != nil {
		h.deps.Logger.Error("passthrough: upstream error", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream_error", "message": err.Error()})
		return
	}
	defer resp.Body.Close()

	for k, values := range resp.Header {
		for _, v := range values {
			c.Writer.Header().Add(k, v)
		}
	}
	c.Writer.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(c.Writer, resp.Body)
}
