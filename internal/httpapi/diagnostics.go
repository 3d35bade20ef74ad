package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var startedAt = time.Now()

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": time.Since(startedAt).Seconds(),
	})
}

func (h *handlers) configSnapshot(c *gin.Context) {
	cfg := h.deps.Config
	c.JSON(http.StatusOK, gin.H{
		"ollama_url":          cfg.OllamaURL,
		"proxy_host":          cfg.ProxyHost,
		"proxy_port":          cfg.ProxyPort,
		"enable_input_guard":  cfg.EnableInputGuard,
		"enable_output_guard": cfg.EnableOutputGuard,
		"block_on_guard_error": cfg.BlockOnGuardError,
		"inline_guard_errors": cfg.InlineGuardErrors,
		"cache_enabled":       cfg.Cache.Enabled,
		"cache_backend":       cfg.Cache.Backend,
		"input_scanners":      h.deps.Orchestrator.Pipeline().InputNames(),
		"output_scanners":     h.deps.Orchestrator.Pipeline().OutputNames(),
	})
}

func (h *handlers) stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models": h.deps.Admission.Stats(),
	})
}
