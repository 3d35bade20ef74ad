package cache

import (
	"time"

	"github.com/ngoclaw/ollamaguard/internal/config"
)

// Build constructs a Manager from cfg. "auto" picks distributed when a
// Redis address is configured, otherwise memory.
func Build(cfg config.Cache) (*Manager, error) {
	backend, err := buildBackend(cfg)
	if err != nil {
		return nil, err
	}
	ttl := time.Duration(cfg.TTL) * time.Second
	return NewManager(backend, ttl, 2*time.Second), nil
}

func buildBackend(cfg config.Cache) (Backend, error) {
	mode := cfg.Backend
	if mode == "auto" || mode == "" {
		if cfg.RedisAddr != "" {
			mode = "distributed"
		} else {
			mode = "memory"
		}
	}

	switch mode {
	case "distributed":
		return NewRedisBackend(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.Namespace), nil
	default:
		return NewLocalLRU(cfg.MaxSize)
	}
}
