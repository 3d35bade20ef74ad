// Package config loads guardproxy's configuration: built-in defaults, then
// an optional YAML file, then environment variable overrides — in that
// priority order, matching spec.md §6's "config key uppercased" rule.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved, effective configuration.
type Config struct {
	OllamaURL  string `mapstructure:"ollama_url"`
	OllamaPath string `mapstructure:"ollama_path"`
	ProxyHost  string `mapstructure:"proxy_host"`
	ProxyPort  int    `mapstructure:"proxy_port"`

	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	OpenAITimeout  time.Duration `mapstructure:"openai_timeout"`

	EnableInputGuard  bool `mapstructure:"enable_input_guard"`
	EnableOutputGuard bool `mapstructure:"enable_output_guard"`
	BlockOnGuardError bool `mapstructure:"block_on_guard_error"`
	InlineGuardErrors bool `mapstructure:"inline_guard_errors"`

	OllamaNumParallel ParallelSetting `mapstructure:"-"`
	OllamaMaxQueue    int             `mapstructure:"ollama_max_queue"`

	Cache Cache `mapstructure:"cache"`

	TrustedHosts     []string `mapstructure:"trusted_hosts"`
	CORSAllowOrigins []string `mapstructure:"cors_allow_origins"`
	TrustForwarded   bool     `mapstructure:"trust_forwarded_headers"`

	InputScanners  map[string]ScannerConfig `mapstructure:"input_scanners"`
	OutputScanners map[string]ScannerConfig `mapstructure:"output_scanners"`

	WindowThreshold int `mapstructure:"stream_window_threshold"`
}

// Cache configures the result cache (C4).
type Cache struct {
	Enabled bool   `mapstructure:"enabled"`
	Backend string `mapstructure:"backend"` // auto | memory | distributed
	MaxSize int    `mapstructure:"max_size"`
	TTL     int    `mapstructure:"ttl"` // seconds

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Namespace     string `mapstructure:"namespace"`
}

// ScannerConfig configures one scanner's enablement and tunables.
// Enablement precedence (highest first) is applied at pipeline-build time:
// environment override > this config entry > built-in default.
type ScannerConfig struct {
	Enabled    *bool    `mapstructure:"enabled"`
	Threshold  float64  `mapstructure:"threshold"`
	Substrings []string `mapstructure:"substrings"`
	Languages  []string `mapstructure:"languages"`
	IsBlocking *bool    `mapstructure:"blocking"`
}

// ParallelSetting holds either an explicit integer parallel limit or the
// literal "auto", which tells the admission controller to size itself from
// available host memory (spec.md §4.2).
type ParallelSetting struct {
	Auto  bool
	Value int
}

// Int resolves the setting against the auto-sizing callback when Auto is set.
func (p ParallelSetting) Int(autoSize func() int) int {
	if p.Auto {
		return autoSize()
	}
	return p.Value
}

// Load reads defaults, an optional YAML file at path (empty = "./config.yaml"),
// and environment variable overrides, in that priority order.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// No prefix: spec.md's env override rule is a literal uppercase of the
	// config key (ollama_url -> OLLAMA_URL), not a namespaced prefix.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	rawParallel := v.Get("ollama_num_parallel")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.OllamaNumParallel = parseParallelSetting(rawParallel)

	return &cfg, nil
}

func parseParallelSetting(raw interface{}) ParallelSetting {
	switch v := raw.(type) {
	case string:
		if strings.EqualFold(v, "auto") || v == "" {
			return ParallelSetting{Auto: true}
		}
		if n, err := strconv.Atoi(v); err == nil {
			return ParallelSetting{Value: n}
		}
		return ParallelSetting{Auto: true}
	case int:
		return ParallelSetting{Value: v}
	case int64:
		return ParallelSetting{Value: int(v)}
	case float64:
		return ParallelSetting{Value: int(v)}
	default:
		return ParallelSetting{Auto: true}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ollama_url", "http://127.0.0.1:11434")
	v.SetDefault("ollama_path", "")
	v.SetDefault("proxy_host", "0.0.0.0")
	v.SetDefault("proxy_port", 8080)

	v.SetDefault("request_timeout", "60s")
	v.SetDefault("openai_timeout", "60s")

	v.SetDefault("enable_input_guard", true)
	v.SetDefault("enable_output_guard", true)
	v.SetDefault("block_on_guard_error", false)
	v.SetDefault("inline_guard_errors", false)

	v.SetDefault("ollama_num_parallel", "auto")
	v.SetDefault("ollama_max_queue", 512)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "auto")
	v.SetDefault("cache.max_size", 10000)
	v.SetDefault("cache.ttl", 3600)
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.namespace", "guardproxy")

	v.SetDefault("trusted_hosts", []string{})
	v.SetDefault("cors_allow_origins", []string{"*"})
	v.SetDefault("trust_forwarded_headers", false)

	v.SetDefault("stream_window_threshold", 160)

	for _, name := range []string{"ban-substrings", "prompt-injection", "toxicity", "secrets", "code", "anonymise"} {
		v.SetDefault("input_scanners."+name+".enabled", true)
	}
	for _, name := range []string{"ban-substrings", "toxicity", "code", "malicious-urls", "no-refusal"} {
		v.SetDefault("output_scanners."+name+".enabled", true)
	}
	v.SetDefault("input_scanners.prompt-injection.threshold", 0.75)
	v.SetDefault("input_scanners.toxicity.threshold", 0.7)
	v.SetDefault("output_scanners.toxicity.threshold", 0.7)
	v.SetDefault("output_scanners.malicious-urls.threshold", 0.7)
	v.SetDefault("output_scanners.no-refusal.threshold", 0.6)
}
