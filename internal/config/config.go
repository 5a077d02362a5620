package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xxxsen/common/logger"
)

const DefaultAPIKeyEnv = "CONSULTRAG_API_KEY"

type Config struct {
	Port        int              `json:"port"`
	LogConfig   logger.LogConfig `json:"log_config"`
	DefaultUser string           `json:"default_user"`
	Users       []string         `json:"users"`
	CORSOrigins []string         `json:"cors_origins"`
	Store       PluginConfig     `json:"store"`
	AI          AIConfig         `json:"ai"`
	Index       IndexConfig      `json:"index"`
	Query       QueryConfig      `json:"query"`
	Escalation  EscalationConfig `json:"escalation"`
	Source      *PluginConfig    `json:"source"`
	Snapshot    *PluginConfig    `json:"snapshot"`
	Reindex     ReindexConfig    `json:"reindex"`
	Server      ServerConfig     `json:"server"`
}

// PluginConfig selects a registered implementation and passes data to its
// factory untouched.
type PluginConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ModelConfig struct {
	Provider string                 `json:"provider"`
	Model    string                 `json:"model"`
	Data     map[string]interface{} `json:"data"`
}

type BreakerConfig struct {
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
	OpenTimeoutSec      int64  `json:"open_timeout_sec"`
}

type AIConfig struct {
	APIKey           string        `json:"api_key"`
	APIKeyEnv        string        `json:"api_key_env"`
	TimeoutMs        int64         `json:"timeout_ms"`
	Embed            ModelConfig   `json:"embed"`
	Generate         ModelConfig   `json:"generate"`
	Fallbacks        []ModelConfig `json:"fallbacks"`
	Temperature      *float32      `json:"temperature"`
	MaxOutputTokens  int           `json:"max_output_tokens"`
	EmbedCacheSize   int           `json:"embed_cache_size"`
	EmbedCacheTTLSec int64         `json:"embed_cache_ttl_sec"`
	Breaker          BreakerConfig `json:"breaker"`
}

type IndexConfig struct {
	Concurrency   int     `json:"concurrency"`
	RatePerSecond float64 `json:"rate_per_second"`
	Burst         int     `json:"burst"`
	SkipUnchanged bool    `json:"skip_unchanged"`
}

type QueryConfig struct {
	TopK            int `json:"top_k"`
	MaxContextChars int `json:"max_context_chars"`
}

type EscalationConfig struct {
	GenericAnswerChars int      `json:"generic_answer_chars"`
	ExtraKeywords      []string `json:"extra_keywords"`
	ExtraHedges        []string `json:"extra_hedges"`
}

type ReindexConfig struct {
	Cron    string `json:"cron"`
	OnStart bool   `json:"on_start"`
}

type ServerConfig struct {
	AskRateWindowMs int64 `json:"ask_rate_window_ms"`
	PoolSize        int   `json:"pool_size"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.DefaultUser == "" {
		c.DefaultUser = "default"
	}
	if c.Store.Type == "" {
		return fmt.Errorf("store.type is required")
	}
	if c.AI.Embed.Provider == "" || c.AI.Embed.Model == "" {
		return fmt.Errorf("ai.embed provider/model are required")
	}
	if c.AI.Generate.Provider == "" || c.AI.Generate.Model == "" {
		return fmt.Errorf("ai.generate provider/model are required")
	}
	for i, fb := range c.AI.Fallbacks {
		if fb.Provider == "" || fb.Model == "" {
			return fmt.Errorf("ai.fallbacks[%d] provider/model are required", i)
		}
	}
	if c.AI.APIKeyEnv == "" {
		c.AI.APIKeyEnv = DefaultAPIKeyEnv
	}
	if c.AI.TimeoutMs <= 0 {
		c.AI.TimeoutMs = 20000
	}
	if c.AI.Temperature == nil {
		t := float32(0.3)
		c.AI.Temperature = &t
	}
	if *c.AI.Temperature < 0 || *c.AI.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be within [0, 2]")
	}
	if c.AI.MaxOutputTokens <= 0 {
		c.AI.MaxOutputTokens = 600
	}
	if c.AI.EmbedCacheTTLSec <= 0 {
		c.AI.EmbedCacheTTLSec = 7200
	}
	if c.Index.Concurrency <= 0 {
		c.Index.Concurrency = 1
	}
	if c.Index.RatePerSecond < 0 {
		return fmt.Errorf("index.rate_per_second must not be negative")
	}
	if c.Index.Burst <= 0 {
		c.Index.Burst = 1
	}
	if c.Query.TopK <= 0 {
		c.Query.TopK = 5
	}
	if c.Query.MaxContextChars <= 0 {
		c.Query.MaxContextChars = 6000
	}
	if c.Escalation.GenericAnswerChars <= 0 {
		c.Escalation.GenericAnswerChars = 60
	}
	if c.Source != nil && c.Source.Type == "" {
		return fmt.Errorf("source.type is required when source is set")
	}
	if c.Snapshot != nil && c.Snapshot.Type == "" {
		return fmt.Errorf("snapshot.type is required when snapshot is set")
	}
	if c.Reindex.Cron != "" && c.Source == nil {
		return fmt.Errorf("reindex.cron requires a source")
	}
	return nil
}

// ResolveAPIKey prefers the inline key, then the configured environment
// variable. An empty result means the assistant is unavailable.
func (a *AIConfig) ResolveAPIKey() string {
	if key := strings.TrimSpace(a.APIKey); key != "" {
		return key
	}
	return strings.TrimSpace(os.Getenv(a.APIKeyEnv))
}

// ProviderArgs returns the provider data with the shared API key filled in
// when the entry does not carry its own.
func (m *ModelConfig) ProviderArgs(apiKey string) map[string]interface{} {
	args := make(map[string]interface{}, len(m.Data)+1)
	for k, v := range m.Data {
		args[k] = v
	}
	if key, _ := args["api_key"].(string); strings.TrimSpace(key) == "" {
		args["api_key"] = apiKey
	}
	return args
}

// CredentialsConfigured reports whether the embedder and at least one
// generator end up with an API key, either their own or the shared one.
func (a *AIConfig) CredentialsConfigured() bool {
	shared := a.ResolveAPIKey()
	if !a.Embed.hasAPIKey(shared) {
		return false
	}
	if a.Generate.hasAPIKey(shared) {
		return true
	}
	for i := range a.Fallbacks {
		if a.Fallbacks[i].hasAPIKey(shared) {
			return true
		}
	}
	return false
}

func (m *ModelConfig) hasAPIKey(shared string) bool {
	key, _ := m.ProviderArgs(shared)["api_key"].(string)
	return strings.TrimSpace(key) != ""
}

func (a *AIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutMs) * time.Millisecond
}

func (a *AIConfig) EmbedCacheTTL() time.Duration {
	return time.Duration(a.EmbedCacheTTLSec) * time.Second
}

func (s *ServerConfig) AskRateWindow() time.Duration {
	return time.Duration(s.AskRateWindowMs) * time.Millisecond
}
