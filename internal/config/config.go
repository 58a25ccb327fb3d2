package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration decodes TOML strings such as "3s" or "30m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type AgentConfig struct {
	DID          string `toml:"did"`
	DefaultModel string `toml:"default_model"`
}

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type RedisConfig struct {
	Addr          string `toml:"addr"`
	Password      string `toml:"password"`
	DB            int    `toml:"db"`
	Neighbourhood string `toml:"neighbourhood"`
}

type SynergyConfig struct {
	MinItemsToProcess int      `toml:"min_items_to_process"`
	ItemsDelay        int      `toml:"items_delay"`
	ResponseTimeout   Duration `toml:"response_timeout"`
	InactivityWindow  Duration `toml:"inactivity_window"`
	TaskName          string   `toml:"task_name"`
	EmbeddingModel    string   `toml:"embedding_model"`
	MaxAttempts       int      `toml:"max_attempts"`
	PollSchedule      string   `toml:"poll_schedule"`
	Channels          []string `toml:"channels"`
}

type Prompts struct {
	SynergyTask string `toml:"synergy_task"`
}

type Config struct {
	Agent    AgentConfig    `toml:"agent"`
	LLM      LLMConfig      `toml:"llm"`
	Memgraph MemgraphConfig `toml:"memgraph"`
	Redis    RedisConfig    `toml:"redis"`
	Synergy  SynergyConfig  `toml:"synergy"`
	Prompts  Prompts        `toml:"prompts"`
}

const (
	DefaultMinItemsToProcess = 5
	DefaultItemsDelay        = 3
	DefaultResponseTimeout   = 3 * time.Second
	DefaultInactivityWindow  = 30 * time.Minute
	DefaultTaskName          = "flux-synergy-task"
	DefaultEmbeddingModel    = "bert"
	DefaultMaxAttempts       = 5
	DefaultPollSchedule      = "@every 30s"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// Default returns a config with every default applied and nothing else set.
func Default() *Config {
	cfg := &Config{}
	cfg.Synergy.ItemsDelay = DefaultItemsDelay
	cfg.ApplyDefaults()
	return cfg
}

func (c *Config) ApplyDefaults() {
	s := &c.Synergy
	if s.MinItemsToProcess <= 0 {
		s.MinItemsToProcess = DefaultMinItemsToProcess
	}
	// A zero delay is legitimate, only negative values are reset.
	if s.ItemsDelay < 0 {
		s.ItemsDelay = DefaultItemsDelay
	}
	if s.ResponseTimeout.Duration <= 0 {
		s.ResponseTimeout.Duration = DefaultResponseTimeout
	}
	if s.InactivityWindow.Duration <= 0 {
		s.InactivityWindow.Duration = DefaultInactivityWindow
	}
	if s.TaskName == "" {
		s.TaskName = DefaultTaskName
	}
	if s.EmbeddingModel == "" {
		s.EmbeddingModel = DefaultEmbeddingModel
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = DefaultMaxAttempts
	}
	if s.PollSchedule == "" {
		s.PollSchedule = DefaultPollSchedule
	}
	if c.Redis.Neighbourhood == "" {
		c.Redis.Neighbourhood = "synergy"
	}
}

// ApplyEnv overrides file values with environment variables when present.
func (c *Config) ApplyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.LLM.Provider, "LLM_PROVIDER")
	override(&c.LLM.Model, "LLM_MODEL")
	override(&c.LLM.EmbeddingModel, "LLM_EMBEDDING_MODEL")
	override(&c.LLM.APIKey, "LLM_API_KEY")
	override(&c.LLM.BaseURL, "LLM_BASE_URL")
	override(&c.Memgraph.URI, "MEMGRAPH_URI")
	override(&c.Memgraph.User, "MEMGRAPH_USER")
	override(&c.Memgraph.Password, "MEMGRAPH_PASSWORD")
	override(&c.Redis.Addr, "REDIS_ADDR")
	override(&c.Redis.Password, "REDIS_PASSWORD")
	override(&c.Agent.DID, "AGENT_DID")
	override(&c.Agent.DefaultModel, "AGENT_DEFAULT_MODEL")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
}
