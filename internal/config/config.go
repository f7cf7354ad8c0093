package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	DataDir    string           `yaml:"data_dir"`
	Voice      VoiceConfig      `yaml:"voice"`
	Reasoning  ReasoningConfig  `yaml:"reasoning"`
	Automation AutomationConfig `yaml:"automation"`
	Messaging  MessagingConfig  `yaml:"messaging"`
	Redis      RedisConfig      `yaml:"redis"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Baseline   BaselineConfig   `yaml:"baseline"`
	Digest     DigestConfig     `yaml:"digest"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// VoiceConfig points at the telephony/session provider that hosts the agent.
type VoiceConfig struct {
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	ProfileID     string `yaml:"profile_id"`
	PhoneNumberID string `yaml:"phone_number_id"`
}

type ReasoningConfig struct {
	API       string `yaml:"api"` // "openai" (default, any compatible endpoint) or "anthropic"
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type AutomationConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type MessagingConfig struct {
	BaseURL         string `yaml:"base_url"`
	APIKey          string `yaml:"api_key"`
	OperatorChannel string `yaml:"operator_channel"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PipelineConfig struct {
	TriggerReasons []string      `yaml:"trigger_reasons"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
}

type BaselineConfig struct {
	File string `yaml:"file"`
}

type DigestConfig struct {
	Schedule string `yaml:"schedule"` // cron spec; empty disables the digest
}

// DefaultTriggerReasons are the end reasons that count as unsatisfactory
// and start an improvement run. All other end reasons are ignored.
var DefaultTriggerReasons = []string{
	"customer-did-not-answer",
	"customer-busy",
	"voicemail",
	"silence-timed-out",
	"pipeline-error",
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)}`)

func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

func expandSecrets(cfg *Config) {
	cfg.Voice.BaseURL = expandEnv(cfg.Voice.BaseURL)
	cfg.Voice.APIKey = expandEnv(cfg.Voice.APIKey)
	cfg.Reasoning.BaseURL = expandEnv(cfg.Reasoning.BaseURL)
	cfg.Reasoning.APIKey = expandEnv(cfg.Reasoning.APIKey)
	cfg.Automation.BaseURL = expandEnv(cfg.Automation.BaseURL)
	cfg.Automation.APIKey = expandEnv(cfg.Automation.APIKey)
	cfg.Messaging.BaseURL = expandEnv(cfg.Messaging.BaseURL)
	cfg.Messaging.APIKey = expandEnv(cfg.Messaging.APIKey)
	cfg.Redis.Addr = expandEnv(cfg.Redis.Addr)
	cfg.Redis.Password = expandEnv(cfg.Redis.Password)
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Reasoning.API == "" {
		cfg.Reasoning.API = "openai"
	}
	if cfg.Reasoning.MaxTokens == 0 {
		cfg.Reasoning.MaxTokens = 4096
	}
	if len(cfg.Pipeline.TriggerReasons) == 0 {
		cfg.Pipeline.TriggerReasons = append([]string(nil), DefaultTriggerReasons...)
	}
	if cfg.Pipeline.SettleDelay == 0 {
		cfg.Pipeline.SettleDelay = 20 * time.Second
	}
	if cfg.Pipeline.CallTimeout == 0 {
		cfg.Pipeline.CallTimeout = 30 * time.Second
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	expandSecrets(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}
