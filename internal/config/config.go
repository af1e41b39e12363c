package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration, loaded once at startup and
// never mutated afterwards.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Planner   PlannerConfig   `yaml:"planner"`
	Corrector CorrectorConfig `yaml:"corrector"`
	Stream    StreamConfig    `yaml:"stream"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Stages    StageModels     `yaml:"stages"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type GatewayConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

type PlannerConfig struct {
	StrictOverlap bool `yaml:"strict_overlap"`
}

type CorrectorConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

type StreamConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	PollInterval      time.Duration `yaml:"poll_interval"`
}

type SandboxConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// StageModels maps each pipeline stage to a model catalog key. Correction
// accepts the DISABLED sentinel.
type StageModels struct {
	Blueprint  string `yaml:"blueprint"`
	FirstPhase string `yaml:"first_phase"`
	Phase      string `yaml:"phase"`
	Correction string `yaml:"correction"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8090"},
		Database: DatabaseConfig{Path: "vibe.db"},
		Gateway: GatewayConfig{
			MaxAttempts: 3,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    8 * time.Second,
			CallTimeout: 120 * time.Second,
		},
		Planner:   PlannerConfig{StrictOverlap: false},
		Corrector: CorrectorConfig{MaxAttempts: 1},
		Stream: StreamConfig{
			HeartbeatInterval: 15 * time.Second,
			PollInterval:      500 * time.Millisecond,
		},
		Sandbox: SandboxConfig{Timeout: 60 * time.Second},
		Stages: StageModels{
			Blueprint:  "anthropic|claude-sonnet-4-20250514",
			FirstPhase: "anthropic|claude-sonnet-4-20250514",
			Phase:      "anthropic|claude-3-5-haiku-20241022",
			Correction: "anthropic|claude-3-5-haiku-20241022",
		},
	}
}

// Load reads the YAML config at path (optional) and applies env overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("VIBE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("VIBE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("VIBE_SANDBOX_URL"); v != "" {
		cfg.Sandbox.URL = v
	}
	if v := os.Getenv("VIBE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Gateway.MaxAttempts = n
		}
	}
	if v := os.Getenv("VIBE_HEARTBEAT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Stream.HeartbeatInterval = d
		}
	}
	if v := os.Getenv("VIBE_CORRECTION_MODEL"); v != "" {
		cfg.Stages.Correction = v
	}
}

func (c Config) validate() error {
	if c.Gateway.MaxAttempts < 1 {
		return fmt.Errorf("gateway.max_attempts must be at least 1")
	}
	if c.Gateway.BaseDelay <= 0 || c.Gateway.MaxDelay < c.Gateway.BaseDelay {
		return fmt.Errorf("gateway delays misconfigured: base=%s max=%s", c.Gateway.BaseDelay, c.Gateway.MaxDelay)
	}
	if c.Corrector.MaxAttempts < 0 {
		return fmt.Errorf("corrector.max_attempts must not be negative")
	}
	if c.Stream.HeartbeatInterval <= 0 || c.Stream.PollInterval <= 0 {
		return fmt.Errorf("stream intervals must be positive")
	}
	if c.Stages.Blueprint == "" || c.Stages.Phase == "" {
		return fmt.Errorf("stage models blueprint and phase are required")
	}
	return nil
}
