package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// AppConfig holds every tunable of the server and the queue engine.
type AppConfig struct {
	Server struct {
		Port     string `yaml:"port"`
		LogLevel string `yaml:"loglevel"`
		// ShutdownTimeout is given in seconds.
		ShutdownTimeout int `yaml:"shutdownTimeout"`
	}
	Identity struct {
		Region    string `yaml:"region"`
		AccountID string `yaml:"accountId"`
	}
	Auth struct {
		Enabled     bool   `yaml:"enabled"`
		JWTSecret   string `yaml:"jwtSecret"`
		AdminAPIKey string `yaml:"adminApiKey"`
	}
	Engine struct {
		// PurgeCooldown and DedupWindow are given in seconds.
		PurgeCooldown   int `yaml:"purgeCooldown"`
		DedupWindow     int `yaml:"dedupWindow"`
		MaxBatchEntries int `yaml:"maxBatchEntries"`
		MaxBatchBytes   int `yaml:"maxBatchBytes"`
		DefaultMoveRate int `yaml:"defaultMoveRate"`
	}
}

// PurgeCooldown ...
func (c *AppConfig) PurgeCooldown() time.Duration {
	return time.Duration(c.Engine.PurgeCooldown) * time.Second
}

// DedupWindow ...
func (c *AppConfig) DedupWindow() time.Duration {
	return time.Duration(c.Engine.DedupWindow) * time.Second
}

// ShutdownTimeout ...
func (c *AppConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeout) * time.Second
}

// Default returns the configuration used when nothing is overridden.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.Server.Port = "8080"
	cfg.Server.LogLevel = "info"
	cfg.Server.ShutdownTimeout = 10
	cfg.Identity.Region = "us-east-1"
	cfg.Identity.AccountID = "000000000000"
	cfg.Auth.JWTSecret = "default-secret-do-not-use-in-prod"
	cfg.Auth.AdminAPIKey = "admin-secret"
	cfg.Engine.PurgeCooldown = 60
	cfg.Engine.DedupWindow = 300
	cfg.Engine.MaxBatchEntries = 10
	cfg.Engine.MaxBatchBytes = 262144
	cfg.Engine.DefaultMoveRate = 500
	return cfg
}

// Read builds the configuration from defaults, an optional YAML file at
// CFG_PATH and environment variables (a .env file is loaded first if present).
func Read() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := Default()
	if filename := os.Getenv("CFG_PATH"); filename != "" {
		buff, err := os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(buff, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filename, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	str := map[string]*string{
		"MEMQ_PORT":       &cfg.Server.Port,
		"MEMQ_LOG_LEVEL":  &cfg.Server.LogLevel,
		"MEMQ_REGION":     &cfg.Identity.Region,
		"MEMQ_ACCOUNT_ID": &cfg.Identity.AccountID,
		"JWT_SECRET":      &cfg.Auth.JWTSecret,
		"ADMIN_API_KEY":   &cfg.Auth.AdminAPIKey,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MEMQ_SHUTDOWN_TIMEOUT":  &cfg.Server.ShutdownTimeout,
		"MEMQ_PURGE_COOLDOWN":    &cfg.Engine.PurgeCooldown,
		"MEMQ_DEDUP_WINDOW":      &cfg.Engine.DedupWindow,
		"MEMQ_MAX_BATCH_ENTRIES": &cfg.Engine.MaxBatchEntries,
		"MEMQ_MAX_BATCH_BYTES":   &cfg.Engine.MaxBatchBytes,
		"MEMQ_DEFAULT_MOVE_RATE": &cfg.Engine.DefaultMoveRate,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: must be an integer", key)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv("MEMQ_AUTH_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MEMQ_AUTH_ENABLED: must be a boolean")
		}
		cfg.Auth.Enabled = b
	}
	return nil
}

// Validate checks the ranges of the engine tunables.
func (c *AppConfig) Validate() error {
	if c.Server.Port == "" {
		return errors.New("port is required")
	}
	if c.Identity.Region == "" || c.Identity.AccountID == "" {
		return errors.New("region and account id are required")
	}
	if c.Engine.PurgeCooldown < 0 || c.Engine.DedupWindow < 0 {
		return errors.New("purge cooldown and dedup window must not be negative")
	}
	if c.Engine.MaxBatchEntries < 1 {
		return errors.New("maxBatchEntries must be positive")
	}
	if c.Engine.MaxBatchBytes < 1 {
		return errors.New("maxBatchBytes must be positive")
	}
	if c.Engine.DefaultMoveRate < 1 || c.Engine.DefaultMoveRate > 500 {
		return errors.New("defaultMoveRate must be between 1 and 500")
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return errors.New("jwt secret is required when auth is enabled")
	}
	return nil
}
