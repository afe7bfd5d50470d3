package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all assistantd configuration.
type Config struct {
	// HTTP server
	Host string `yaml:"host"`
	Port uint16 `yaml:"port"`

	// Agent runtime (Llama Stack-compatible)
	RuntimeURL     string  `yaml:"runtime_url"`
	RuntimeAPIKey  *string `yaml:"runtime_api_key"`
	RuntimeTimeout uint64  `yaml:"runtime_timeout_secs"`

	// Chat defaults
	MaxTokens         uint32 `yaml:"max_tokens"`
	AgentInstructions string `yaml:"agent_instructions"`

	// Paths
	DataDir string  `yaml:"data_dir"`
	LogDir  *string `yaml:"log_dir"`

	// Catalog sync
	SyncOnStartup bool   `yaml:"sync_on_startup"`
	SyncSchedule  string `yaml:"sync_schedule"` // cron expression, empty disables

	// Identity
	DevMode      bool   `yaml:"dev_mode"`
	DevUserEmail string `yaml:"dev_user_email"`
	DevUserName  string `yaml:"dev_user_name"`
	DevUserRole  string `yaml:"dev_user_role"`
}

// DefaultConfig returns a Config with all defaults applied.
func DefaultConfig() Config {
	return Config{
		Host:              "127.0.0.1",
		Port:              8080,
		RuntimeURL:        "http://localhost:8321",
		RuntimeTimeout:    120,
		MaxTokens:         512,
		AgentInstructions: "You are a helpful assistant. When you use a tool always respond with a summary of the result.",
		DataDir:           "./assistantd.data",
		SyncOnStartup:     true,
		SyncSchedule:      "@every 15m",
		DevUserEmail:      "dev@example.com",
		DevUserName:       "dev-user",
		DevUserRole:       "admin",
	}
}

// LoadConfig reads and parses the configuration file.
// Resolution order: ASSISTANTD_CONFIG env → ./assistantd.config.yaml → ./assistantd.config.yml
func LoadConfig() (*Config, error) {
	// Optional .env file, mirrors the deployment convention.
	godotenv.Load()

	path := os.Getenv("ASSISTANTD_CONFIG")
	if path == "" {
		candidates := []string{"assistantd.config.yaml", "assistantd.config.yml"}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.postDeserialize()
	return &cfg, nil
}

// applyEnv lets environment variables override file settings.
func (c *Config) applyEnv() {
	if v := os.Getenv("LLAMA_STACK_URL"); v != "" {
		c.RuntimeURL = v
	}
	if v := os.Getenv("DEV_MODE"); v != "" {
		c.DevMode = truthy(v)
	}
	if v := os.Getenv("DEV_USER_EMAIL"); v != "" {
		c.DevUserEmail = v
	}
	if v := os.Getenv("DEV_USER_USERNAME"); v != "" {
		c.DevUserName = v
	}
	if v := os.Getenv("DEV_USER_ROLE"); v != "" {
		c.DevUserRole = v
	}
}

// postDeserialize normalizes and validates config after YAML parsing.
func (c *Config) postDeserialize() {
	c.RuntimeURL = strings.TrimRight(strings.TrimSpace(c.RuntimeURL), "/")

	if c.RuntimeTimeout == 0 {
		c.RuntimeTimeout = 120
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 512
	}
	if c.DevUserRole == "" {
		c.DevUserRole = "admin"
	}
}

// Validate checks for configuration errors.
func (c *Config) Validate() error {
	if c.RuntimeURL == "" {
		return fmt.Errorf("runtime_url must be set")
	}
	if c.Port == 0 {
		return fmt.Errorf("port must be non-zero")
	}
	return nil
}

// DBPath returns the SQLite database file path.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "assistantd.db")
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
