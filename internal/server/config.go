package server

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/txn2/mcp-sapbo/pkg/tools"
)

// Config holds the complete server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	SAPBO   SAPBOConfig   `yaml:"sapbo"`
	Catalog CatalogConfig `yaml:"catalog"`
	Tools   ToolsConfig   `yaml:"tools"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Name      string `yaml:"name"`
	Version   string `yaml:"version"`
	Transport string `yaml:"transport"` // "stdio", "http"
	Address   string `yaml:"address"`
}

// SAPBOConfig configures the BusinessObjects REST connection.
type SAPBOConfig struct {
	URL          string        `yaml:"url"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	AuthType     string        `yaml:"auth_type"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	Timeout      time.Duration `yaml:"timeout"`
	RetryMax     int           `yaml:"retry_max"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// CatalogConfig configures catalog caching.
type CatalogConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	StaleFallback bool          `yaml:"stale_fallback"`
}

// ToolsConfig customizes the registered tools.
type ToolsConfig struct {
	Descriptions map[tools.ToolName]string `yaml:"descriptions"`
}

// LoadConfig loads configuration from a file.
// The path is expected to come from command line arguments, controlled by the administrator.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// ConfigFromEnv builds a configuration from environment variables only,
// for running without a config file.
func ConfigFromEnv() *Config {
	cfg := &Config{
		SAPBO: SAPBOConfig{
			URL:      os.Getenv("SAP_BO_REST_API_URL"),
			Username: os.Getenv("SAP_BO_USERNAME"),
			Password: os.Getenv("SAP_BO_PASSWORD"),
			AuthType: os.Getenv("SAP_BO_AUTH_TYPE"),
		},
	}
	applyDefaults(cfg)
	return cfg
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Server.Name == "" {
		cfg.Server.Name = "mcp-sapbo"
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = Version
	}
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = "stdio"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Catalog.TTL == 0 {
		cfg.Catalog.TTL = 5 * time.Minute
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.SAPBO.URL == "" {
		errs = append(errs, "sapbo.url is required")
	}
	if c.SAPBO.Username == "" {
		errs = append(errs, "sapbo.username is required")
	}
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		errs = append(errs, fmt.Sprintf("server.transport must be stdio or http, got %q", c.Server.Transport))
	}
	if c.Server.Transport == "http" && c.Server.Address == "" {
		errs = append(errs, "server.address is required for http transport")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
