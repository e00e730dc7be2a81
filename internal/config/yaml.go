// Package config models the legacy.yaml configuration file and its
// defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level legacy configuration file.
type YAMLConfig struct {
	Environment string          `yaml:"environment" mapstructure:"environment"`
	Server      ServerConfig    `yaml:"server" mapstructure:"server"`
	Database    DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Auth        AuthConfig      `yaml:"auth" mapstructure:"auth"`
	RateLimit   RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Storage     StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Mail        MailConfig      `yaml:"mail" mapstructure:"mail"`
	Logging     LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host" mapstructure:"host"`
	Port            int        `yaml:"port" mapstructure:"port"`
	MaxBodySize     string     `yaml:"max_body_size" mapstructure:"max_body_size"`
	ShutdownTimeout string     `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	PublicURL       string     `yaml:"public_url" mapstructure:"public_url"`
	CORS            CORSConfig `yaml:"cors" mapstructure:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins" mapstructure:"origins"`
}

// DatabaseConfig selects the SQL backend.
type DatabaseConfig struct {
	Driver       string `yaml:"driver" mapstructure:"driver"`
	DSN          string `yaml:"dsn" mapstructure:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns" mapstructure:"max_open_conns"`
}

// AuthConfig controls sessions, password hashing and legacy bearer tokens.
type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	SessionTTL   string `yaml:"session_ttl" mapstructure:"session_ttl"`
	BcryptCost   int    `yaml:"bcrypt_cost" mapstructure:"bcrypt_cost"`
	CookieSecure bool   `yaml:"cookie_secure" mapstructure:"cookie_secure"`
}

// RateLimitConfig controls the failed-login limiter and the per-IP request
// limiters.
type RateLimitConfig struct {
	Backend        string `yaml:"backend" mapstructure:"backend"` // memory or redis
	RedisURL       string `yaml:"redis_url" mapstructure:"redis_url"`
	Window         string `yaml:"window" mapstructure:"window"`
	MaxAttempts    int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	IPRequests     int    `yaml:"ip_requests" mapstructure:"ip_requests"`
	IPWindow       string `yaml:"ip_window" mapstructure:"ip_window"`
	AuthIPRequests int    `yaml:"auth_ip_requests" mapstructure:"auth_ip_requests"`
}

// StorageConfig describes the S3-compatible bucket holding archive files.
type StorageConfig struct {
	Bucket         string `yaml:"bucket" mapstructure:"bucket"`
	Region         string `yaml:"region" mapstructure:"region"`
	Endpoint       string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey      string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey      string `yaml:"secret_key" mapstructure:"secret_key"`
	UploadExpiry   string `yaml:"upload_expiry" mapstructure:"upload_expiry"`
	DownloadExpiry string `yaml:"download_expiry" mapstructure:"download_expiry"`
	QuotaBytes     int64  `yaml:"quota_bytes" mapstructure:"quota_bytes"`
}

// MailConfig configures outgoing mail. An empty SMTPHost logs messages
// instead of sending them.
type MailConfig struct {
	SMTPHost   string `yaml:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort   int    `yaml:"smtp_port" mapstructure:"smtp_port"`
	Username   string `yaml:"username" mapstructure:"username"`
	Password   string `yaml:"password" mapstructure:"password"`
	From       string `yaml:"from" mapstructure:"from"`
	FromName   string `yaml:"from_name" mapstructure:"from_name"`
	Encryption string `yaml:"encryption" mapstructure:"encryption"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables: ${VAR_NAME}
	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Environment: "development",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			MaxBodySize:     "10MB",
			ShutdownTimeout: "30s",
			CORS: CORSConfig{
				Origins: []string{"http://localhost:3000"},
			},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "data/legacy.db",
		},
		Auth: AuthConfig{
			SessionTTL: "24h",
			BcryptCost: 12,
		},
		RateLimit: RateLimitConfig{
			Backend:        "memory",
			Window:         "15m",
			MaxAttempts:    15,
			IPRequests:     100,
			IPWindow:       "15m",
			AuthIPRequests: 20,
		},
		Storage: StorageConfig{
			Region:         "us-east-1",
			UploadExpiry:   "5m",
			DownloadExpiry: "1h",
			QuotaBytes:     20 << 30,
		},
		Mail: MailConfig{
			SMTPPort:   587,
			FromName:   "Francis Legacy",
			Encryption: "STARTTLS",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers every default value with v so that environment
// variables can override keys that are absent from the config file.
func SetDefaults(v *viper.Viper) error {
	data, err := yaml.Marshal(DefaultYAMLConfig())
	if err != nil {
		return err
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	setDefaults(v, "", tree)
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]interface{}) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]interface{}); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// FromViper decodes the effective configuration held by v.
func FromViper(v *viper.Viper) (*YAMLConfig, error) {
	cfg := DefaultYAMLConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	cfg := DefaultYAMLConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IsProduction reports whether the environment is "production".
func (c *YAMLConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Duration parses s, returning def when s is empty or invalid.
func Duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// ParseByteSize parses sizes such as "512KB", "10MB" or "1GB". A bare number
// is a byte count.
func ParseByteSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	mult := int64(1)
	for _, u := range []struct {
		suffix string
		mult   int64
	}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1}} {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			mult = u.mult
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}
