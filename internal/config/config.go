package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	// Loads .env from the working directory before Load reads the environment
	_ "github.com/joho/godotenv/autoload"
)

// DefaultFile is the optional config file looked up in the working directory.
const DefaultFile = "auditsmart.toml"

// Config holds all configuration for auditsmart
type Config struct {
	AuditAPI AuditAPIConfig `toml:"audit_api"`
	Database DatabaseConfig `toml:"database"`
	Wallet   WalletConfig   `toml:"wallet"`
	Server   ServerConfig   `toml:"server"`
	Compiler string         `toml:"compiler" validate:"oneof=remote local"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Logging  LoggingConfig  `toml:"logging"`
}

// AuditAPIConfig holds the remote audit service settings
type AuditAPIConfig struct {
	URL            string `toml:"url" validate:"required,url"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gte=0"`
}

// DatabaseConfig holds storage settings
type DatabaseConfig struct {
	Driver string `toml:"driver" validate:"oneof=sqlite postgres"`
	// URL is the postgres DSN
	URL string `toml:"url" validate:"required_if=Driver postgres"`
	// Path is the sqlite file
	Path string `toml:"path" validate:"required_if=Driver sqlite"`
}

// WalletConfig holds the signing wallet settings
type WalletConfig struct {
	RPCURL string `toml:"rpc_url" validate:"omitempty,url"`
	// PrivateKey is the hex signing key. Without it no wallet is available.
	PrivateKey  string `toml:"private_key"`
	NetworkName string `toml:"network_name" validate:"required"`
	AutoApprove bool   `toml:"auto_approve"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	// Port 0 picks a free port
	Port int `toml:"port" validate:"gte=0,lte=65535"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=text json"`
	// File receives log output. Empty discards logs in stdio mode.
	File string `toml:"file"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	dbPath := "auditsmart.db"
	if home, err := os.UserHomeDir(); err == nil {
		dbPath = filepath.Join(home, "auditsmart.db")
	}

	return &Config{
		AuditAPI: AuditAPIConfig{
			URL:            "https://auditsmartai-mvp.onrender.com/api/v1",
			TimeoutSeconds: 120,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   dbPath,
		},
		Wallet: WalletConfig{
			RPCURL:      "http://localhost:8545",
			NetworkName: "L1X",
			AutoApprove: true,
		},
		Compiler: "remote",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the config file at path and
// the environment, in increasing precedence. An empty path reads DefaultFile
// if it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := loadFile(cfg, path); err != nil {
		return nil, err
	}
	applyEnv(cfg)

	// If DATABASE_URL is set, default to postgres
	if cfg.Database.URL != "" && os.Getenv("DATABASE_DRIVER") == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.Driver = "postgres"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.HasWallet() && strings.TrimSpace(c.Wallet.RPCURL) == "" {
		return errors.New("invalid configuration: RPC_URL is required with WALLET_PRIVATE_KEY")
	}
	return nil
}

// HasWallet reports whether a signing key is configured
func (c *Config) HasWallet() bool {
	return strings.TrimSpace(c.Wallet.PrivateKey) != ""
}

func loadFile(cfg *Config, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return fmt.Errorf("parsing TOML: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.AuditAPI.URL = getEnv("AUDIT_API_URL", cfg.AuditAPI.URL)
	cfg.AuditAPI.TimeoutSeconds = getEnvInt("AUDIT_API_TIMEOUT", cfg.AuditAPI.TimeoutSeconds)

	cfg.Database.Driver = getEnv("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.Path = getEnv("SQLITE_PATH", cfg.Database.Path)

	cfg.Wallet.RPCURL = getEnv("RPC_URL", cfg.Wallet.RPCURL)
	cfg.Wallet.PrivateKey = getEnv("WALLET_PRIVATE_KEY", cfg.Wallet.PrivateKey)
	cfg.Wallet.NetworkName = getEnv("NETWORK_NAME", cfg.Wallet.NetworkName)
	cfg.Wallet.AutoApprove = getEnvBool("AUTO_APPROVE", cfg.Wallet.AutoApprove)

	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)
	cfg.Compiler = getEnv("COMPILER", cfg.Compiler)
	cfg.Metrics.Enabled = getEnvBool("METRICS_ENABLED", cfg.Metrics.Enabled)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.File = getEnv("LOG_FILE", cfg.Logging.File)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}
