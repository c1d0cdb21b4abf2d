// Package config handles dinghy configuration.
//
// Settings are layered, later layers winning: built-in defaults, the user
// config file (~/.config/dinghy/config.yaml), a .env file in the working
// directory, the process environment, and finally command-line flags
// (applied by the caller).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBaud is the serial baud rate used when none is configured.
// 115200 is what every MicroPython port ships with.
const DefaultBaud = 115200

// Config holds the dinghy runtime configuration.
type Config struct {
	// Port is the serial port of the board, or "auto" for autodetection.
	Port string `yaml:"port"`

	// Baud is the serial baud rate.
	Baud int `yaml:"baud"`

	// LocalPath is the default host directory for %rsync / %rlist.
	LocalPath string `yaml:"local_path"`

	// RemotePath is the default board directory for %rsync / %rlist.
	RemotePath string `yaml:"remote_path"`

	// Shell is the shell used by the %%shell magic.
	Shell string `yaml:"shell"`

	// DataDir overrides the directory holding the history database.
	DataDir string `yaml:"data_dir"`

	// LogLevel sets the diagnostic log level.
	LogLevel string `yaml:"log_level"`
}

func defaults() *Config {
	return &Config{
		Port:       "auto",
		Baud:       DefaultBaud,
		LocalPath:  "./local",
		RemotePath: "/",
		Shell:      "/bin/bash",
	}
}

// Load builds the configuration from all layers except flags.
func Load() (*Config, error) {
	cfg := defaults()

	if path, err := filePath(); err == nil {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// .env never overrides variables already set in the environment.
	_ = godotenv.Load()

	cfg.Port = getEnv("DINGHY_PORT", cfg.Port)
	cfg.Baud = getEnvInt("DINGHY_BAUD", cfg.Baud)
	cfg.LocalPath = getEnv("MP_LOCAL_PATH", cfg.LocalPath)
	cfg.RemotePath = getEnv("MP_REMOTE_PATH", cfg.RemotePath)
	cfg.Shell = getEnv("DINGHY_SHELL", cfg.Shell)
	cfg.DataDir = getEnv("DINGHY_DATA_DIR", cfg.DataDir)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	return cfg, nil
}

func filePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "dinghy", "config.yaml"), nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// HistoryPath returns the location of the execution history database.
func (c *Config) HistoryPath() (string, error) {
	dir := c.DataDir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return "", fmt.Errorf("locate data directory: %w", err)
		}
		dir = filepath.Join(base, "dinghy")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// EnvContext returns the template context for the %%template magic:
// the full process environment plus the resolved dinghy settings.
func (c *Config) EnvContext() map[string]string {
	ctx := make(map[string]string)
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				ctx[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	ctx["DINGHY_PORT"] = c.Port
	ctx["DINGHY_BAUD"] = strconv.Itoa(c.Baud)
	ctx["MP_LOCAL_PATH"] = c.LocalPath
	ctx["MP_REMOTE_PATH"] = c.RemotePath
	return ctx
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
