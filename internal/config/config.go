package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	Storage         string `json:"storage"`
	DBPath          string `json:"db_path"`
	WebPort         int    `json:"web_port"`
	ExcludeZeroDays bool   `json:"exclude_zero_days"`
}

func Default() Config {
	return Config{Storage: "sqlite", WebPort: 8080}
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "punch", "config.json"), nil
}

func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

func Load(path string) (Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return Config{}, err
	}

	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return config, nil
}

func Save(path string, cfg Config) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv overlays PUNCH_* environment variables on top of file values.
// Populated by a .env file in development, real env in deployment.
func ApplyEnv(cfg Config) Config {
	if value := os.Getenv("PUNCH_STORAGE"); value != "" {
		cfg.Storage = value
	}
	if value := os.Getenv("PUNCH_DB"); value != "" {
		cfg.DBPath = value
	}
	if value := os.Getenv("PUNCH_PORT"); value != "" {
		if port, err := strconv.Atoi(value); err == nil {
			cfg.WebPort = port
		}
	}
	if value := os.Getenv("PUNCH_EXCLUDE_ZERO"); value != "" {
		if exclude, err := strconv.ParseBool(value); err == nil {
			cfg.ExcludeZeroDays = exclude
		}
	}
	return cfg
}
