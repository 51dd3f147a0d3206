package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

const DefaultGlamourStyle = "dark"

type AppConfig struct {
	DBPath       string
	SettingsPath string
	ExportDir    string
	BaseURL      string
	APIKey       string
	Model        string
}

func Parse() (AppConfig, error) {
	var cfg AppConfig

	flag.StringVar(&cfg.DBPath, "db-path", "", "path to the SQLite chat database")
	flag.StringVar(&cfg.SettingsPath, "settings-path", "", "path to the settings file")
	flag.StringVar(&cfg.ExportDir, "export-dir", "", "override export output directory")
	flag.StringVar(&cfg.BaseURL, "base-url", DetectBaseURL(""), "OpenAI-compatible API base URL")
	flag.StringVar(&cfg.Model, "model", DetectModel(""), "model name for generation")
	flag.Parse()

	cfg.APIKey = os.Getenv("OPENAI_API_KEY")

	dataDir, err := defaultDataDir()
	if err != nil {
		return cfg, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(dataDir, "chat.sqlite")
	}
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = filepath.Join(dataDir, "settings.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return cfg, fmt.Errorf("create db dir: %w", err)
	}

	return cfg, nil
}

func DetectBaseURL(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return os.Getenv("LOCALCHAT_BASE_URL")
}

func DetectModel(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if fromEnv := os.Getenv("LOCALCHAT_MODEL"); fromEnv != "" {
		return fromEnv
	}
	return "gpt-4o-mini"
}

func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "localchat"), nil
}
