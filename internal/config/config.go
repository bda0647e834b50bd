package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Bot         BotConfig                 `json:"bot"`
}

type BasicConfig struct {
	ServerAddress        string `json:"server_address"`
	PublicBaseURL        string `json:"public_base_url"`
	UploadDir            string `json:"upload_dir"`
	ExportDir            string `json:"export_dir"`
	QueueSize            int    `json:"queue_size"`
	IngestTimeoutSeconds int    `json:"ingest_timeout_seconds"`
	ExportTTLMinutes     int    `json:"export_ttl_minutes"`
	ExportCleanMinutes   int    `json:"export_clean_minutes"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
	SSLMode  string `json:"ssl_mode"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// BotConfig carries the conversation constants. The confirmation code is
// injected here rather than hard-coded in the engine.
type BotConfig struct {
	ConfirmationCode string     `json:"confirmation_code"`
	CancelToken      string     `json:"cancel_token"`
	SkipMarker       string     `json:"skip_marker"`
	Branches         [][]string `json:"branches"`
	Categories       [][]string `json:"categories"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Bot.ConfirmationCode == "" {
		return nil, fmt.Errorf("bot.confirmation_code must be configured")
	}
	cfg.ApplyDefaults()

	baseDir := filepath.Dir(absPath)
	for name, db := range cfg.Databases {
		if db.DSN != "" && !filepath.IsAbs(db.DSN) && isFileDSN(name) {
			db.DSN = filepath.Join(baseDir, db.DSN)
			cfg.Databases[name] = db
		}
	}
	if !filepath.IsAbs(cfg.BasicConfig.UploadDir) {
		cfg.BasicConfig.UploadDir = filepath.Join(baseDir, cfg.BasicConfig.UploadDir)
	}
	if !filepath.IsAbs(cfg.BasicConfig.ExportDir) {
		cfg.BasicConfig.ExportDir = filepath.Join(baseDir, cfg.BasicConfig.ExportDir)
	}

	return &cfg, nil
}

// ApplyDefaults fills unset optional fields with their defaults.
func (cfg *Config) ApplyDefaults() {
	if cfg.BasicConfig.UploadDir == "" {
		cfg.BasicConfig.UploadDir = "data/uploads"
	}
	if cfg.BasicConfig.ExportDir == "" {
		cfg.BasicConfig.ExportDir = "data/exports"
	}
	if cfg.BasicConfig.QueueSize <= 0 {
		cfg.BasicConfig.QueueSize = 16
	}
	if cfg.BasicConfig.IngestTimeoutSeconds <= 0 {
		cfg.BasicConfig.IngestTimeoutSeconds = 30
	}
	if cfg.Bot.CancelToken == "" {
		cfg.Bot.CancelToken = "Cancel"
	}
	if cfg.Bot.SkipMarker == "" {
		cfg.Bot.SkipMarker = "."
	}
}

// sqlite keeps its whole database in the DSN path; network drivers don't.
func isFileDSN(driver string) bool {
	return driver == "sqlite" || driver == "sqlite3"
}
