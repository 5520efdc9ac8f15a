package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Database DatabaseConfig `yaml:"database"`
	Scraper  ScraperConfig  `yaml:"scraper"`
	Detector DetectorConfig `yaml:"detector"`
	Server   struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // "console" or "json"
	} `yaml:"log"`
}

// TelegramConfig contains configuration for the MTProto client.
type TelegramConfig struct {
	APIID       int    `yaml:"api_id"`
	APIHash     string `yaml:"api_hash"`
	Phone       string `yaml:"phone"`
	Password    string `yaml:"password"`
	SessionFile string `yaml:"session_file"`
}

// DatabaseConfig contains configuration for the database connection.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // "postgres" or "sqlite"
	URL             string        `yaml:"url"`
	ConnectAttempts int           `yaml:"connect_attempts"`
	ConnectDelay    time.Duration `yaml:"connect_delay"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

// ScraperConfig drives backfill and live listening.
type ScraperConfig struct {
	Channels      []string `yaml:"channels"`
	BackfillLimit int      `yaml:"backfill_limit"` // 0 walks the whole history
	MediaDir      string   `yaml:"media_dir"`
	MaxMediaBytes int64    `yaml:"max_media_bytes"`
	ControlPort   string   `yaml:"control_port"`
}

// DetectorConfig points at the object-detection model service.
type DetectorConfig struct {
	URL      string        `yaml:"url"`
	Timeout  time.Duration `yaml:"timeout"`
	Interval time.Duration `yaml:"interval"`
}

// DefaultChannels are scraped when the config names none.
var DefaultChannels = []string{
	"lobelia4cosmetics",
	"tikvahpharma",
	"who_news",
}

const (
	DefaultMaxMediaBytes = 20 * 1024 * 1024
	DefaultBackfillLimit = 100
)

// LoadConfig reads configuration from the specified YAML file. Values may refer
// to environment variables as ${NAME}; a .env file in the working directory is
// loaded first when present.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	// Seeded before decoding so that an explicit backfill_limit: 0 (whole history)
	// is kept.
	config := &Config{Scraper: ScraperConfig{BackfillLimit: DefaultBackfillLimit}}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Telegram.SessionFile == "" {
		c.Telegram.SessionFile = "session.json"
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.ConnectAttempts == 0 {
		c.Database.ConnectAttempts = 5
	}
	if c.Database.ConnectDelay == 0 {
		c.Database.ConnectDelay = 3 * time.Second
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}

	if len(c.Scraper.Channels) == 0 {
		c.Scraper.Channels = append([]string(nil), DefaultChannels...)
	}
	if c.Scraper.MediaDir == "" {
		c.Scraper.MediaDir = "data/raw/telegram_media"
	}
	if c.Scraper.MaxMediaBytes == 0 {
		c.Scraper.MaxMediaBytes = DefaultMaxMediaBytes
	}
	if c.Scraper.ControlPort == "" {
		c.Scraper.ControlPort = "8081"
	}

	if c.Detector.URL == "" {
		c.Detector.URL = "http://localhost:8001"
	}
	if c.Detector.Timeout == 0 {
		c.Detector.Timeout = 60 * time.Second
	}

	if c.Server.Port == "" {
		c.Server.Port = "8000"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "database.url")
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("invalid config: database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Scraper.MaxMediaBytes < 0 {
		return fmt.Errorf("invalid config: scraper.max_media_bytes must not be negative")
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid config: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateTelegram checks the settings needed to talk to Telegram.
func (c *Config) ValidateTelegram() error {
	var missing []string
	if c.Telegram.APIID == 0 {
		missing = append(missing, "telegram.api_id")
	}
	if c.Telegram.APIHash == "" {
		missing = append(missing, "telegram.api_hash")
	}
	if c.Telegram.Phone == "" {
		missing = append(missing, "telegram.phone")
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid config: missing %s", strings.Join(missing, ", "))
	}
	return nil
}
