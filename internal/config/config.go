package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"todone/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Remote     RemoteConfig     `yaml:"remote"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Sync       SyncConfig       `yaml:"sync"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Exports    ExportConfig     `yaml:"exports"`
	Google     GoogleConfig     `yaml:"google"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Projects   []models.Project `yaml:"projects"`
	Labels     []models.Label   `yaml:"labels"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

// RemoteConfig describes the remote Todone server the sync engine drains
// against.
type RemoteConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	APIExtra       string  `yaml:"api_extra"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RPS            float64 `yaml:"rps"`
	Burst          int     `yaml:"burst"`
	CacheTTL       int     `yaml:"cache_ttl"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// SyncConfig controls the drain loop and retry policy.
type SyncConfig struct {
	PollInterval      string  `yaml:"poll_interval"`
	ConnectivityProbe string  `yaml:"connectivity_probe"`
	BatchSize         int     `yaml:"batch_size"`
	MaxRetries        int     `yaml:"max_retries"`
	InitialDelay      string  `yaml:"initial_delay"`
	MaxDelay          string  `yaml:"max_delay"`
	BackoffFactor     float64 `yaml:"backoff_factor"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	HealthCheckPort   int    `yaml:"health_check_port"`
	LogLevel          string `yaml:"log_level"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type GoogleConfig struct {
	GoogleCredentialsFile string `yaml:"credentials_file"`
	ProjectsSpreadSheetID string `yaml:"projects_spreadsheet_id"`
}

// TelegramConfig configures the optional notifier used to surface
// dead-lettered sync items and due reminders.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
	Debug    bool   `yaml:"debug"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Remote.BaseURL == "" {
		return errors.New("remote base_url is required")
	}

	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Sync.BackoffFactor < 0 {
		return errors.New("sync backoff_factor must be non-negative")
	}

	return ValidateProjects(c.Projects)
}

// ValidateProjects rejects seed projects with empty or duplicate ids.
func ValidateProjects(projects []models.Project) error {
	projectIDs := make(map[string]bool)
	for _, p := range projects {
		if p.ID == "" {
			return fmt.Errorf("project '%s' has empty ID", p.Name)
		}
		if projectIDs[p.ID] {
			return fmt.Errorf("duplicate project ID found: %s", p.ID)
		}
		projectIDs[p.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Remote.TimeoutSeconds == 0 {
		c.Remote.TimeoutSeconds = 10
	}

	// Sync defaults
	if c.Sync.PollInterval == "" {
		c.Sync.PollInterval = "2s"
	}
	if c.Sync.ConnectivityProbe == "" {
		c.Sync.ConnectivityProbe = "15s"
	}
	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = models.DefaultSyncBatchSize
	}
	if c.Sync.MaxRetries == 0 {
		c.Sync.MaxRetries = 5
	}
	if c.Sync.InitialDelay == "" {
		c.Sync.InitialDelay = "2s"
	}
	if c.Sync.MaxDelay == "" {
		c.Sync.MaxDelay = "1m"
	}
	if c.Sync.BackoffFactor == 0 {
		c.Sync.BackoffFactor = 2
	}
}

// CacheTTLDuration returns the remote read-cache TTL.
func (c *RemoteConfig) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// PollIntervalDuration parses Sync.PollInterval with a 2s fallback.
func (c *SyncConfig) PollIntervalDuration() time.Duration {
	return parseDurationOr(c.PollInterval, 2*time.Second)
}

// ConnectivityProbeDuration parses Sync.ConnectivityProbe with a 15s fallback.
func (c *SyncConfig) ConnectivityProbeDuration() time.Duration {
	return parseDurationOr(c.ConnectivityProbe, 15*time.Second)
}

// InitialDelayDuration parses Sync.InitialDelay with a 2s fallback.
func (c *SyncConfig) InitialDelayDuration() time.Duration {
	return parseDurationOr(c.InitialDelay, 2*time.Second)
}

// MaxDelayDuration parses Sync.MaxDelay with a 1m fallback.
func (c *SyncConfig) MaxDelayDuration() time.Duration {
	return parseDurationOr(c.MaxDelay, time.Minute)
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
