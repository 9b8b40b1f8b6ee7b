package config

import (
	"errors"
	"fmt"
	"os"

	"labsched/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App          AppConfig          `yaml:"app"`
	Server       ServerConfig       `yaml:"server"`
	Auth         AuthConfig         `yaml:"auth"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Backup       BackupConfig       `yaml:"backup"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Logging      LoggingConfig      `yaml:"logging"`
	Reservations ReservationsConfig `yaml:"reservations"`
	Exports      ExportConfig       `yaml:"exports"`
	Google       GoogleConfig       `yaml:"google"`
	Labs         []models.Lab       `yaml:"labs"`
	Courses      []models.Course    `yaml:"courses"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type ServerConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_sec"`
}

type AuthConfig struct {
	JWTSecret       string `yaml:"jwt_secret"`
	TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
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

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type ReservationsConfig struct {
	MaxReservationDays int `yaml:"max_reservation_days"`
	ScheduleCacheTTL   int `yaml:"schedule_cache_ttl"`
	RateLimitRequests  int `yaml:"rate_limit_requests"`
	RateLimitWindow    int `yaml:"rate_limit_window"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type GoogleConfig struct {
	Enabled               bool   `yaml:"enabled"`
	GoogleCredentialsFile string `yaml:"credentials_file"`
	ScheduleSpreadsheetID string `yaml:"schedule_spreadsheet_id"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional, config values may reference its variables
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Expand environment variables before parsing the YAML
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
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "CHANGE_ME" {
		return errors.New("auth jwt secret is required")
	}

	if c.Google.Enabled {
		if c.Google.GoogleCredentialsFile == "" {
			return errors.New("google credentials file is required when sheets sync is enabled")
		}
		if c.Google.ScheduleSpreadsheetID == "" {
			return errors.New("google schedule spreadsheet id is required when sheets sync is enabled")
		}
	}

	if err := ValidateLabs(c.Labs); err != nil {
		return err
	}
	return ValidateCourses(c.Courses)
}

func ValidateLabs(labs []models.Lab) error {
	names := make(map[string]bool)
	for _, lab := range labs {
		if lab.Name == "" {
			return errors.New("lab with empty name in config")
		}
		if names[lab.Name] {
			return fmt.Errorf("duplicate lab name found: %s", lab.Name)
		}
		if lab.Capacity < 0 {
			return fmt.Errorf("lab '%s' has negative capacity", lab.Name)
		}
		names[lab.Name] = true
	}
	return nil
}

func ValidateCourses(courses []models.Course) error {
	codes := make(map[string]bool)
	for _, course := range courses {
		if course.Code == "" {
			return errors.New("course with empty code in config")
		}
		if codes[course.Code] {
			return fmt.Errorf("duplicate course code found: %s", course.Code)
		}
		codes[course.Code] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeoutSec == 0 {
		c.Server.ReadTimeoutSec = 15
	}
	if c.Server.WriteTimeoutSec == 0 {
		c.Server.WriteTimeoutSec = 30
	}
	if c.Server.ShutdownSec == 0 {
		c.Server.ShutdownSec = 10
	}
	if c.Auth.TokenTTLMinutes == 0 {
		c.Auth.TokenTTLMinutes = 12 * 60
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Reservations.MaxReservationDays == 0 {
		c.Reservations.MaxReservationDays = models.DefaultMaxReservationDays
	}
	if c.Reservations.ScheduleCacheTTL == 0 {
		c.Reservations.ScheduleCacheTTL = models.ScheduleCacheTTL
	}
	if c.Reservations.RateLimitRequests == 0 {
		c.Reservations.RateLimitRequests = models.DefaultRateLimitRequests
	}
	if c.Reservations.RateLimitWindow == 0 {
		c.Reservations.RateLimitWindow = models.DefaultRateLimitWindow
	}
}
