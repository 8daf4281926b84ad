// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type BreakerConfig struct {
	MaxRequests      uint32 `yaml:"max_requests"`
	IntervalSeconds  int    `yaml:"interval_seconds"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
	FailureThreshold uint32 `yaml:"failure_threshold"`
}

// EMSConfig points at the EMS API and Master Calendar SOAP endpoints.
type EMSConfig struct {
	APIURL            string        `yaml:"api_url"`
	MasterCalendarURL string        `yaml:"master_calendar_url"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"-"` // Loaded from environment
	TimeoutSeconds    int           `yaml:"timeout_seconds"`
	CacheTTLMinutes   int           `yaml:"cache_ttl_minutes"`
	Breaker           BreakerConfig `yaml:"breaker"`
}

func (c EMSConfig) Enabled() bool {
	return c.APIURL != "" || c.MasterCalendarURL != ""
}

func (c EMSConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c EMSConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

type LDAPConfig struct {
	Enabled        bool   `yaml:"enabled"`
	URL            string `yaml:"url"`
	BindDN         string `yaml:"bind_dn"`
	BindPassword   string `yaml:"-"` // Loaded from environment
	BaseDN         string `yaml:"base_dn"`
	UserFilter     string `yaml:"user_filter"`
	NameAttribute  string `yaml:"name_attribute"`
	EmailAttribute string `yaml:"email_attribute"`
	PhoneAttribute string `yaml:"phone_attribute"`
	DefaultRegion  string `yaml:"default_region"`
	PageSize       uint32 `yaml:"page_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type EmailConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Sender          string `yaml:"sender"`
	AccessKeyID     string `yaml:"-"` // Loaded from environment
	SecretAccessKey string `yaml:"-"` // Loaded from environment
}

type ActivityConfig struct {
	WeekStart     string `yaml:"week_start"`
	RetentionDays int    `yaml:"retention_days"`
	MaxBuckets    int    `yaml:"max_buckets"`
}

// Weekday resolves WeekStart; Validate guarantees it parses.
func (c ActivityConfig) Weekday() time.Weekday {
	day, _ := parseWeekday(c.WeekStart)
	return day
}

type SchedulerConfig struct {
	ResetPurgeCron   string `yaml:"reset_purge_cron"`
	EMSRefreshCron   string `yaml:"ems_refresh_cron"`
	TrafficPruneCron string `yaml:"traffic_prune_cron"`
}

type SecurityConfig struct {
	ResetTokenTTLMinutes int `yaml:"reset_token_ttl_minutes"`
	LoginMaxAttempts     int `yaml:"login_max_attempts"`
	LoginLockoutMinutes  int `yaml:"login_lockout_minutes"`
}

type Config struct {
	App struct {
		Name                   string `yaml:"name"`
		Environment            string `yaml:"environment"`
		Port                   int    `yaml:"port"`
		BaseURL                string `yaml:"base_url"`
		Timezone               string `yaml:"timezone"`
		ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
		TrustProxy             bool   `yaml:"trust_proxy"`
		SecretKey              string `yaml:"-"` // Loaded from environment
	} `yaml:"app"`

	Database  DatabaseConfig  `yaml:"database"`
	EMS       EMSConfig       `yaml:"ems"`
	LDAP      LDAPConfig      `yaml:"ldap"`
	Email     EmailConfig     `yaml:"email"`
	Activity  ActivityConfig  `yaml:"activity"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Security  SecurityConfig  `yaml:"security"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML, overlays secrets from the environment, applies defaults
// and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Load sensitive values from environment
	cfg.App.SecretKey = os.Getenv("APP_SECRET_KEY")
	cfg.EMS.Password = os.Getenv("EMS_PASSWORD")
	cfg.LDAP.BindPassword = os.Getenv("LDAP_BIND_PASSWORD")
	cfg.Email.AccessKeyID = os.Getenv("AWS_SES_ACCESS_KEY_ID")
	cfg.Email.SecretAccessKey = os.Getenv("AWS_SES_SECRET_ACCESS_KEY")

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.App.Timezone == "" {
		c.App.Timezone = "UTC"
	}
	if c.App.ShutdownTimeoutSeconds == 0 {
		c.App.ShutdownTimeoutSeconds = 30
	}
	if c.EMS.TimeoutSeconds == 0 {
		c.EMS.TimeoutSeconds = 30
	}
	if c.EMS.CacheTTLMinutes == 0 {
		c.EMS.CacheTTLMinutes = 60
	}
	if c.EMS.Breaker.MaxRequests == 0 {
		c.EMS.Breaker.MaxRequests = 1
	}
	if c.EMS.Breaker.IntervalSeconds == 0 {
		c.EMS.Breaker.IntervalSeconds = 60
	}
	if c.EMS.Breaker.TimeoutSeconds == 0 {
		c.EMS.Breaker.TimeoutSeconds = 30
	}
	if c.EMS.Breaker.FailureThreshold == 0 {
		c.EMS.Breaker.FailureThreshold = 5
	}
	if c.LDAP.UserFilter == "" {
		c.LDAP.UserFilter = "(objectClass=person)"
	}
	if c.LDAP.NameAttribute == "" {
		c.LDAP.NameAttribute = "uid"
	}
	if c.LDAP.EmailAttribute == "" {
		c.LDAP.EmailAttribute = "mail"
	}
	if c.LDAP.PhoneAttribute == "" {
		c.LDAP.PhoneAttribute = "telephoneNumber"
	}
	if c.LDAP.DefaultRegion == "" {
		c.LDAP.DefaultRegion = "US"
	}
	if c.LDAP.PageSize == 0 {
		c.LDAP.PageSize = 200
	}
	if c.LDAP.TimeoutSeconds == 0 {
		c.LDAP.TimeoutSeconds = 10
	}
	if c.Activity.WeekStart == "" {
		c.Activity.WeekStart = "monday"
	}
	if c.Activity.RetentionDays == 0 {
		c.Activity.RetentionDays = 730
	}
	if c.Activity.MaxBuckets == 0 {
		c.Activity.MaxBuckets = 400
	}
	if c.Scheduler.ResetPurgeCron == "" {
		c.Scheduler.ResetPurgeCron = "*/15 * * * *"
	}
	if c.Scheduler.EMSRefreshCron == "" {
		c.Scheduler.EMSRefreshCron = "0 * * * *"
	}
	if c.Scheduler.TrafficPruneCron == "" {
		c.Scheduler.TrafficPruneCron = "30 3 * * *"
	}
	if c.Security.ResetTokenTTLMinutes == 0 {
		c.Security.ResetTokenTTLMinutes = 60
	}
	if c.Security.LoginMaxAttempts == 0 {
		c.Security.LoginMaxAttempts = 5
	}
	if c.Security.LoginLockoutMinutes == 0 {
		c.Security.LoginLockoutMinutes = 15
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("invalid app timezone %q: %w", c.App.Timezone, err)
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.EMS.Enabled() && c.EMS.Username == "" {
		return fmt.Errorf("ems username is required when an ems endpoint is configured")
	}

	if c.LDAP.Enabled {
		if c.LDAP.URL == "" {
			return fmt.Errorf("ldap url is required when ldap is enabled")
		}
		if c.LDAP.BaseDN == "" {
			return fmt.Errorf("ldap base_dn is required when ldap is enabled")
		}
	}

	if c.Email.Enabled {
		if c.Email.Region == "" || c.Email.Sender == "" {
			return fmt.Errorf("email region and sender are required when email is enabled")
		}
	}

	if _, err := parseWeekday(c.Activity.WeekStart); err != nil {
		return err
	}
	if c.Activity.RetentionDays < 0 {
		return fmt.Errorf("activity retention_days must be 0 or greater")
	}

	for name, expr := range map[string]string{
		"reset_purge_cron":   c.Scheduler.ResetPurgeCron,
		"ems_refresh_cron":   c.Scheduler.EMSRefreshCron,
		"traffic_prune_cron": c.Scheduler.TrafficPruneCron,
	} {
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("invalid scheduler %s %q: %w", name, expr, err)
		}
	}

	return nil
}

// Location returns the configured reporting timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func parseWeekday(raw string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	case "saturday":
		return time.Saturday, nil
	default:
		return time.Monday, fmt.Errorf("unsupported activity week_start: %q", raw)
	}
}
