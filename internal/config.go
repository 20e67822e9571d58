package internal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	AppEnv        string              `mapstructure:"app_env"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Tracker       TrackerConfig       `mapstructure:"tracker"`
	Telegram      TelegramConfig      `mapstructure:"telegram"`
	GitHub        GitHubConfig        `mapstructure:"github"`
	Access        AccessConfig        `mapstructure:"access"`
	Report        ReportConfig        `mapstructure:"report"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

// SecurityConfig signs the report API tokens.
type SecurityConfig struct {
	JWTSecret           string        `mapstructure:"jwt_secret" validate:"required,min=32"`
	Issuer              string        `mapstructure:"issuer"`
	AccessTokenDuration time.Duration `mapstructure:"access_token_duration" validate:"required,min=1m"`
}

type TrackerConfig struct {
	BaseURL         string        `mapstructure:"base_url" validate:"required,url"`
	Email           string        `mapstructure:"email" validate:"required"`
	APIToken        string        `mapstructure:"api_token" validate:"required"`
	PageSize        int           `mapstructure:"page_size"`
	WorklogPageSize int           `mapstructure:"worklog_page_size"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
}

type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token" validate:"required"`
	APIURL         string        `mapstructure:"api_url"`
	ChatID         int64         `mapstructure:"chat_id"`
	WebhookURL     string        `mapstructure:"webhook_url"`
	WebhookSecret  string        `mapstructure:"webhook_secret"`
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
	PollTimeout    time.Duration `mapstructure:"poll_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// GitHubConfig covers the pull request webhook and the workflow commands.
// WorkflowSettings keeps its delimited string form until start-up.
type GitHubConfig struct {
	WebhookAPIKeyHash string        `mapstructure:"webhook_api_key_hash"`
	Token             string        `mapstructure:"token"`
	APIURL            string        `mapstructure:"api_url"`
	WorkflowSettings  string        `mapstructure:"workflow_settings"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// AccessConfig keeps the policy settings in their delimited string form.
// They are parsed once at start-up.
type AccessConfig struct {
	SuperAdminList               string `mapstructure:"super_admin_list"`
	AvailabilityByKeys           string `mapstructure:"availability_by_keys"`
	RelationByNameOrEmail        string `mapstructure:"relation_by_name_or_email"`
	SalaryRelationByTgAndProject string `mapstructure:"salary_relation_by_tg_and_project"`
}

type ReportConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Tracker.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("tracker config: %v", err))
	}

	if err := c.Telegram.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("telegram config: %v", err))
	}

	if err := c.GitHub.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("github config: %v", err))
	}

	if err := c.Observability.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.JWTSecret) < 32 {
		return errors.New("jwt secret must be at least 32 characters")
	}
	if c.AccessTokenDuration < time.Minute {
		return errors.New("access_token_duration must be at least 1m")
	}
	return nil
}

func (c *TrackerConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base_url %q", c.BaseURL)
	}
	if c.Email == "" || c.APIToken == "" {
		return errors.New("email and api_token are required")
	}
	return nil
}

func (c *TelegramConfig) Validate() error {
	if c.BotToken == "" {
		return errors.New("bot_token is required")
	}
	if c.WebhookURL != "" && c.WebhookSecret == "" {
		return errors.New("webhook_secret is required when webhook_url is set")
	}
	return nil
}

func (c *GitHubConfig) Validate() error {
	if strings.TrimSpace(c.WorkflowSettings) != "" && c.Token == "" {
		return errors.New("token is required when workflow_settings is set")
	}
	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid api_url %q", c.APIURL)
		}
	}
	return nil
}

func (c *LoggingConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown level %q", c.Level)
	}
	switch strings.ToLower(c.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("unknown format %q", c.Format)
	}
	return nil
}
