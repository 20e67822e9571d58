package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/github"
	"github.com/frahmantamala/tracker-bot/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "TRACKERBOT"

var configDir string

var rootCmd = &cobra.Command{
	Use:   "tracker-bot",
	Short: "Tracker Bot",
	Long:  `Sprint time and compensation reports from Jira, delivered through a Telegram bot and a REST API.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// legacyEnv maps config keys to the environment names older deployments
// still set.
var legacyEnv = map[string]string{
	"access.super_admin_list":                  "SUPERADMIN_LIST",
	"access.availability_by_keys":              "AVAILABILITY_BY_KEYS",
	"access.relation_by_name_or_email":         "RELATION_BY_NAME_OR_EMAIL",
	"access.salary_relation_by_tg_and_project": "SALARY_RELATION_BY_TG_AND_PROJECT",
	"tracker.base_url":                         "JIRA_HOST",
	"tracker.email":                            "LOGIN",
	"tracker.api_token":                        "API_KEY",
	"telegram.bot_token":                       "BOT_TOKEN",
	"telegram.chat_id":                         "CHAT_ID",
	"github.webhook_api_key_hash":              "GITHUB_WEBHOOK_API_KEY_HASH",
	"github.token":                             "GITHUB_PERSONAL_ACCESS_TOKEN",
	"github.workflow_settings":                 "GITHUB_WORKFLOW_SETTINGS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "development")

	v.SetDefault("http_server.port", 8080)
	v.SetDefault("http_server.base_url", "")
	v.SetDefault("http_server.allowed_origins", "")
	v.SetDefault("http_server.read_header_timeout", 5*time.Second)
	v.SetDefault("http_server.read_timeout", 15*time.Second)
	v.SetDefault("http_server.idle_timeout", 60*time.Second)
	v.SetDefault("http_server.write_timeout", 2*time.Minute)
	v.SetDefault("http_server.openapi_path", "api/openapi.yml")

	v.SetDefault("database.source", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)

	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.issuer", "tracker-bot")
	v.SetDefault("security.access_token_duration", 24*time.Hour)

	v.SetDefault("tracker.base_url", "")
	v.SetDefault("tracker.email", "")
	v.SetDefault("tracker.api_token", "")
	v.SetDefault("tracker.page_size", 50)
	v.SetDefault("tracker.worklog_page_size", 100)
	v.SetDefault("tracker.timeout", 30*time.Second)
	v.SetDefault("tracker.max_retries", 3)
	v.SetDefault("tracker.retry_backoff", 500*time.Millisecond)

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.api_url", "https://api.telegram.org")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("telegram.webhook_url", "")
	v.SetDefault("telegram.webhook_secret", "")
	v.SetDefault("telegram.workers", 4)
	v.SetDefault("telegram.queue_size", 100)
	v.SetDefault("telegram.poll_timeout", 30*time.Second)
	v.SetDefault("telegram.request_timeout", time.Minute)

	v.SetDefault("github.webhook_api_key_hash", "")
	v.SetDefault("github.token", "")
	v.SetDefault("github.api_url", "https://api.github.com")
	v.SetDefault("github.workflow_settings", "")
	v.SetDefault("github.timeout", 30*time.Second)

	v.SetDefault("access.super_admin_list", "")
	v.SetDefault("access.availability_by_keys", "")
	v.SetDefault("access.relation_by_name_or_email", "")
	v.SetDefault("access.salary_relation_by_tg_and_project", "")

	v.SetDefault("report.concurrency", 4)
	v.SetDefault("report.timeout", 2*time.Minute)

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "text")
}

// loadConfig reads an optional config.yml from path, then the environment.
func loadConfig(path string) (*internal.Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy); err != nil {
			return nil, fmt.Errorf("error binding env %s: %w", legacy, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg internal.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// loadValidConfig is loadConfig plus validation and logger set-up.
func loadValidConfig() (*internal.Config, *slog.Logger, error) {
	cfg, err := loadConfig(configDir)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, setupLogger(cfg), nil
}

func setupLogger(cfg *internal.Config) *slog.Logger {
	logging := cfg.Observability.Logging
	if logging.Level == "" && logging.Format == "" {
		logger.Init(cfg.AppEnv)
		return logger.LoggerWrapper()
	}
	return logger.Configure(os.Stdout, logging.Level, logging.Format)
}

// buildPolicy parses the access settings. Skipped entries are logged, they
// never stop start-up.
func buildPolicy(cfg internal.AccessConfig, log *slog.Logger) (*access.Policy, []access.ParseIssue) {
	policy, issues := access.ParsePolicy(access.RawPolicy{
		SuperAdmins:           cfg.SuperAdminList,
		AvailabilityByKeys:    cfg.AvailabilityByKeys,
		RelationByNameOrEmail: cfg.RelationByNameOrEmail,
		CompensationRules:     cfg.SalaryRelationByTgAndProject,
	})
	for _, issue := range issues {
		log.Warn("skipped access policy entry", "setting", issue.Setting, "entry", issue.Entry, "reason", issue.Reason)
	}
	return policy, issues
}

// buildWorkflows parses the GitHub workflow settings the same way.
func buildWorkflows(cfg internal.GitHubConfig, log *slog.Logger) (*github.WorkflowSettings, []access.ParseIssue) {
	settings, issues := github.ParseWorkflowSettings(cfg.WorkflowSettings)
	for _, issue := range issues {
		log.Warn("skipped github workflow entry", "setting", issue.Setting, "entry", issue.Entry, "reason", issue.Reason)
	}
	return settings, issues
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory containing config.yml")

	rootCmd.AddCommand(httpServerCmd)
	rootCmd.AddCommand(migrateCmd)
}
