package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/audit"
	auditPostgres "github.com/frahmantamala/tracker-bot/internal/audit/postgres"
	"github.com/frahmantamala/tracker-bot/internal/auth"
	"github.com/frahmantamala/tracker-bot/internal/bot"
	"github.com/frahmantamala/tracker-bot/internal/core/events"
	"github.com/frahmantamala/tracker-bot/internal/github"
	"github.com/frahmantamala/tracker-bot/internal/report"
	"github.com/frahmantamala/tracker-bot/internal/telegram"
	"github.com/frahmantamala/tracker-bot/internal/tracker"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// App holds the services shared by the server and the polling worker.
type App struct {
	Config       *internal.Config
	Logger       *slog.Logger
	Policy       *access.Policy
	PolicyIssues []access.ParseIssue

	DB         *sqlx.DB
	Bus        *events.EventBus
	Tracker    *tracker.Client
	Telegram   *telegram.Client
	Auth       *auth.Service
	Reports    *report.Service
	GitHub     *github.Service
	Workflows  *github.WorkflowService
	Audit      *audit.Service
	Dispatcher *bot.Dispatcher
}

func newApp(cfg *internal.Config, log *slog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: log, Bus: events.NewEventBus(log)}
	app.Policy, app.PolicyIssues = buildPolicy(cfg.Access, log)

	if cfg.Database.Source != "" {
		db, err := initDB(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		app.DB = db

		gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
			Logger: gormLogger.Discard,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to open gorm: %w", err)
		}

		repo := auditPostgres.NewReportRequestRepository(gormDB)
		audit.NewRecorder(repo, log).Register(app.Bus)
		app.Audit = audit.NewService(repo, log)
	} else {
		log.Warn("database source not configured, report audit log disabled")
	}

	app.Tracker = tracker.NewClient(tracker.Config{
		BaseURL:         cfg.Tracker.BaseURL,
		Email:           cfg.Tracker.Email,
		APIToken:        cfg.Tracker.APIToken,
		PageSize:        cfg.Tracker.PageSize,
		WorklogPageSize: cfg.Tracker.WorklogPageSize,
		Timeout:         cfg.Tracker.Timeout,
		MaxRetries:      cfg.Tracker.MaxRetries,
		RetryBackoff:    cfg.Tracker.RetryBackoff,
	}, log)

	app.Telegram = telegram.NewClient(telegram.Config{
		Token:   cfg.Telegram.BotToken,
		APIURL:  cfg.Telegram.APIURL,
		Timeout: cfg.Telegram.RequestTimeout,
	}, log)

	tokenGen := auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.Issuer, cfg.Security.AccessTokenDuration)
	app.Auth = auth.NewService(tokenGen, app.Policy, log)
	app.Reports = report.NewService(app.Tracker, app.Policy, app.Bus, cfg.Report.Concurrency, log)
	app.GitHub = github.NewService(app.Tracker, cfg.Report.Concurrency, log)

	var runner bot.WorkflowRunner
	settings, workflowIssues := buildWorkflows(cfg.GitHub, log)
	app.PolicyIssues = append(app.PolicyIssues, workflowIssues...)
	if settings.Len() > 0 {
		client := github.NewClient(github.ClientConfig{
			APIURL:       cfg.GitHub.APIURL,
			Token:        cfg.GitHub.Token,
			Timeout:      cfg.GitHub.Timeout,
			MaxRetries:   cfg.Tracker.MaxRetries,
			RetryBackoff: cfg.Tracker.RetryBackoff,
		}, log)
		app.Workflows = github.NewWorkflowService(client, settings, cfg.Report.Concurrency, log)
		runner = app.Workflows
		log.Info("github workflows configured", "workflows", settings.Len(), "repos", len(settings.Repos()))
	}

	if cfg.Telegram.ChatID == 0 {
		log.Warn("telegram chat_id not configured, supergroup features disabled")
	}
	b := bot.New(app.Telegram, app.Reports, app.Tracker, app.Auth, runner, app.Policy, cfg.Telegram.ChatID, log)
	app.Dispatcher = bot.NewDispatcher(b, bot.DispatcherConfig{
		Workers:       cfg.Telegram.Workers,
		QueueSize:     cfg.Telegram.QueueSize,
		HandleTimeout: cfg.Report.Timeout,
	}, log)

	return app, nil
}

// Close stops the dispatcher, waits for in-flight events and closes the
// database.
func (a *App) Close(ctx context.Context) {
	a.Dispatcher.Shutdown()
	if err := a.Bus.Wait(ctx); err != nil {
		a.Logger.Warn("event handlers still running at shutdown", "error", err)
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error("database close error", "error", err)
		}
	}
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dbConn.PingContext(ctx); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
