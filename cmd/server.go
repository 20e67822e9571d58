package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/tracker-bot/internal/audit"
	"github.com/frahmantamala/tracker-bot/internal/auth"
	"github.com/frahmantamala/tracker-bot/internal/github"
	"github.com/frahmantamala/tracker-bot/internal/report"
	"github.com/frahmantamala/tracker-bot/internal/telegram"
	"github.com/frahmantamala/tracker-bot/internal/transport/rest"
	"github.com/frahmantamala/tracker-bot/internal/transport/swagger"
	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
)

var setWebhook bool

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server: report API, Telegram webhook and GitHub webhook`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startHTTPServer()
	},
}

func startHTTPServer() error {
	cfg, log, err := loadValidConfig()
	if err != nil {
		return err
	}

	app, err := newApp(cfg, log)
	if err != nil {
		return err
	}

	spec, err := swagger.Load(context.Background(), cfg.Server.OpenAPIPath)
	if err != nil {
		app.Close(context.Background())
		return err
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, handlersFor(app, spec), cfg.Server.AllowedOrigins, log)

	if cfg.Telegram.WebhookURL != "" && setWebhook {
		if err := app.Telegram.SetWebhook(context.Background(), cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			app.Close(context.Background())
			return fmt.Errorf("failed to set telegram webhook: %w", err)
		}
		log.Info("telegram webhook registered", "url", cfg.Telegram.WebhookURL)
	}

	app.Dispatcher.Start()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	var runErr error
	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down...", "signal", sig)
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			runErr = err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server shutdown error", "error", err)
	}
	app.Close(ctx)

	log.Info("Server stopped")
	return runErr
}

func handlersFor(app *App, spec *swagger.Spec) rest.Handlers {
	cfg := app.Config

	health := rest.NewHealthHandler(nil)
	if app.DB != nil {
		health = rest.NewHealthHandler(app.DB.DB)
	}

	h := rest.Handlers{
		Health: health,
		Auth:   auth.NewHandler(app.Auth),
		Report: report.NewHandler(app.Reports),
		Policy: rest.NewPolicyHandler(app.Policy, app.PolicyIssues, app.Logger),
		Spec:   spec,
	}
	if app.Audit != nil {
		h.Audit = audit.NewHandler(app.Audit)
	}
	if cfg.GitHub.WebhookAPIKeyHash != "" {
		h.GitHub = github.NewHandler(app.GitHub, cfg.GitHub.WebhookAPIKeyHash, app.Logger)
	}
	if cfg.Telegram.WebhookSecret != "" {
		h.Telegram = telegram.NewWebhookHandler(cfg.Telegram.WebhookSecret, app.Dispatcher, app.Logger)
	}
	return h
}

func init() {
	httpServerCmd.Flags().BoolVar(&setWebhook, "set-webhook", false, "register telegram.webhook_url with Telegram before serving")
}
