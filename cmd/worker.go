package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/tracker-bot/internal/telegram"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers that run without the HTTP server`,
}

var pollWorkerCmd = &cobra.Command{
	Use:   "poll",
	Short: "Process Telegram updates with long polling",
	Long:  `Pull Telegram updates with getUpdates and feed them to the bot worker pool. Useful when no public webhook URL exists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startPollWorker()
	},
}

var (
	maxWorkers   int
	jobQueueSize int
)

func startPollWorker() error {
	cfg, log, err := loadValidConfig()
	if err != nil {
		return err
	}
	cfg.Telegram.Workers = getIntFlag(maxWorkers, cfg.Telegram.Workers)
	cfg.Telegram.QueueSize = getIntFlag(jobQueueSize, cfg.Telegram.QueueSize)

	app, err := newApp(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// getUpdates is refused while a webhook is registered
	if err := app.Telegram.DeleteWebhook(ctx); err != nil {
		log.Warn("failed to delete telegram webhook", "error", err)
	}

	app.Dispatcher.Start()
	log.Info("telegram polling worker is running. Press Ctrl+C to stop.",
		"max_workers", cfg.Telegram.Workers,
		"queue_size", cfg.Telegram.QueueSize)

	poller := telegram.NewPoller(app.Telegram, app.Dispatcher, cfg.Telegram.PollTimeout, log)
	if err := poller.Run(ctx); err != nil {
		log.Error("telegram polling stopped", "error", err)
	}

	log.Info("shutting down polling worker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	app.Close(shutdownCtx)

	if shutdownCtx.Err() != nil {
		log.Warn("shutdown timeout reached, forcing exit")
		os.Exit(1)
	}
	return nil
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	pollWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of workers (overrides config)")
	pollWorkerCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "Update queue buffer size (overrides config)")

	workerCmd.AddCommand(pollWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
