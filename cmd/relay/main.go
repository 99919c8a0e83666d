package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wolfman30/operator-relay/cmd/mainconfig"
	"github.com/wolfman30/operator-relay/internal/app/bootstrap"
	appconfig "github.com/wolfman30/operator-relay/internal/config"
	"github.com/wolfman30/operator-relay/pkg/logging"
)

func main() {
	setWebhook := flag.Bool("set-webhook", false, "register WEBHOOK_URL with the Bot API and exit")
	flag.Parse()

	// Load configuration
	cfg, err := appconfig.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Initialize logger
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info("starting operator relay",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	var awsCfg *aws.Config
	if cfg.NeedsAWS() {
		loaded, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		awsCfg = &loaded
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	relay, err := bootstrap.BuildRelay(context.Background(), cfg, logger, awsCfg, reg)
	if err != nil {
		logger.Error("failed to build relay", "error", err)
		os.Exit(1)
	}
	defer relay.Close()

	if *setWebhook {
		if err := registerWebhook(cfg, relay); err != nil {
			logger.Error("set webhook failed", "error", err)
			os.Exit(1)
		}
		logger.Info("webhook registered", "url", cfg.WebhookURL)
		return
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           relay.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// leaves room for retried sends within one update
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func registerWebhook(cfg *appconfig.Config, relay *bootstrap.Relay) error {
	if relay.Client == nil {
		return errors.New("BOT_TOKEN and ADMIN_ID are required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return relay.Client.SetWebhook(ctx, cfg.WebhookURL)
}
