package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/operator-relay/internal/api/router"
	appconfig "github.com/wolfman30/operator-relay/internal/config"
	"github.com/wolfman30/operator-relay/internal/http/handlers"
	observemetrics "github.com/wolfman30/operator-relay/internal/observability/metrics"
	"github.com/wolfman30/operator-relay/internal/relay"
	"github.com/wolfman30/operator-relay/internal/telegram"
	"github.com/wolfman30/operator-relay/pkg/logging"
)

// Relay is the assembled HTTP surface and its collaborators.
type Relay struct {
	Handler http.Handler
	// Client is nil when BOT_TOKEN or ADMIN_ID is missing.
	Client *telegram.Client
	Stores *Stores
}

// Close releases store connections.
func (r *Relay) Close() error {
	if r == nil {
		return nil
	}
	return r.Stores.Close()
}

// BuildRelay wires config into the chi router serving the webhook, health
// and metrics endpoints. Missing bot credentials still yield a handler; the
// webhook reports the problem on each request.
func BuildRelay(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, awsCfg *aws.Config, reg *prometheus.Registry) (*Relay, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics := observemetrics.NewRelayMetrics(reg)

	stores, err := BuildStores(ctx, cfg, logger, awsCfg)
	if err != nil {
		return nil, err
	}
	processed, err := BuildProcessedStore(cfg, stores)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}

	webhookCfg := handlers.WebhookConfig{
		Processed: processed,
		Logger:    logger,
		Metrics:   metrics,
	}

	var client *telegram.Client
	if cfg.HasCredentials() {
		client, err = telegram.New(telegram.Config{
			Token:      cfg.BotToken,
			APIBase:    cfg.TelegramAPIBase,
			Timeout:    cfg.TelegramTimeout,
			MaxRetries: cfg.TelegramMaxRetries,
			Backoff:    cfg.TelegramRetryBackoff,
			Logger:     logger,
			Metrics:    metrics,
			DeadLetter: BuildDeadLetterSink(cfg, stores, logger),
		})
		if err != nil {
			_ = stores.Close()
			return nil, err
		}
		store, err := BuildCorrelationStore(cfg, stores)
		if err != nil {
			_ = stores.Close()
			return nil, err
		}
		dispatcher, err := relay.NewRouter(relay.Config{
			OperatorID:     cfg.OperatorID,
			RequestContact: cfg.RequestContact,
		}, client, store, logger, metrics)
		if err != nil {
			_ = stores.Close()
			return nil, err
		}
		webhookCfg.Dispatcher = dispatcher
		logger.Info("relay configured",
			"correlation_backend", cfg.CorrelationBackend,
			"dedupe_backend", cfg.DedupeBackend,
		)
	} else {
		logger.Warn("BOT_TOKEN or ADMIN_ID missing; webhook will reject updates")
	}

	handler := router.New(&router.Config{
		Logger:         logger,
		Webhook:        handlers.NewWebhookHandler(webhookCfg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return &Relay{Handler: handler, Client: client, Stores: stores}, nil
}
