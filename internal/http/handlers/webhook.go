package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mymmrac/telego"

	"github.com/wolfman30/operator-relay/internal/events"
	observemetrics "github.com/wolfman30/operator-relay/internal/observability/metrics"
	"github.com/wolfman30/operator-relay/internal/telegram"
	"github.com/wolfman30/operator-relay/pkg/logging"
)

const (
	telegramProvider    = "telegram"
	defaultMaxBodyBytes = 1 << 20

	bodyRunning       = "Telegram Bot is running!"
	bodyOK            = "OK"
	bodyMissingConfig = "Missing BOT_TOKEN or ADMIN_ID"
	bodyProcessError  = "Error processing update"
	bodyNotAllowed    = "Method not allowed"
)

// Dispatcher performs the routing for a decoded update.
type Dispatcher interface {
	Dispatch(ctx context.Context, update telego.Update) error
}

// WebhookConfig wires the webhook handler. A nil Dispatcher means the bot
// token or operator ID is not configured.
type WebhookConfig struct {
	Dispatcher   Dispatcher
	Processed    events.ProcessedStore
	Logger       *logging.Logger
	Metrics      *observemetrics.RelayMetrics
	MaxBodyBytes int64
}

// WebhookHandler receives Bot API updates on the webhook endpoint.
type WebhookHandler struct {
	dispatcher   Dispatcher
	processed    events.ProcessedStore
	logger       *logging.Logger
	metrics      *observemetrics.RelayMetrics
	maxBodyBytes int64
}

func NewWebhookHandler(cfg WebhookConfig) *WebhookHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &WebhookHandler{
		dispatcher:   cfg.Dispatcher,
		processed:    cfg.Processed,
		logger:       logger,
		metrics:      cfg.Metrics,
		maxBodyBytes: maxBody,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	outcome := h.serve(w, r)
	h.metrics.ObserveWebhook(outcome, time.Since(start).Seconds())
}

func (h *WebhookHandler) serve(w http.ResponseWriter, r *http.Request) string {
	if h.dispatcher == nil {
		h.logger.Error("webhook called without bot token or operator id configured")
		writeText(w, http.StatusInternalServerError, bodyMissingConfig)
		return "unconfigured"
	}

	switch r.Method {
	case http.MethodGet:
		writeText(w, http.StatusOK, bodyRunning)
		return "liveness"
	case http.MethodPost:
		return h.handleUpdate(w, r)
	default:
		writeText(w, http.StatusMethodNotAllowed, bodyNotAllowed)
		return "method_not_allowed"
	}
}

func (h *WebhookHandler) handleUpdate(w http.ResponseWriter, r *http.Request) string {
	ctx := r.Context()
	payload, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodyBytes))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		writeText(w, http.StatusInternalServerError, bodyProcessError)
		return "read_error"
	}

	var update telego.Update
	if err := json.Unmarshal(payload, &update); err != nil {
		h.logger.Error("failed to decode update", "error", err, "bytes", len(payload))
		writeText(w, http.StatusInternalServerError, bodyProcessError)
		return "decode_error"
	}
	logger := h.logger.WithUpdate(update.UpdateID)

	claimed := h.claim(ctx, logger, update.UpdateID)
	if claimed == claimDuplicate {
		logger.Info("duplicate update skipped")
		writeText(w, http.StatusOK, bodyOK)
		return "duplicate"
	}

	if err := h.dispatcher.Dispatch(ctx, update); err != nil {
		if !telegram.IsRetryable(err) {
			// redelivery would repeat the sends that already went out; the
			// failed one is in the dead-letter sink
			logger.Warn("update abandoned after final delivery failure", "error", err)
			writeText(w, http.StatusOK, bodyOK)
			return "dispatch_final"
		}
		logger.Error("failed to process update", "error", err)
		if claimed == claimHeld {
			// let the platform's redelivery retry the update
			if relErr := h.processed.Release(context.WithoutCancel(ctx), telegramProvider, strconv.Itoa(update.UpdateID)); relErr != nil {
				logger.Warn("failed to release update claim", "error", relErr)
			}
		}
		writeText(w, http.StatusInternalServerError, bodyProcessError)
		return "dispatch_error"
	}

	writeText(w, http.StatusOK, bodyOK)
	return "ok"
}

type claimResult int

const (
	claimSkipped claimResult = iota
	claimHeld
	claimDuplicate
)

// claim reserves the update ID. Store failures fall through to processing;
// a possible duplicate beats a dropped message.
func (h *WebhookHandler) claim(ctx context.Context, logger *logging.Logger, updateID int) claimResult {
	// update IDs are positive; zero means the field was absent
	if h.processed == nil || updateID <= 0 {
		return claimSkipped
	}
	ok, err := h.processed.Claim(ctx, telegramProvider, strconv.Itoa(updateID))
	if err != nil {
		logger.Warn("update dedupe unavailable", "error", err)
		return claimSkipped
	}
	if !ok {
		return claimDuplicate
	}
	return claimHeld
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
