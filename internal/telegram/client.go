package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	ta "github.com/mymmrac/telego/telegoapi"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/operator-relay/internal/deadletter"
	observemetrics "github.com/wolfman30/operator-relay/internal/observability/metrics"
	"github.com/wolfman30/operator-relay/pkg/logging"
)

const (
	defaultAPIBase  = "https://api.telegram.org"
	defaultTimeout  = 10 * time.Second
	defaultBackoff  = 250 * time.Millisecond
	maxRetryAfter   = 30 * time.Second
	parseModeHTML   = "HTML"
	methodSendText  = "sendMessage"
	methodSendPhoto = "sendPhoto"
	methodSendVideo = "sendVideo"
	methodSendDoc   = "sendDocument"
	methodSendVoice = "sendVoice"
	methodSendStick = "sendSticker"
)

var telegramTracer = otel.Tracer("relay.internal.telegram")

// Config controls how the Bot API client behaves.
type Config struct {
	Token      string
	APIBase    string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	Metrics    *observemetrics.RelayMetrics
	DeadLetter deadletter.Sink
}

// Client issues outbound Bot API calls. Media is always relayed by file_id,
// never re-uploaded.
type Client struct {
	bot        *telego.Bot
	maxRetries int
	backoff    time.Duration
	logger     *logging.Logger
	metrics    *observemetrics.RelayMetrics
	deadLetter deadletter.Sink
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram: bot token is required")
	}
	apiBase := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	sink := cfg.DeadLetter
	if sink == nil {
		sink = deadletter.NewLogSink(logger)
	}

	bot, err := telego.NewBot(cfg.Token,
		telego.WithAPIServer(apiBase),
		telego.WithHTTPClient(httpClient),
		telego.WithDiscardLogger(),
	)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}

	return &Client{
		bot:        bot,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
		metrics:    cfg.Metrics,
		deadLetter: sink,
	}, nil
}

// SendText sends an HTML-formatted text message. markup may be nil.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, markup telego.ReplyMarkup) (*telego.Message, error) {
	params := &telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: chatID},
		Text:      text,
		ParseMode: parseModeHTML,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	return c.call(ctx, outbound{method: methodSendText, chatID: chatID, text: text}, func(ctx context.Context) (*telego.Message, error) {
		return c.bot.SendMessage(ctx, params)
	})
}

// SendPhoto relays a photo by file_id with an optional caption.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, fileID, caption string) (*telego.Message, error) {
	params := &telego.SendPhotoParams{
		ChatID:  telego.ChatID{ID: chatID},
		Photo:   telego.InputFile{FileID: fileID},
		Caption: caption,
	}
	return c.call(ctx, outbound{method: methodSendPhoto, chatID: chatID, fileID: fileID, text: caption}, func(ctx context.Context) (*telego.Message, error) {
		return c.bot.SendPhoto(ctx, params)
	})
}

// SendVideo relays a video by file_id with an optional caption.
func (c *Client) SendVideo(ctx context.Context, chatID int64, fileID, caption string) (*telego.Message, error) {
	params := &telego.SendVideoParams{
		ChatID:  telego.ChatID{ID: chatID},
		Video:   telego.InputFile{FileID: fileID},
		Caption: caption,
	}
	return c.call(ctx, outbound{method: methodSendVideo, chatID: chatID, fileID: fileID, text: caption}, func(ctx context.Context) (*telego.Message, error) {
		return c.bot.SendVideo(ctx, params)
	})
}

// SendDocument relays a document by file_id with an optional caption.
func (c *Client) SendDocument(ctx context.Context, chatID int64, fileID, caption string) (*telego.Message, error) {
	params := &telego.SendDocumentParams{
		ChatID:   telego.ChatID{ID: chatID},
		Document: telego.InputFile{FileID: fileID},
		Caption:  caption,
	}
	return c.call(ctx, outbound{method: methodSendDoc, chatID: chatID, fileID: fileID, text: caption}, func(ctx context.Context) (*telego.Message, error) {
		return c.bot.SendDocument(ctx, params)
	})
}

// SendVoice relays a voice note by file_id with an optional caption.
func (c *Client) SendVoice(ctx context.Context, chatID int64, fileID, caption string) (*telego.Message, error) {
	params := &telego.SendVoiceParams{
		ChatID:  telego.ChatID{ID: chatID},
		Voice:   telego.InputFile{FileID: fileID},
		Caption: caption,
	}
	return c.call(ctx, outbound{method: methodSendVoice, chatID: chatID, fileID: fileID, text: caption}, func(ctx context.Context) (*telego.Message, error) {
		return c.bot.SendVoice(ctx, params)
	})
}

// SendSticker relays a sticker by file_id. Stickers carry no caption.
func (c *Client) SendSticker(ctx context.Context, chatID int64, fileID string) (*telego.Message, error) {
	params := &telego.SendStickerParams{
		ChatID:  telego.ChatID{ID: chatID},
		Sticker: telego.InputFile{FileID: fileID},
	}
	return c.call(ctx, outbound{method: methodSendStick, chatID: chatID, fileID: fileID}, func(ctx context.Context) (*telego.Message, error) {
		return c.bot.SendSticker(ctx, params)
	})
}

// SetWebhook registers url as the bot's webhook endpoint.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	if strings.TrimSpace(url) == "" {
		return errors.New("telegram: webhook url required")
	}
	if err := c.bot.SetWebhook(ctx, &telego.SetWebhookParams{URL: url}); err != nil {
		return fmt.Errorf("telegram: set webhook: %w", err)
	}
	return nil
}

type outbound struct {
	method string
	chatID int64
	fileID string
	text   string
}

func (c *Client) call(ctx context.Context, out outbound, do func(context.Context) (*telego.Message, error)) (*telego.Message, error) {
	ctx, span := telegramTracer.Start(ctx, "telegram."+out.method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("telegram.method", out.method),
			attribute.Int64("telegram.chat_id", out.chatID),
		),
	)
	defer span.End()

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		attempts++
		msg, err := do(ctx)
		if err == nil {
			c.metrics.ObserveOutbound(out.method, "ok")
			return msg, nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == c.maxRetries || !shouldRetry(err) {
			break
		}
		c.logRetry(out, attempt, err)
		if sleepErr := c.sleep(ctx, attempt, err); sleepErr != nil {
			lastErr = sleepErr
			break
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "send failed")
	c.metrics.ObserveOutbound(out.method, "failed")
	c.logger.Error("telegram send failed",
		"method", out.method,
		"chat_id", out.chatID,
		"attempts", attempts,
		"error", lastErr,
	)
	// the request context may be the very thing that failed
	if err := c.deadLetter.Record(context.WithoutCancel(ctx), deadletter.FailedSend{
		Method:   out.method,
		ChatID:   out.chatID,
		FileID:   out.fileID,
		Text:     out.text,
		Attempts: attempts,
		Error:    lastErr.Error(),
		FailedAt: time.Now().UTC(),
	}); err != nil {
		c.logger.Warn("dead-letter record failed", "method", out.method, "error", err)
	}
	return nil, fmt.Errorf("telegram: %s: %w", out.method, lastErr)
}

func (c *Client) sleep(ctx context.Context, attempt int, cause error) error {
	delay := c.backoff * time.Duration(1<<attempt)
	if after := retryAfter(cause); after > 0 {
		delay = after
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) logRetry(out outbound, attempt int, err error) {
	c.logger.Warn("telegram retry",
		"method", out.method,
		"chat_id", out.chatID,
		"attempt", attempt+1,
		"error", err,
	)
}

// shouldRetry retries transient failures while the caller is still waiting.
func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return IsRetryable(err)
}

// IsRetryable reports whether a later attempt may clear err: transport
// failures, cancellation, 429 and 5xx. Other Bot API errors (blocked bot, bad
// file_id, chat not found, text too long) are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *ta.Error
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == http.StatusTooManyRequests || apiErr.ErrorCode >= http.StatusInternalServerError
	}
	// transport errors and undecodable responses
	return true
}

func retryAfter(err error) time.Duration {
	var apiErr *ta.Error
	if !errors.As(err, &apiErr) || apiErr.Parameters == nil || apiErr.Parameters.RetryAfter <= 0 {
		return 0
	}
	d := time.Duration(apiErr.Parameters.RetryAfter) * time.Second
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}
