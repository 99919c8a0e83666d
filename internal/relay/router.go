package relay

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	observemetrics "github.com/wolfman30/operator-relay/internal/observability/metrics"
	"github.com/wolfman30/operator-relay/internal/relay/correlation"
	"github.com/wolfman30/operator-relay/pkg/logging"
)

var relayTracer = otel.Tracer("relay.internal.relay")

// Transport is the subset of the Bot API client the router drives.
// *telegram.Client satisfies it.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string, markup telego.ReplyMarkup) (*telego.Message, error)
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string) (*telego.Message, error)
	SendVideo(ctx context.Context, chatID int64, fileID, caption string) (*telego.Message, error)
	SendDocument(ctx context.Context, chatID int64, fileID, caption string) (*telego.Message, error)
	SendVoice(ctx context.Context, chatID int64, fileID, caption string) (*telego.Message, error)
	SendSticker(ctx context.Context, chatID int64, fileID string) (*telego.Message, error)
}

// Texts holds the fixed chat messages the router sends.
type Texts struct {
	Welcome           string
	ShareContact      string
	Delivered         string
	ContactRegistered string
	ReplyNotFound     string
	Unrelayable       string
}

// DefaultTexts returns the stock message set.
func DefaultTexts() Texts {
	return Texts{
		Welcome:           "👋 Welcome! Send me any message, and I'll forward it to the admin.",
		ShareContact:      "📱 Share contact",
		Delivered:         "✅ Your message has been delivered.",
		ContactRegistered: "✅ Thanks! Your contact has been shared with the admin.",
		ReplyNotFound:     "❌ Could not find user ID in the original message.",
		Unrelayable:       "⚠️ This message type cannot be relayed.",
	}
}

// Config is the immutable context a Router is built with.
type Config struct {
	OperatorID     string
	RequestContact bool
	Texts          Texts
}

// Router performs the single action Classify selects for each update.
type Router struct {
	cfg        Config
	operatorID int64
	transport  Transport
	store      correlation.Store
	logger     *logging.Logger
	metrics    *observemetrics.RelayMetrics
}

// NewRouter validates cfg and returns a Router. store may be nil, in which
// case replies are correlated by banner only.
func NewRouter(cfg Config, transport Transport, store correlation.Store, logger *logging.Logger, metrics *observemetrics.RelayMetrics) (*Router, error) {
	if transport == nil {
		return nil, errors.New("relay: transport is required")
	}
	cfg.OperatorID = strings.TrimSpace(cfg.OperatorID)
	operatorID, err := strconv.ParseInt(cfg.OperatorID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("relay: operator id %q is not numeric: %w", cfg.OperatorID, err)
	}
	if cfg.Texts == (Texts{}) {
		cfg.Texts = DefaultTexts()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Router{
		cfg:        cfg,
		operatorID: operatorID,
		transport:  transport,
		store:      store,
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// Dispatch classifies the update and performs its action. Sends are issued
// one at a time; the first transport failure aborts the chain.
func (r *Router) Dispatch(ctx context.Context, update telego.Update) error {
	action := Classify(update, r.cfg.OperatorID)
	ctx, span := relayTracer.Start(ctx, "relay.dispatch", trace.WithAttributes(
		attribute.Int("relay.update_id", update.UpdateID),
		attribute.String("relay.action", string(action)),
	))
	defer span.End()
	r.metrics.ObserveAction(string(action))

	logger := r.logger.WithUpdate(update.UpdateID).With("action", string(action))
	msg := update.Message

	var err error
	switch action {
	case ActionIgnore:
		logger.Debug("update ignored")
		return nil
	case ActionOperatorDrop:
		logger.Debug("operator message without reply dropped", "chat_id", msg.Chat.ID)
	case ActionWelcome:
		err = r.welcome(ctx, msg)
	case ActionContact:
		err = r.contact(ctx, logger, msg)
	case ActionOperatorReply:
		err = r.routeReply(ctx, logger, msg)
	case ActionForward:
		err = r.forward(ctx, logger, msg)
		if err == nil {
			_, err = r.transport.SendText(ctx, msg.Chat.ID, r.cfg.Texts.Delivered, nil)
		}
	default:
		err = fmt.Errorf("unhandled action %q", action)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		return fmt.Errorf("relay: %s: %w", action, err)
	}
	logger.Debug("update handled", "chat_id", msg.Chat.ID)
	return nil
}

func (r *Router) welcome(ctx context.Context, msg *telego.Message) error {
	var markup telego.ReplyMarkup
	if r.cfg.RequestContact {
		markup = &telego.ReplyKeyboardMarkup{
			Keyboard: [][]telego.KeyboardButton{
				{{Text: r.cfg.Texts.ShareContact, RequestContact: true}},
			},
			OneTimeKeyboard: true,
			ResizeKeyboard:  true,
		}
	}
	_, err := r.transport.SendText(ctx, msg.Chat.ID, r.cfg.Texts.Welcome, markup)
	return err
}

func (r *Router) contact(ctx context.Context, logger *logging.Logger, msg *telego.Message) error {
	c := msg.Contact
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	// a shared contact may belong to someone else; the ID is the sender's
	notice := fmt.Sprintf("📇 New contact shared\n👤 Name: %s\n📞 Phone: %s\n🆔 ID: %d",
		escapeText(name), escapeText(c.PhoneNumber), msg.From.ID)

	sent, err := r.transport.SendText(ctx, r.operatorID, notice, nil)
	if err != nil {
		return err
	}
	r.remember(ctx, logger, sent, msg.Chat.ID)

	_, err = r.transport.SendText(ctx, msg.Chat.ID, r.cfg.Texts.ContactRegistered, &telego.ReplyKeyboardRemove{RemoveKeyboard: true})
	return err
}

// remember records an operator-chat message against the sender's chat.
// Failures only degrade correlation to the banner fallback.
func (r *Router) remember(ctx context.Context, logger *logging.Logger, sent *telego.Message, senderChatID int64) {
	if r.store == nil || sent == nil || sent.MessageID == 0 {
		return
	}
	if err := r.store.Remember(ctx, sent.MessageID, senderChatID); err != nil {
		logger.Warn("correlation record failed", "message_id", sent.MessageID, "chat_id", senderChatID, "error", err)
	}
}

// escapeText prepares user-supplied content for HTML parse mode.
func escapeText(s string) string {
	return html.EscapeString(s)
}
