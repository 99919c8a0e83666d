package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/mymmrac/telego"

	"github.com/wolfman30/operator-relay/pkg/logging"
)

// correlation sources reported to metrics
const (
	sourceStore  = "store"
	sourceBanner = "banner"
	sourceMiss   = "miss"
)

var errUnrelayable = errors.New("reply kind cannot be relayed")

// routeReply relays an operator reply to the user whose message it answers.
// An unresolvable target is reported to the operator, not returned as an error.
func (r *Router) routeReply(ctx context.Context, logger *logging.Logger, msg *telego.Message) error {
	target, source := r.resolveTarget(ctx, logger, msg.ReplyToMessage)
	r.metrics.ObserveCorrelation(source)
	if source == sourceMiss {
		logger.Warn("reply target not found", "reply_to", msg.ReplyToMessage.MessageID)
		_, err := r.transport.SendText(ctx, r.operatorID, r.cfg.Texts.ReplyNotFound, nil)
		return err
	}

	payload := ClassifyPayload(msg)
	ack, err := r.relayReply(ctx, target, payload)
	if errors.Is(err, errUnrelayable) {
		logger.Info("reply not relayable", "kind", string(payload.Kind))
		_, err = r.transport.SendText(ctx, r.operatorID, r.cfg.Texts.Unrelayable, nil)
		return err
	}
	if err != nil {
		return err
	}
	logger.Info("reply relayed", "kind", string(payload.Kind), "chat_id", target, "source", source)
	_, err = r.transport.SendText(ctx, r.operatorID, ack, nil)
	return err
}

// resolveTarget prefers the correlation store and falls back to the banner
// embedded in the replied-to text or caption.
func (r *Router) resolveTarget(ctx context.Context, logger *logging.Logger, original *telego.Message) (int64, string) {
	if r.store != nil && original.MessageID != 0 {
		chatID, ok, err := r.store.Lookup(ctx, original.MessageID)
		switch {
		case err != nil:
			logger.Warn("correlation lookup failed", "message_id", original.MessageID, "error", err)
		case ok:
			return chatID, sourceStore
		}
	}
	text := original.Text
	if text == "" {
		text = original.Caption
	}
	if id, ok := ExtractSenderID(text); ok {
		return id, sourceBanner
	}
	return 0, sourceMiss
}

// relayReply sends the reply content to target and returns the operator
// acknowledgement for its kind.
func (r *Router) relayReply(ctx context.Context, target int64, p Payload) (string, error) {
	var err error
	var ack string
	switch p.Kind {
	case KindText:
		_, err = r.transport.SendText(ctx, target, escapeText(p.Text), nil)
		ack = "✅ Reply sent to user."
	case KindPhoto:
		_, err = r.transport.SendPhoto(ctx, target, p.FileID, p.Caption)
		ack = "✅ Photo sent to user."
	case KindVideo:
		_, err = r.transport.SendVideo(ctx, target, p.FileID, p.Caption)
		ack = "✅ Video sent to user."
	case KindDocument:
		_, err = r.transport.SendDocument(ctx, target, p.FileID, p.Caption)
		ack = "✅ Document sent to user."
	case KindVoice:
		_, err = r.transport.SendVoice(ctx, target, p.FileID, p.Caption)
		ack = "✅ Voice message sent to user."
	case KindSticker:
		_, err = r.transport.SendSticker(ctx, target, p.FileID)
		ack = "✅ Sticker sent to user."
	case KindContact, KindUnsupported:
		return "", errUnrelayable
	default:
		return "", fmt.Errorf("unknown kind %q", p.Kind)
	}
	return ack, err
}
