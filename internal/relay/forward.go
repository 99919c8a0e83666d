package relay

import (
	"context"

	"github.com/mymmrac/telego"

	"github.com/wolfman30/operator-relay/pkg/logging"
)

const (
	stickerNote     = "[Sticker received]"
	unsupportedNote = "[Unsupported message type received]"
)

// forward delivers a user message to the operator chat with the sender's
// banner attached and records each operator-side message for correlation.
func (r *Router) forward(ctx context.Context, logger *logging.Logger, msg *telego.Message) error {
	banner := Banner(SenderFromMessage(msg))
	payload := ClassifyPayload(msg)
	op := r.operatorID

	var sent []*telego.Message
	record := func(m *telego.Message, err error) error {
		if err != nil {
			return err
		}
		sent = append(sent, m)
		return nil
	}

	var err error
	switch payload.Kind {
	case KindText:
		err = record(r.transport.SendText(ctx, op, escapeText(banner+payload.Text), nil))
	case KindPhoto:
		err = record(r.transport.SendPhoto(ctx, op, payload.FileID, banner+payload.Caption))
	case KindVideo:
		err = record(r.transport.SendVideo(ctx, op, payload.FileID, banner+payload.Caption))
	case KindDocument:
		err = record(r.transport.SendDocument(ctx, op, payload.FileID, banner+payload.Caption))
	case KindVoice:
		err = record(r.transport.SendVoice(ctx, op, payload.FileID, banner))
	case KindSticker:
		// stickers cannot carry a caption, so the banner goes first as text
		err = record(r.transport.SendText(ctx, op, escapeText(banner+stickerNote), nil))
		if err == nil {
			err = record(r.transport.SendSticker(ctx, op, payload.FileID))
		}
	case KindContact, KindUnsupported:
		// contacts are routed before forwarding; treat a stray one as unsupported
		err = record(r.transport.SendText(ctx, op, escapeText(banner+unsupportedNote), nil))
	}
	for _, m := range sent {
		r.remember(ctx, logger, m, msg.Chat.ID)
	}
	if err != nil {
		return err
	}
	logger.Info("message forwarded", "kind", string(payload.Kind), "chat_id", msg.Chat.ID)
	return nil
}
