package relay

import (
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
)

// StartCommand is the exact text that triggers the welcome flow.
const StartCommand = "/start"

// Action is the single routing decision taken for an update.
type Action string

const (
	ActionIgnore        Action = "ignore"
	ActionWelcome       Action = "welcome"
	ActionContact       Action = "contact"
	ActionOperatorReply Action = "operator_reply"
	ActionOperatorDrop  Action = "operator_drop"
	ActionForward       Action = "forward"
)

// Classify decides the action for an update. It is a pure function of the
// update and the operator ID; the first matching rule wins.
func Classify(update telego.Update, operatorID string) Action {
	msg := update.Message
	// channel posts and anonymous admins carry no sender to correlate
	if msg == nil || msg.From == nil {
		return ActionIgnore
	}
	if msg.Text == StartCommand {
		return ActionWelcome
	}
	if msg.Contact != nil {
		return ActionContact
	}
	if isOperator(msg, operatorID) {
		if msg.ReplyToMessage != nil {
			return ActionOperatorReply
		}
		return ActionOperatorDrop
	}
	return ActionForward
}

// isOperator compares identities as strings so a numeric sender ID and a
// string-configured operator ID agree.
func isOperator(msg *telego.Message, operatorID string) bool {
	operatorID = strings.TrimSpace(operatorID)
	return operatorID != "" && strconv.FormatInt(msg.From.ID, 10) == operatorID
}
