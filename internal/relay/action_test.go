package relay

import (
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	user := &telego.User{ID: 111}
	operator := &telego.User{ID: 999}
	original := &telego.Message{Text: "🆔 ID: 111"}

	cases := []struct {
		name   string
		update telego.Update
		want   Action
	}{
		{name: "no message", update: telego.Update{UpdateID: 1}, want: ActionIgnore},
		{name: "no sender", update: telego.Update{Message: &telego.Message{Text: "hi"}}, want: ActionIgnore},
		{name: "start", update: telego.Update{Message: &telego.Message{From: user, Text: "/start"}}, want: ActionWelcome},
		{name: "start with args forwards", update: telego.Update{Message: &telego.Message{From: user, Text: "/start now"}}, want: ActionForward},
		{name: "operator start", update: telego.Update{Message: &telego.Message{From: operator, Text: "/start"}}, want: ActionWelcome},
		{name: "contact", update: telego.Update{Message: &telego.Message{From: user, Contact: &telego.Contact{PhoneNumber: "+1"}}}, want: ActionContact},
		{name: "operator reply", update: telego.Update{Message: &telego.Message{From: operator, Text: "ok", ReplyToMessage: original}}, want: ActionOperatorReply},
		{name: "operator no reply", update: telego.Update{Message: &telego.Message{From: operator, Text: "note"}}, want: ActionOperatorDrop},
		{name: "user reply forwards", update: telego.Update{Message: &telego.Message{From: user, Text: "re", ReplyToMessage: original}}, want: ActionForward},
		{name: "user text", update: telego.Update{Message: &telego.Message{From: user, Text: "hello"}}, want: ActionForward},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.update, "999"))
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	update := telego.Update{Message: &telego.Message{From: &telego.User{ID: 999}, Text: "x", ReplyToMessage: &telego.Message{}}}
	first := Classify(update, " 999 ")
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, Classify(update, " 999 "))
	}
	assert.Equal(t, ActionOperatorReply, first)
}

func TestClassifyEmptyOperatorNeverMatches(t *testing.T) {
	update := telego.Update{Message: &telego.Message{From: &telego.User{ID: 0}, Text: "x", ReplyToMessage: &telego.Message{}}}
	assert.Equal(t, ActionForward, Classify(update, ""))
}

func TestClassifyPayloadPrecedence(t *testing.T) {
	msg := &telego.Message{
		Text:    "caption-less",
		Photo:   []telego.PhotoSize{{FileID: "small"}, {FileID: "large"}},
		Sticker: &telego.Sticker{FileID: "st"},
	}
	assert.Equal(t, KindText, ClassifyPayload(msg).Kind)

	msg.Text = ""
	p := ClassifyPayload(msg)
	assert.Equal(t, KindPhoto, p.Kind)
	assert.Equal(t, "large", p.FileID)

	assert.Equal(t, KindUnsupported, ClassifyPayload(&telego.Message{}).Kind)
	assert.Equal(t, KindUnsupported, ClassifyPayload(nil).Kind)
	assert.Equal(t, KindVoice, ClassifyPayload(&telego.Message{Voice: &telego.Voice{FileID: "v"}}).Kind)
	assert.Equal(t, KindContact, ClassifyPayload(&telego.Message{Contact: &telego.Contact{}}).Kind)
}
